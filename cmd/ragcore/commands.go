package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/api"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/metrics"
	"github.com/santhosh0997/Multimodal-Rag-System/reembed"
	"github.com/urfave/cli/v2"
)

func (r *runner) ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}
	metadata, err := parseMetadata(c.StringSlice("meta"))
	if err != nil {
		return err
	}
	docs, err := documentsFromFiles(c.Args().Slice(), metadata)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	engine, err := r.openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	outcomes, err := engine.IngestAll(ctx, docs)
	failed := printOutcomes(c.App.Writer, outcomes)
	if err != nil {
		slog.Debug("ingest errors", "err", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return ctx.Err()
}

// documentsFromFiles reads each file as one document keyed by its cleaned path.
func documentsFromFiles(paths []string, metadata map[string]string) ([]*core.Document, error) {
	docs := make([]*core.Document, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		id := filepath.ToSlash(filepath.Clean(path))
		if seen[id] {
			continue
		}
		seen[id] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc := &core.Document{
			ID:     id,
			Origin: path,
			Text:   string(data),
		}
		if len(metadata) > 0 {
			doc.Metadata = make(map[string]string, len(metadata))
			for k, v := range metadata {
				doc.Metadata[k] = v
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		metadata[k] = v
	}
	return metadata, nil
}

// printOutcomes writes one line per outcome and returns the failure count.
func printOutcomes(w io.Writer, outcomes []*core.IngestOutcome) int {
	failed := 0
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		switch {
		case o.Skipped:
			fmt.Fprintf(w, "%s\tskipped\tunchanged\n", o.DocumentID)
		case o.State == core.StateFailed:
			failed++
			fmt.Fprintf(w, "%s\tfailed\t%s: %s\n", o.DocumentID, o.Reason, o.Message)
		default:
			fmt.Fprintf(w, "%s\t%s\tchunks=%d entities=%d relationships=%d",
				o.DocumentID, o.State, o.Chunks, o.Entities, o.Relationships)
			if o.PartialExtraction {
				fmt.Fprintf(w, " partial_extraction=%d", len(o.ExtractionFailures))
			}
			fmt.Fprintln(w)
		}
	}
	return failed
}

func (r *runner) retrieveCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	budget := cfg.Budget()
	if c.IsSet("max-evidence") {
		budget.MaxEvidence = c.Int("max-evidence")
	}
	if c.IsSet("max-tokens") {
		budget.MaxTokens = c.Int("max-tokens")
	}

	opts := ragcore.RetrieveOptions{Budget: budget}
	if docs := c.StringSlice("document"); len(docs) > 0 {
		opts.Filter = &core.Filter{DocumentIDs: docs}
	}
	if c.Bool("verbose") {
		opts.Monitor = newTraceMonitor(c.App.ErrWriter)
	}

	ctx, stop := signalContext(c)
	defer stop()

	engine, err := r.openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.RetrieveWith(ctx, &core.Query{
		Text:     text,
		Entities: c.StringSlice("entity"),
	}, opts)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, result)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *core.RetrievalResult) {
	fmt.Fprintf(w, "Query %s: %q\n", result.QueryID, result.Query)
	if len(result.Entities) > 0 {
		fmt.Fprintf(w, "Entities: %s\n", strings.Join(result.Entities, ", "))
	}
	for _, d := range result.Degradations {
		fmt.Fprintf(w, "Degraded: %s path unavailable (%s): %s\n", d.Path, d.Reason, d.Message)
	}
	if len(result.Evidence) == 0 {
		fmt.Fprintln(w, "No evidence found")
		return
	}

	fmt.Fprintf(w, "Found %d pieces of evidence\n", len(result.Evidence))
	for i, e := range result.Evidence {
		fmt.Fprintf(w, "%d: [%0.3f] %s@%d-%d (%s)\n", i+1, e.Score, e.DocumentID, e.Start, e.End, e.Origin)
		fmt.Fprintf(w, "   %s\n", oneLine(e.Text))
		for _, f := range e.Facts {
			fmt.Fprintf(w, "   * %s (confidence %0.2f, %d hops)\n", f, f.Confidence, f.Hops)
		}
	}
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (r *runner) serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.ListenAddr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signalContext(c)
	defer stop()

	collector := metrics.NewCollector(cfg.MetricsNamespace)
	engine, err := r.openEngine(ctx, cfg, ragcore.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer engine.Close()

	handler := api.NewRouter(api.RouterConfig{
		Engine:  engine,
		Budget:  cfg.Budget(),
		Metrics: collector,
		Logger:  slog.Default(),
	})

	slog.Info("listening", "addr", addr, "data_dir", cfg.DataDir, "in_memory", cfg.InMemory)
	if err := api.Serve(ctx, addr, handler, shutdownTimeout); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func (r *runner) reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Logger:         slog.Default(),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reembedConfig.Retry = cfg.RetryPolicy()

	ctx, stop := signalContext(c)
	defer stop()

	engine, err := r.openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := reembed.NewReembedder(engine.Vectors(), engine.Provider().Embedder(), reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	result, err := reembedder.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d chunks (dimension %d -> %d) in %s\n",
		result.Chunks, result.PreviousDimension, result.Dimension, result.Elapsed.Round(time.Millisecond))
	return nil
}

func (r *runner) statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c)
	defer stop()

	engine, err := r.openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, stats)
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Documents:     %d (%d failed)\n", stats.Documents, stats.Failed)
	fmt.Fprintf(w, "Chunks:        %d\n", stats.Chunks)
	fmt.Fprintf(w, "Dimension:     %d\n", stats.Dimension)
	fmt.Fprintf(w, "Entities:      %d\n", stats.Entities)
	fmt.Fprintf(w, "Relationships: %d\n", stats.Relationships)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
