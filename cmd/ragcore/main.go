// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/config"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner carries what the commands share. newProvider is only set by tests;
// nil means the engine builds the OpenAI-compatible provider from config.
type runner struct {
	newProvider func() ai.AIProvider
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return (&runner{}).app(stdout, stderr)
}

func (r *runner) app(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "ragcore",
		Usage:     "Hybrid graph and vector retrieval over ingested documents",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{config.Prefix + "_LOG_LEVEL"},
			},
			&cli.StringSliceFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Load settings from this .env file (default .env)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Path to the Badger data directory (overrides RAG_DATA_DIR)",
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "Keep everything in memory; nothing survives the process",
			},
			&cli.StringFlag{
				Name:  "postgres-dsn",
				Usage: "Store chunk vectors in Postgres/pgvector (overrides RAG_POSTGRES_DSN)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest text files as documents",
				ArgsUsage: "FILE...",
				Action:    r.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "meta",
						Aliases: []string{"m"},
						Usage:   "Attach key=value metadata to every document",
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Retrieve ranked evidence for a question",
				ArgsUsage: "QUESTION",
				Action:    r.retrieveCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "entity",
						Usage: "Seed the graph path with this entity name (skips query extraction)",
					},
					&cli.StringSliceFlag{
						Name:  "document",
						Usage: "Only return evidence from this document ID",
					},
					&cli.IntFlag{
						Name:  "max-evidence",
						Usage: "Maximum number of evidence items (0 = configured default)",
					},
					&cli.IntFlag{
						Name:  "max-tokens",
						Usage: "Maximum total evidence tokens (0 = configured default)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the result as JSON",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Trace each retrieval stage on stderr",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: r.serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides RAG_LISTEN_ADDR)",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every chunk embedding with the configured embedding model",
				Action: r.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show what the store holds",
				Action: r.statusCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the counts as JSON",
					},
				},
			},
		},
	}
}

// loadConfig reads the environment, then applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("in-memory") {
		cfg.InMemory = c.Bool("in-memory")
	}
	if c.IsSet("postgres-dsn") {
		cfg.PostgresDSN = c.String("postgres-dsn")
	}
	return cfg, nil
}

func (r *runner) openEngine(ctx context.Context, cfg *config.Config, extra ...ragcore.Option) (*ragcore.Engine, error) {
	opts, err := cfg.EngineOptions(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, ragcore.WithLogger(slog.Default()))
	if r.newProvider != nil {
		opts = append(opts, ragcore.WithProvider(r.newProvider()))
	}
	opts = append(opts, extra...)

	engine, err := ragcore.Open(cfg.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}

	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
}
