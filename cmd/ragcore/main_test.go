package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/ai/mock"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findIntFlag(t *testing.T, cmd *cli.Command, name string) *cli.IntFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp(&bytes.Buffer{}, &bytes.Buffer{})

	for _, name := range []string{"ingest", "retrieve", "serve", "reembed", "status"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}

	t.Run("reembed batch-size has default value of 100", func(t *testing.T) {
		f := findIntFlag(t, findCommand(t, app, "reembed"), "batch-size")
		assert.Equal(t, 100, f.Value)
	})

	t.Run("reembed report-interval has default value of 100", func(t *testing.T) {
		f := findIntFlag(t, findCommand(t, app, "reembed"), "report-interval")
		assert.Equal(t, 100, f.Value)
	})

	t.Run("log-level reads the RAG prefixed variable", func(t *testing.T) {
		var levelFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
			}
		}
		require.NotNil(t, levelFlag)
		assert.Equal(t, "info", levelFlag.Value)
		assert.Equal(t, []string{"RAG_LOG_LEVEL"}, levelFlag.EnvVars)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, err := parseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}

	_, err := parseLevel("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	err := app.Run([]string{"ragcore", "--log-level", "LOUD", "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)

	meta, err = parseMetadata([]string{"team=research", "tag=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "research", "tag": "a=b"}, meta)

	_, err = parseMetadata([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseMetadata([]string{"=x"})
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestDocumentsFromFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "Alpha text.")
	b := writeFile(t, dir, "b.txt", "Beta text.")

	docs, err := documentsFromFiles([]string{a, b, a}, map[string]string{"team": "research"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, filepath.ToSlash(a), docs[0].ID)
	assert.Equal(t, a, docs[0].Origin)
	assert.Equal(t, "Alpha text.", docs[0].Text)
	assert.Equal(t, "research", docs[0].Metadata["team"])

	// Each document gets its own metadata map
	docs[0].Metadata["team"] = "changed"
	assert.Equal(t, "research", docs[1].Metadata["team"])

	_, err = documentsFromFiles([]string{filepath.Join(dir, "missing.txt")}, nil)
	assert.Error(t, err)
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	failed := printOutcomes(&buf, []*core.IngestOutcome{
		{DocumentID: "a", State: core.StateDone, Chunks: 2, Entities: 3, Relationships: 1},
		{DocumentID: "b", State: core.StateDone, Skipped: true},
		{DocumentID: "c", State: core.StateFailed, Reason: core.ReasonEmbeddingUnavailable, Message: "down"},
		nil,
	})

	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "a\tdone\tchunks=2 entities=3 relationships=1\n")
	assert.Contains(t, out, "b\tskipped\tunchanged\n")
	assert.Contains(t, out, "c\tfailed\tembedding_unavailable: down\n")
}

// testRunner builds an app whose engines use a fresh mock provider.
func testRunner(t *testing.T) (func(args ...string) (string, string, error), string) {
	t.Helper()
	dataDir := t.TempDir()
	r := &runner{newProvider: func() ai.AIProvider { return mock.NewMockProvider() }}
	run := func(args ...string) (string, string, error) {
		var stdout, stderr bytes.Buffer
		app := r.app(&stdout, &stderr)
		full := append([]string{"ragcore", "--log-level", "error", "--data-dir", dataDir}, args...)
		err := app.Run(full)
		return stdout.String(), stderr.String(), err
	}
	return run, dataDir
}

func TestCommands_EndToEnd(t *testing.T) {
	run, _ := testRunner(t)
	docs := t.TempDir()
	docA := writeFile(t, docs, "acme.txt", "Acme Corp acquired Zenith Inc in 2020.")
	docB := writeFile(t, docs, "market.txt", "Mergers and acquisitions reshaped the regional market.")
	idA := filepath.ToSlash(docA)

	out, _, err := run("ingest", "--meta", "source=test", docA, docB)
	require.NoError(t, err)
	assert.Contains(t, out, idA+"\tdone\t")
	assert.Contains(t, out, filepath.ToSlash(docB)+"\tdone\t")

	// Unchanged files are skipped on the second run
	out, _, err = run("ingest", docA)
	require.NoError(t, err)
	assert.Contains(t, out, idA+"\tskipped")

	t.Run("retrieve json", func(t *testing.T) {
		out, _, err := run("retrieve", "--json", "Who acquired Zenith Inc?")
		require.NoError(t, err)

		var result core.RetrievalResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "Who acquired Zenith Inc?", result.Query)
		assert.NotEmpty(t, result.QueryID)
		require.NotEmpty(t, result.Evidence)
		assert.Equal(t, idA, result.Evidence[0].DocumentID)
		require.NotEmpty(t, result.Evidence[0].Facts)
		assert.Equal(t, "Acme Corp -acquired-> Zenith Inc", result.Evidence[0].Facts[0].String())
	})

	t.Run("retrieve text with trace", func(t *testing.T) {
		out, errOut, err := run("retrieve", "--verbose", "--max-evidence", "1", "Who", "acquired", "Zenith", "Inc?")
		require.NoError(t, err)
		assert.Contains(t, out, "Found 1 pieces of evidence")
		assert.Contains(t, out, "* Acme Corp -acquired-> Zenith Inc")
		assert.Contains(t, errOut, "vector search returned")
		assert.Contains(t, errOut, "ranked 1 pieces of evidence")
	})

	t.Run("retrieve filtered to one document", func(t *testing.T) {
		out, _, err := run("retrieve", "--json", "--document", filepath.ToSlash(docB), "regional market")
		require.NoError(t, err)

		var result core.RetrievalResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		for _, e := range result.Evidence {
			assert.Equal(t, filepath.ToSlash(docB), e.DocumentID)
		}
	})

	t.Run("status", func(t *testing.T) {
		out, _, err := run("status", "--json")
		require.NoError(t, err)

		var stats ragcore.Stats
		require.NoError(t, json.Unmarshal([]byte(out), &stats))
		assert.Equal(t, 2, stats.Documents)
		assert.Equal(t, 0, stats.Failed)
		assert.Equal(t, 2, stats.Chunks)
		assert.Equal(t, mock.DefaultDimension, stats.Dimension)
		assert.Positive(t, stats.Entities)
	})

	t.Run("reembed", func(t *testing.T) {
		out, errOut, err := run("reembed", "--batch-size", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Re-embedded 2 chunks (dimension 256 -> 256)")
		assert.Contains(t, errOut, "Embedding model:")
	})
}

func TestCommands_Errors(t *testing.T) {
	run, _ := testRunner(t)

	_, _, err := run("ingest")
	assert.ErrorContains(t, err, "at least one file is required")

	_, _, err = run("ingest", "--meta", "bad", "x.txt")
	assert.ErrorContains(t, err, "expected key=value")

	_, _, err = run("retrieve", "  ")
	assert.ErrorContains(t, err, "a question is required")

	_, _, err = run("retrieve", "--max-evidence", "-1", "anything")
	assert.ErrorIs(t, err, core.ErrConfig)

	_, _, err = run("reembed", "--batch-size", "0")
	assert.ErrorContains(t, err, "batch-size must be greater than 0")
}
