package ingestion

import (
	"context"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// batch is the in-flight state of one document between chunking and persistence.
// Each processor writes only its own fields, so the two can run concurrently.
type batch struct {
	doc    *core.Document
	chunks []*core.Chunk

	// Written by the extraction processor. Indexed like chunks; nil where
	// extraction failed.
	extractions []*ai.Extraction
	failures    []core.ChunkFailure
}

// processor is an internal interface for the per-chunk enrichment stages.
type processor interface {
	// process enriches the chunks of b.
	process(ctx context.Context, b *batch) error
}
