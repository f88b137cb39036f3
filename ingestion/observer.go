package ingestion

import (
	"time"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Observer is notified as documents move through the pipeline.
// Implementations must be safe for concurrent use.
type Observer interface {
	// StageCompleted reports a successful transition into stage.
	StageCompleted(stage core.IngestState, elapsed time.Duration)

	// DocumentFinished reports the terminal outcome of one Ingest call.
	DocumentFinished(outcome *core.IngestOutcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(core.IngestState, time.Duration)      {}
func (nopObserver) DocumentFinished(*core.IngestOutcome, time.Duration) {}
