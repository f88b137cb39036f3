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

package core

import "time"

// IngestState is the position of a document in the ingestion state machine.
type IngestState string

const (
	StatePending           IngestState = "pending"
	StateChunked           IngestState = "chunked"
	StateEmbeddedExtracted IngestState = "embedded_extracted"
	StateResolved          IngestState = "resolved"
	StatePersisted         IngestState = "persisted"
	StateDone              IngestState = "done"
	StateFailed            IngestState = "failed"
)

var stateSuccessor = map[IngestState]IngestState{
	StatePending:           StateChunked,
	StateChunked:           StateEmbeddedExtracted,
	StateEmbeddedExtracted: StateResolved,
	StateResolved:          StatePersisted,
	StatePersisted:         StateDone,
}

// IsTerminal reports whether no further transition is possible.
func (s IngestState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether moving from s to next is legal.
// Failed is reachable from every non-terminal state.
func (s IngestState) CanTransition(next IngestState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return stateSuccessor[s] == next
}

// ChunkFailure records why a chunk contributed no graph data.
type ChunkFailure struct {
	ChunkID ID     `json:"chunk_id"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// IngestOutcome is the per-document report of one ingest call.
type IngestOutcome struct {
	DocumentID         string         `json:"document_id"`
	ContentHash        ID             `json:"content_hash"`
	State              IngestState    `json:"state"`
	Reason             string         `json:"reason,omitempty"`
	Message            string         `json:"message,omitempty"`
	Chunks             int            `json:"chunks"`
	Entities           int            `json:"entities"`
	Relationships      int            `json:"relationships"`
	PartialExtraction  bool           `json:"partial_extraction"`
	ExtractionFailures []ChunkFailure `json:"extraction_failures,omitempty"`
	Skipped            bool           `json:"skipped,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
}

// Advance moves the outcome to next, returning ErrInvalidTransition when illegal.
func (o *IngestOutcome) Advance(next IngestState) error {
	if !o.State.CanTransition(next) {
		return &TransitionError{From: o.State, To: next}
	}
	o.State = next
	if next.IsTerminal() {
		o.FinishedAt = time.Now().UTC()
	}
	return nil
}

// Fail moves the outcome to Failed with a machine-readable reason.
func (o *IngestOutcome) Fail(err error) {
	if o.State.IsTerminal() {
		return
	}
	o.State = StateFailed
	o.Reason = Reason(err)
	o.Message = err.Error()
	o.FinishedAt = time.Now().UTC()
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From IngestState
	To   IngestState
}

func (e *TransitionError) Error() string {
	return "invalid ingest transition from " + string(e.From) + " to " + string(e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
