package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
)

// traceMonitor prints each retrieval stage as it happens.
type traceMonitor struct {
	mu      sync.Mutex
	w       io.Writer
	started time.Time
}

var _ retrieval.Monitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) printf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, "[%8s] ", time.Since(m.started).Round(time.Microsecond))
	fmt.Fprintf(m.w, format, args...)
	fmt.Fprintln(m.w)
}

func (m *traceMonitor) Start(q *core.Query) {
	m.mu.Lock()
	m.started = time.Now()
	m.mu.Unlock()
	m.printf("query %s: %q", q.ID, q.Text)
}

func (m *traceMonitor) AfterQueryExtraction(names []string) {
	m.printf("extracted %d entities from the query: %v", len(names), names)
}

func (m *traceMonitor) AfterEntityResolution(seeds []core.ID) {
	m.printf("resolved %d seed entities", len(seeds))
}

func (m *traceMonitor) AfterTraversal(hits []core.GraphHit) {
	m.printf("graph traversal reached %d relationships", len(hits))
}

func (m *traceMonitor) AfterVectorSearch(hits []core.VectorHit) {
	m.printf("vector search returned %d chunks", len(hits))
}

func (m *traceMonitor) PathFailed(path string, err error) {
	m.printf("%s path failed: %v", path, err)
}

func (m *traceMonitor) Finish(evidence []core.Evidence) {
	m.printf("ranked %d pieces of evidence", len(evidence))
}
