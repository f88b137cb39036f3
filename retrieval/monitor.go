package retrieval

import (
	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Monitor provides hooks to observe the retrieval process.
// The graph and vector hooks are called from concurrent goroutines, so
// implementations must be safe for concurrent use.
type Monitor interface {
	Start(query *core.Query)
	AfterQueryExtraction(names []string)
	AfterEntityResolution(seeds []core.ID)
	AfterTraversal(hits []core.GraphHit)
	AfterVectorSearch(hits []core.VectorHit)
	PathFailed(path string, err error)
	Finish(evidence []core.Evidence)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.Query)                  {}
func (n *noopMonitor) AfterQueryExtraction(_ []string)      {}
func (n *noopMonitor) AfterEntityResolution(_ []core.ID)    {}
func (n *noopMonitor) AfterTraversal(_ []core.GraphHit)     {}
func (n *noopMonitor) AfterVectorSearch(_ []core.VectorHit) {}
func (n *noopMonitor) PathFailed(_ string, _ error)         {}
func (n *noopMonitor) Finish(_ []core.Evidence)             {}
