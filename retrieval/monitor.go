package retrieval

import "github.com/poiesic/lexrag/core"

// Monitor provides hooks to observe a retrieval fan-out.
// Hooks run on the goroutine calling Search. The per-query hooks fire in
// query order once every query has finished.
type Monitor interface {
	Start(queries []string)
	QueryFailed(query string, err error)
	QueryResults(query string, passages []core.Passage)
	Finish(results []core.Passage)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ []string)                        {}
func (n *noopMonitor) QueryFailed(_ string, _ error)           {}
func (n *noopMonitor) QueryResults(_ string, _ []core.Passage) {}
func (n *noopMonitor) Finish(_ []core.Passage)                 {}
