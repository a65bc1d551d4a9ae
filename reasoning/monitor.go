package reasoning

import "github.com/poiesic/lexrag/core"

// Monitor provides hooks to observe the reasoning state machine.
type Monitor interface {
	StageEntered(stage core.Stage)
	StageCompleted(stage core.Stage, output string)
	Aborted(stage core.Stage, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) StageEntered(_ core.Stage)             {}
func (n *noopMonitor) StageCompleted(_ core.Stage, _ string) {}
func (n *noopMonitor) Aborted(_ core.Stage, _ error)         {}
