package types

type StatusType int32

const (
	None      StatusType = 0
	Pending   StatusType = 1
	Running   StatusType = 2
	Completed StatusType = 3
	Failed    StatusType = 4
	Skipped   StatusType = 5
	Cancelled StatusType = 6
)

func (s StatusType) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	}
	return "none"
}

type Version string

/**
 * NodeCategory tags the role a node plays inside a strategy graph.
 * The runtime never branches on it; it exists for tooling and rendering.
 */
type NodeCategory string

const (
	CategorySource    NodeCategory = "source"
	CategoryTransform NodeCategory = "transform"
	CategoryCondition NodeCategory = "condition"
	CategoryScorer    NodeCategory = "scorer"
	CategoryRisk      NodeCategory = "risk"
	CategoryOptimizer NodeCategory = "optimizer"
	CategoryExecutor  NodeCategory = "executor"
	CategoryMonitor   NodeCategory = "monitor"
	CategoryGate      NodeCategory = "gate"
	CategoryCustom    NodeCategory = "custom"
)
