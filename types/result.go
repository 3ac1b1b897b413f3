package types

import "time"

/**
 * GraphExecutionResult is created at the start of every execution, filled
 * in while the runtime walks the topological order, and never mutated once
 * it has been appended to the execution history.
 */
type GraphExecutionResult struct {
	ExecutionID string     `json:"execution_id"`
	GraphID     string     `json:"graph_id"`
	Status      StatusType `json:"status"`

	NodeResults  map[string]*NodeExecutionResult `json:"node_results"`
	FinalOutputs map[string]Data                 `json:"final_outputs"`

	// Opportunities gathered from every node result, in execution order.
	// Purely a pass-through; the engine never inspects the payloads.
	Opportunities []any `json:"opportunities,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`

	ErrorMessage string `json:"error_message,omitempty"`
	FailedNodeID string `json:"failed_node_id,omitempty"`
}

// Statistics aggregates a runtime's full execution history.
type Statistics struct {
	TotalExecutions      int           `json:"total_executions"`
	SuccessfulExecutions int           `json:"successful_executions"`
	SuccessRate          float64       `json:"success_rate"`
	AvgDuration          time.Duration `json:"avg_duration"`
	TotalOpportunities   int           `json:"total_opportunities"`
}
