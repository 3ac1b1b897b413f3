package types

import (
	"context"
	"time"
)

// InputSpec declares one named input a node expects.
type InputSpec struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// OutputSpec declares one named output a node produces.
type OutputSpec struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

/**
 * NodeDefinition is the static description of a node: identity, category,
 * declared inputs/outputs and opaque configuration. The graph owns the
 * definition once the node is added; the runtime resolves connections
 * against the declared input/output lists.
 */
type NodeDefinition struct {
	NodeID   string       `json:"node_id"`
	NodeType string       `json:"node_type"`
	Category NodeCategory `json:"category"`
	Inputs   []InputSpec  `json:"inputs"`
	Outputs  []OutputSpec `json:"outputs"`
	Config   Data         `json:"config"`
}

/**
 * ValidateInputs reports the first declared required input that is absent
 * from supplied and carries no default. It is a helper for node authors:
 * the runtime loop does NOT call it before executing a node.
 */
func (d *NodeDefinition) ValidateInputs(supplied Data) error {
	for _, spec := range d.Inputs {
		if !spec.Required {
			continue
		}
		if _, exists := supplied[spec.Name]; exists {
			continue
		}
		if spec.Default == nil {
			return NewMissingInputError(d.NodeID, spec.Name)
		}
	}
	return nil
}

// Node is the single extension point of the engine. Concrete node
// implementations (API fetchers, risk checks, order placement) live outside
// this module and are registered through graph.Registry.
type Node interface {
	Definition() *NodeDefinition

	/**
	 * Execute runs the node against the resolved inputs in ec.
	 * A business failure should be reported as a result with Failed
	 * status (or a non-nil error; the runtime normalizes both).
	 */
	Execute(ctx context.Context, ec *NodeExecutionContext) (*NodeExecutionResult, error)
}

// NodeExecutionContext is the per-node, per-execution scratch object.
// SharedState is a reference to the execution-wide bag, not a copy.
type NodeExecutionContext struct {
	NodeID      string
	GraphID     string
	ExecutionID string

	Inputs      Data
	SharedState Data

	StartedAt time.Time
}

// NodeExecutionResult is immutable once returned by a node.
type NodeExecutionResult struct {
	NodeID       string        `json:"node_id"`
	Status       StatusType    `json:"status"`
	Outputs      Data          `json:"outputs,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	Metadata     Data          `json:"metadata,omitempty"`

	// Opportunities are opaque domain payloads; the runtime moves them onto
	// the graph result without looking inside.
	Opportunities []any `json:"opportunities,omitempty"`
}

func NewCompletedResult(nodeID string, outputs Data) *NodeExecutionResult {
	return &NodeExecutionResult{NodeID: nodeID, Status: Completed, Outputs: outputs}
}

func NewFailedResult(nodeID string, err error) *NodeExecutionResult {
	r := &NodeExecutionResult{NodeID: nodeID, Status: Failed}
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}
