package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/store"
	"github.com/quantgrid/stratflow/types"
	"github.com/quantgrid/stratflow/utils"
)

var executionSeq uint64

// nextExecutionID is unique across concurrent executions process-wide.
func nextExecutionID() string {
	return fmt.Sprintf("exec_%d_%d", time.Now().UnixNano(), atomic.AddUint64(&executionSeq, 1))
}

/**
 * GraphRuntime executes one StrategyGraph: it computes the topological
 * order, runs nodes strictly one at a time on the caller's goroutine,
 * routes outputs to downstream inputs, and records every execution in an
 * unbounded history.
 *
 * A single Execute call never parallelizes independent nodes, even when
 * the DAG shape would allow it. Multiple Execute calls may run
 * concurrently; only the history append is synchronized here, the graph
 * structure must not be mutated while any of them is in flight.
 */
type GraphRuntime struct {
	graph *graph.StrategyGraph
	store store.Store // nil disables record persistence

	historyMu sync.Mutex
	history   []*types.GraphExecutionResult
}

func NewGraphRuntime(g *graph.StrategyGraph) *GraphRuntime {
	return &GraphRuntime{graph: g}
}

// NewGraphRuntimeWithStore persists every execution record to s, keyed by
// execution id under the graph's record prefix.
func NewGraphRuntimeWithStore(g *graph.StrategyGraph, s store.Store) *GraphRuntime {
	return &GraphRuntime{graph: g, store: s}
}

func (rt *GraphRuntime) Graph() *graph.StrategyGraph {
	return rt.graph
}

/**
 * Execute runs the graph once. It never returns an error: cycles, node
 * failures and panics are all normalized into the result's status and
 * error fields, so monitoring callers always get a well-formed result.
 *
 * sharedState is handed to every node by reference; callers must not
 * reuse one sharedState map across two concurrently running executions.
 */
func (rt *GraphRuntime) Execute(ctx context.Context, initialInputs, sharedState types.Data) *types.GraphExecutionResult {
	if initialInputs == nil {
		initialInputs = types.Data{}
	}
	if sharedState == nil {
		sharedState = types.Data{}
	}

	result := &types.GraphExecutionResult{
		ExecutionID:  nextExecutionID(),
		GraphID:      rt.graph.GraphID,
		Status:       types.Running,
		NodeResults:  make(map[string]*types.NodeExecutionResult),
		FinalOutputs: make(map[string]types.Data),
		StartedAt:    time.Now(),
	}

	rt.run(ctx, result, initialInputs, sharedState)

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	rt.appendHistory(result)
	rt.persistRecord(ctx, result)
	return result
}

func (rt *GraphRuntime) run(ctx context.Context, result *types.GraphExecutionResult, initialInputs, sharedState types.Data) {
	defer func() {
		if r := recover(); r != nil {
			result.Status = types.Failed
			result.ErrorMessage = fmt.Sprintf("panic during execution: %v", r)
		}
	}()

	order, err := rt.graph.TopologicalOrder()
	if err != nil {
		result.Status = types.Failed
		result.ErrorMessage = err.Error()
		return
	}

	// outputs recorded so far, keyed by node id
	recorded := make(map[string]types.Data, len(order))

	for _, nodeID := range order {
		node, exists := rt.graph.Node(nodeID)
		if !exists {
			// graph mutated mid-flight; treat like any other failure
			result.Status = types.Failed
			result.FailedNodeID = nodeID
			result.ErrorMessage = fmt.Sprintf("node %s vanished from graph", nodeID)
			return
		}

		ec := &types.NodeExecutionContext{
			NodeID:      nodeID,
			GraphID:     rt.graph.GraphID,
			ExecutionID: result.ExecutionID,
			Inputs:      rt.resolveInputs(nodeID, recorded, initialInputs),
			SharedState: sharedState,
			StartedAt:   time.Now(),
		}

		log.Debugf("%s executing node %s", result.ExecutionID, nodeID)
		nodeResult := runNode(ctx, node, ec)
		result.NodeResults[nodeID] = nodeResult
		result.Opportunities = append(result.Opportunities, nodeResult.Opportunities...)

		if nodeResult.Status == types.Failed {
			result.Status = types.Failed
			result.FailedNodeID = nodeID
			result.ErrorMessage = nodeResult.ErrorMessage
			log.Debugf("%s node %s failed: %s", result.ExecutionID, nodeID, nodeResult.ErrorMessage)
			return
		}

		recorded[nodeID] = nodeResult.Outputs
	}

	result.Status = types.Completed
	for _, nodeID := range rt.graph.TerminalNodeIDs() {
		if outputs, exists := recorded[nodeID]; exists {
			result.FinalOutputs[nodeID] = utils.CloneMap(outputs)
		}
	}
}

/**
 * resolveInputs binds upstream outputs into the node's input map. Each
 * connection's indices select the *declared* specs: the value recorded
 * under the upstream's declared output name moves in under this node's
 * declared input name. Missing upstream outputs and out-of-range indices
 * are skipped silently; gaps are tolerated by contract.
 *
 * A node with no incoming connections is a source node and additionally
 * receives the caller's initial inputs.
 */
func (rt *GraphRuntime) resolveInputs(nodeID string, recorded map[string]types.Data, initialInputs types.Data) types.Data {
	inputs := types.Data{}

	target, exists := rt.graph.Node(nodeID)
	if !exists {
		return inputs
	}
	targetDef := target.Definition()

	hasIncoming := false
	for _, conn := range rt.graph.Connections() {
		if conn.ToNodeID != nodeID {
			continue
		}
		hasIncoming = true

		upstream, exists := rt.graph.Node(conn.FromNodeID)
		if !exists {
			continue
		}
		upstreamDef := upstream.Definition()
		if conn.FromOutputIndex < 0 || conn.FromOutputIndex >= len(upstreamDef.Outputs) {
			continue
		}
		outputName := upstreamDef.Outputs[conn.FromOutputIndex].Name

		value, present := recorded[conn.FromNodeID][outputName]
		if !present {
			continue
		}
		if conn.ToInputIndex < 0 || conn.ToInputIndex >= len(targetDef.Inputs) {
			continue
		}
		inputs[targetDef.Inputs[conn.ToInputIndex].Name] = value
	}

	if !hasIncoming {
		inputs.Merge(initialInputs)
	}
	return inputs
}

// runNode drives a single node, normalizing returned errors and panics
// into a Failed result so the walk can fail fast without unwinding.
func runNode(ctx context.Context, node types.Node, ec *types.NodeExecutionContext) (nodeResult *types.NodeExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			nodeResult = &types.NodeExecutionResult{
				NodeID:       ec.NodeID,
				Status:       types.Failed,
				ErrorMessage: fmt.Sprintf("panic on %s: %v", ec.NodeID, r),
				Duration:     time.Since(start),
			}
		}
	}()

	result, err := node.Execute(ctx, ec)
	if err != nil {
		failed := types.NewFailedResult(ec.NodeID, err)
		failed.Duration = time.Since(start)
		return failed
	}
	if result == nil {
		result = types.NewCompletedResult(ec.NodeID, types.Data{})
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

func (rt *GraphRuntime) appendHistory(result *types.GraphExecutionResult) {
	rt.historyMu.Lock()
	defer rt.historyMu.Unlock()

	rt.history = append(rt.history, result)
}

/**
 * ExecutionHistory returns the recorded results, oldest first. The history
 * grows without bound; a caller needing bounded memory trims externally.
 */
func (rt *GraphRuntime) ExecutionHistory() []*types.GraphExecutionResult {
	rt.historyMu.Lock()
	defer rt.historyMu.Unlock()

	history := make([]*types.GraphExecutionResult, len(rt.history))
	copy(history, rt.history)
	return history
}

func (rt *GraphRuntime) Statistics() types.Statistics {
	rt.historyMu.Lock()
	defer rt.historyMu.Unlock()

	stats := types.Statistics{TotalExecutions: len(rt.history)}
	if stats.TotalExecutions == 0 {
		return stats
	}

	var totalDuration time.Duration
	for _, result := range rt.history {
		if result.Status == types.Completed {
			stats.SuccessfulExecutions++
		}
		totalDuration += result.Duration
		stats.TotalOpportunities += len(result.Opportunities)
	}
	stats.SuccessRate = float64(stats.SuccessfulExecutions) / float64(stats.TotalExecutions)
	stats.AvgDuration = totalDuration / time.Duration(stats.TotalExecutions)
	return stats
}
