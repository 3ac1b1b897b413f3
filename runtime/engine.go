package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/juju/errors"

	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/store"
	"github.com/quantgrid/stratflow/types"
)

/**
 * Engine hosts many strategy graphs at once: it owns the node registry,
 * persists every registered graph's document to the store, and fans
 * submitted executions out over a bounded worker pool. Each execution
 * stays strictly sequential inside; the pool only bounds how many
 * independent executions run at the same time.
 */
type Engine struct {
	registry *graph.Registry
	store    store.Store
	wp       *workerpool.WorkerPool

	// engine lifetime; submitted executions run under it and Close cancels it
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	runtimes map[string]*GraphRuntime
}

func NewEngine(s store.Store, registry *graph.Registry, opts *types.EngineOptions) *Engine {
	if registry == nil {
		registry = graph.NewRegistry()
	}
	baseCtx := opts.Ctx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	return &Engine{
		registry: registry,
		store:    s,
		wp:       workerpool.New(opts.MaxConcurrentExecutions),
		ctx:      ctx,
		cancel:   cancel,
		runtimes: make(map[string]*GraphRuntime),
	}
}

func (e *Engine) Registry() *graph.Registry {
	return e.registry
}

/**
 * RegisterGraph takes ownership of g, persists its document and makes it
 * runnable. Registering an id again replaces the previous graph; in-flight
 * executions of the old runtime finish against the old structure.
 */
func (e *Engine) RegisterGraph(ctx context.Context, g *graph.StrategyGraph) error {
	if g == nil {
		return errors.BadRequestf("graph is nil")
	}
	if g.GraphID == "" {
		return errors.BadRequestf("graph has no id")
	}
	if err := e.saveGraphDocument(ctx, g); err != nil {
		return errors.Trace(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtimes[g.GraphID] = NewGraphRuntimeWithStore(g, e.store)
	return nil
}

func (e *Engine) Runtime(graphID string) (*GraphRuntime, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rt, exists := e.runtimes[graphID]
	return rt, exists
}

func (e *Engine) Graph(graphID string) (*graph.StrategyGraph, bool) {
	rt, exists := e.Runtime(graphID)
	if !exists {
		return nil, false
	}
	return rt.Graph(), true
}

func (e *Engine) ListGraphIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.runtimes))
	for id := range e.runtimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunGraph executes a registered graph synchronously on the caller's
// goroutine. Execution problems land in the result, not in the error.
func (e *Engine) RunGraph(ctx context.Context, graphID string, initialInputs, sharedState types.Data) (*types.GraphExecutionResult, error) {
	rt, exists := e.Runtime(graphID)
	if !exists {
		return nil, errors.NotFoundf("graph: %s", graphID)
	}
	return rt.Execute(ctx, initialInputs, sharedState), nil
}

/**
 * Submit queues an execution on the worker pool and returns immediately.
 * The execution runs under the engine's own context (the one given through
 * WithContext), not a caller context: the call outlives the caller, and
 * Close cancels what is still queued or running. done (optional) receives
 * the result on the pool goroutine. Do not share one sharedState map
 * between submissions that can overlap.
 */
func (e *Engine) Submit(graphID string, initialInputs, sharedState types.Data, done func(*types.GraphExecutionResult)) error {
	rt, exists := e.Runtime(graphID)
	if !exists {
		return errors.NotFoundf("graph: %s", graphID)
	}

	e.wp.Submit(func() {
		result := rt.Execute(e.ctx, initialInputs, sharedState)
		if done != nil {
			done(result)
		}
	})
	return nil
}

// LoadGraph rebuilds a graph from its stored document through the registry
// and registers a runtime for it.
func (e *Engine) LoadGraph(ctx context.Context, graphID string) (*graph.StrategyGraph, error) {
	g, err := e.loadGraphDocument(ctx, graphID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtimes[g.GraphID] = NewGraphRuntimeWithStore(g, e.store)
	return g, nil
}

/**
 * ReloadGraphs loads every stored graph document that is not registered
 * yet. The per-graph error map reports partial failures; the overall error
 * covers the store listing itself.
 */
func (e *Engine) ReloadGraphs(ctx context.Context) (map[string]error, error) {
	loadErrs := make(map[string]error)
	err := e.store.List(ctx, GraphDocPath, func(graphID string) bool {
		if _, exists := e.Runtime(graphID); exists {
			return true
		}
		if _, lerr := e.LoadGraph(ctx, graphID); lerr != nil {
			loadErrs[graphID] = errors.Trace(lerr)
		}
		return true
	})
	if len(loadErrs) == 0 {
		loadErrs = nil
	}
	return loadErrs, errors.Trace(err)
}

// UnregisterGraph drops the runtime and deletes the stored graph
// document. Persisted execution records stay behind for auditing.
func (e *Engine) UnregisterGraph(ctx context.Context, graphID string) error {
	e.mu.Lock()
	_, exists := e.runtimes[graphID]
	delete(e.runtimes, graphID)
	e.mu.Unlock()

	if !exists {
		return errors.NotFoundf("graph: %s", graphID)
	}
	return errors.Trace(e.removeGraphDocument(ctx, graphID))
}

// RenderGraph returns the graph as Graphviz DOT, colored by the latest
// recorded execution when one exists.
func (e *Engine) RenderGraph(graphID string) (string, error) {
	rt, exists := e.Runtime(graphID)
	if !exists {
		return "", errors.NotFoundf("graph: %s", graphID)
	}

	var last *types.GraphExecutionResult
	if history := rt.ExecutionHistory(); len(history) > 0 {
		last = history[len(history)-1]
	}
	return renderDOT(rt.Graph(), last), nil
}

// Close cancels the engine context and drains the submission pool,
// waiting for queued executions.
func (e *Engine) Close() {
	e.cancel()
	e.wp.StopWait()
}
