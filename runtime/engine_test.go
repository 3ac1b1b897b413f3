package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/store/mem"
	"github.com/quantgrid/stratflow/types"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *graph.Registry {
	registry := graph.NewRegistry()
	registry.Register("emit", func(def types.NodeDefinition) (types.Node, error) {
		return &testNode{def: def, fn: func(ec *types.NodeExecutionContext) (*types.NodeExecutionResult, error) {
			value, _ := def.Config.GetFloat64("value")
			return types.NewCompletedResult(ec.NodeID, types.Data{"value": value}), nil
		}}, nil
	})
	registry.Register("double", func(def types.NodeDefinition) (types.Node, error) {
		return &testNode{def: def, fn: func(ec *types.NodeExecutionContext) (*types.NodeExecutionResult, error) {
			value, _ := ec.Inputs.GetFloat64("value")
			return types.NewCompletedResult(ec.NodeID, types.Data{"value": value * 2}), nil
		}}, nil
	})
	return registry
}

func registryGraph(t *testing.T, registry *graph.Registry, graphID string) *graph.StrategyGraph {
	g := graph.NewStrategyGraph(graphID, "doubler")

	emit, err := registry.Create(types.NodeDefinition{
		NodeID: "emit", NodeType: "emit", Category: types.CategorySource,
		Outputs: []types.OutputSpec{{Name: "value", DataType: "number"}},
		Config:  types.Data{"value": 21.0},
	})
	assert.Nil(t, err)
	double, err := registry.Create(types.NodeDefinition{
		NodeID: "double", NodeType: "double", Category: types.CategoryTransform,
		Inputs:  []types.InputSpec{{Name: "value", DataType: "number", Required: true}},
		Outputs: []types.OutputSpec{{Name: "value", DataType: "number"}},
	})
	assert.Nil(t, err)

	assert.Nil(t, g.AddNode(emit))
	assert.Nil(t, g.AddNode(double))
	assert.Nil(t, g.AddConnection(graph.Connection{FromNodeID: "emit", ToNodeID: "double"}))
	return g
}

func newTestEngine() *Engine {
	return NewEngine(mem.NewMemStore(), newTestRegistry(), types.NewEngineOptions())
}

func TestEngineRegisterAndRun(t *testing.T) {
	engine := newTestEngine()
	defer engine.Close()
	ctx := context.Background()

	g := registryGraph(t, engine.Registry(), "doubler-1")
	assert.Nil(t, engine.RegisterGraph(ctx, g))
	assert.Equal(t, []string{"doubler-1"}, engine.ListGraphIDs())

	result, err := engine.RunGraph(ctx, "doubler-1", types.Data{}, types.Data{})
	assert.Nil(t, err)
	assert.Equal(t, types.Completed, result.Status)
	assert.Equal(t, map[string]types.Data{"double": {"value": 42.0}}, result.FinalOutputs)

	// the execution record landed in the store
	records, err := engine.ExecutionRecords(ctx, "doubler-1")
	assert.Nil(t, err)
	assert.Len(t, records, 1)
	record := records[result.ExecutionID]
	assert.NotNil(t, record)
	assert.Equal(t, types.Completed, record.Status)
	assert.Equal(t, "doubler-1", record.GraphID)
}

func TestEngineRunUnknownGraph(t *testing.T) {
	engine := newTestEngine()
	defer engine.Close()

	_, err := engine.RunGraph(context.Background(), "nope", nil, nil)
	assert.True(t, errors.IsNotFound(err))

	err = engine.Submit("nope", nil, nil, nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestEngineReloadGraphs(t *testing.T) {
	s := mem.NewMemStore()
	ctx := context.Background()

	first := NewEngine(s, newTestRegistry(), types.NewEngineOptions())
	assert.Nil(t, first.RegisterGraph(ctx, registryGraph(t, first.Registry(), "doubler-1")))
	first.Close()

	// a fresh engine over the same store picks the graph document up
	second := NewEngine(s, newTestRegistry(), types.NewEngineOptions())
	defer second.Close()
	assert.Empty(t, second.ListGraphIDs())

	loadErrs, err := second.ReloadGraphs(ctx)
	assert.Nil(t, err)
	for graphID, lerr := range loadErrs {
		assert.Nil(t, lerr, "reload %s", graphID)
	}
	assert.Equal(t, []string{"doubler-1"}, second.ListGraphIDs())

	result, err := second.RunGraph(ctx, "doubler-1", nil, nil)
	assert.Nil(t, err)
	assert.Equal(t, types.Completed, result.Status)
	assert.Equal(t, map[string]types.Data{"double": {"value": 42.0}}, result.FinalOutputs)

	// already-registered graphs are skipped on the next reload
	loadErrs, err = second.ReloadGraphs(ctx)
	assert.Nil(t, err)
	assert.Empty(t, loadErrs)
}

func TestEngineReloadUnknownNodeType(t *testing.T) {
	s := mem.NewMemStore()
	ctx := context.Background()

	first := NewEngine(s, newTestRegistry(), types.NewEngineOptions())
	assert.Nil(t, first.RegisterGraph(ctx, registryGraph(t, first.Registry(), "doubler-1")))
	first.Close()

	// empty registry: the document references unregistered node types
	second := NewEngine(s, graph.NewRegistry(), types.NewEngineOptions())
	defer second.Close()

	loadErrs, err := second.ReloadGraphs(ctx)
	assert.Nil(t, err)
	assert.Len(t, loadErrs, 1)
	assert.NotNil(t, loadErrs["doubler-1"])
	assert.Empty(t, second.ListGraphIDs())
}

func TestEngineSubmit(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	assert.Nil(t, engine.RegisterGraph(ctx, registryGraph(t, engine.Registry(), "doubler-1")))

	const submissions = 5
	var wg sync.WaitGroup
	results := make(chan *types.GraphExecutionResult, submissions)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		err := engine.Submit("doubler-1", types.Data{}, types.Data{}, func(result *types.GraphExecutionResult) {
			results <- result
			wg.Done()
		})
		assert.Nil(t, err)
	}
	wg.Wait()
	engine.Close()
	close(results)

	count := 0
	for result := range results {
		assert.Equal(t, types.Completed, result.Status)
		count++
	}
	assert.Equal(t, submissions, count)

	rt, exists := engine.Runtime("doubler-1")
	assert.True(t, exists)
	stats := rt.Statistics()
	assert.Equal(t, submissions, stats.TotalExecutions)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

type contextRecorder struct {
	def types.NodeDefinition

	mu  sync.Mutex
	ctx context.Context
}

func (n *contextRecorder) Definition() *types.NodeDefinition {
	return &n.def
}

func (n *contextRecorder) Execute(ctx context.Context, ec *types.NodeExecutionContext) (*types.NodeExecutionResult, error) {
	n.mu.Lock()
	n.ctx = ctx
	n.mu.Unlock()
	return types.NewCompletedResult(ec.NodeID, types.Data{}), nil
}

func TestEngineSubmitRunsUnderEngineContext(t *testing.T) {
	type scopeKey struct{}
	base := context.WithValue(context.Background(), scopeKey{}, "engine-scope")
	opts := types.NewEngineOptions()
	types.WithContext(base)(opts)
	engine := NewEngine(mem.NewMemStore(), graph.NewRegistry(), opts)

	recorder := &contextRecorder{def: types.NodeDefinition{
		NodeID: "probe-ctx", NodeType: "recorder", Category: types.CategoryMonitor,
	}}
	g := graph.NewStrategyGraph("ctx-graph", "context plumbing")
	assert.Nil(t, g.AddNode(recorder))
	assert.Nil(t, engine.RegisterGraph(context.Background(), g))

	var wg sync.WaitGroup
	wg.Add(1)
	assert.Nil(t, engine.Submit("ctx-graph", nil, nil, func(*types.GraphExecutionResult) {
		wg.Done()
	}))
	wg.Wait()

	// the node ran under a context derived from the one given to the engine
	recorder.mu.Lock()
	seen := recorder.ctx
	recorder.mu.Unlock()
	assert.NotNil(t, seen)
	assert.Equal(t, "engine-scope", seen.Value(scopeKey{}))
	assert.Nil(t, seen.Err())

	// Close cancels the engine context
	engine.Close()
	assert.NotNil(t, seen.Err())
}

func TestEngineRenderGraph(t *testing.T) {
	engine := newTestEngine()
	defer engine.Close()
	ctx := context.Background()
	assert.Nil(t, engine.RegisterGraph(ctx, registryGraph(t, engine.Registry(), "doubler-1")))

	dot, err := engine.RenderGraph("doubler-1")
	assert.Nil(t, err)
	assert.Contains(t, dot, "digraph D {")
	assert.Contains(t, dot, "emit")
	assert.Contains(t, dot, "double")
	assert.Contains(t, dot, "emit -> double")
	// no execution yet: no status fill
	assert.NotContains(t, dot, "style=")

	_, err = engine.RunGraph(ctx, "doubler-1", nil, nil)
	assert.Nil(t, err)
	dot, err = engine.RenderGraph("doubler-1")
	assert.Nil(t, err)
	assert.Contains(t, dot, "green")

	_, err = engine.RenderGraph("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestEngineUnregisterGraph(t *testing.T) {
	engine := newTestEngine()
	defer engine.Close()
	ctx := context.Background()
	assert.Nil(t, engine.RegisterGraph(ctx, registryGraph(t, engine.Registry(), "doubler-1")))

	assert.Nil(t, engine.UnregisterGraph(ctx, "doubler-1"))
	assert.Empty(t, engine.ListGraphIDs())
	_, err := engine.RunGraph(ctx, "doubler-1", nil, nil)
	assert.True(t, errors.IsNotFound(err))

	// the document is gone from the store too
	loadErrs, err := engine.ReloadGraphs(ctx)
	assert.Nil(t, err)
	assert.Empty(t, loadErrs)
	assert.Empty(t, engine.ListGraphIDs())

	assert.True(t, errors.IsNotFound(engine.UnregisterGraph(ctx, "doubler-1")))
}

func TestEngineRegisterGraphValidation(t *testing.T) {
	engine := newTestEngine()
	defer engine.Close()

	assert.NotNil(t, engine.RegisterGraph(context.Background(), nil))
	assert.NotNil(t, engine.RegisterGraph(context.Background(), graph.NewStrategyGraph("", "anonymous")))
}
