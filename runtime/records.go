package runtime

import (
	"context"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/types"
	"github.com/quantgrid/stratflow/utils"
)

const (
	GraphDocPath = "/graph/"
	RecordPath   = "/execution/"
)

func recordSavePath(graphID string) string {
	return RecordPath + graphID
}

// persistRecord is best effort: an execution must not fail because the
// audit store is down.
func (rt *GraphRuntime) persistRecord(ctx context.Context, result *types.GraphExecutionResult) {
	if rt.store == nil {
		return
	}
	b, err := utils.Serialize(result)
	if err != nil {
		log.Errorf("%s failed to serialize execution record: %v", result.ExecutionID, err)
		return
	}
	if err := rt.store.Set(ctx, recordSavePath(result.GraphID), result.ExecutionID, b); err != nil {
		log.Errorf("%s failed to save execution record: %v", result.ExecutionID, err)
	}
}

func (e *Engine) saveGraphDocument(ctx context.Context, g *graph.StrategyGraph) error {
	b, err := g.Serialize()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.store.Set(ctx, GraphDocPath, g.GraphID, b))
}

func (e *Engine) loadGraphDocument(ctx context.Context, graphID string) (*graph.StrategyGraph, error) {
	b, err := e.store.Get(ctx, GraphDocPath, graphID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, errors.NotFoundf("graph document: %s", graphID)
	}
	g, err := graph.Deserialize(b, e.registry)
	return g, errors.Trace(err)
}

func (e *Engine) removeGraphDocument(ctx context.Context, graphID string) error {
	return errors.Trace(e.store.Remove(ctx, GraphDocPath, graphID))
}

/**
 * ExecutionRecords reads the persisted execution records of one graph back
 * from the store, keyed by execution id. Records that fail to decode are
 * logged and skipped, so one corrupt row cannot hide the rest.
 */
func (e *Engine) ExecutionRecords(ctx context.Context, graphID string) (map[string]*types.GraphExecutionResult, error) {
	records := make(map[string]*types.GraphExecutionResult)
	recordPath := recordSavePath(graphID)
	err := e.store.List(ctx, recordPath, func(executionID string) bool {
		b, err := e.store.Get(ctx, recordPath, executionID)
		if err != nil {
			log.Errorf("load %s %s from store failed: %v", recordPath, executionID, err)
			return true
		}
		record := &types.GraphExecutionResult{}
		if err := utils.Unserialize(b, record); err != nil {
			log.Errorf("unserialize %s %s from store failed: %v", recordPath, executionID, err)
			return true
		}
		records[executionID] = record
		return true
	})
	return records, errors.Trace(err)
}
