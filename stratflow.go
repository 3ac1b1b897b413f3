package stratflow

import (
	"github.com/juju/errors"
	"github.com/quantgrid/stratflow/graph"
	"github.com/quantgrid/stratflow/runtime"
	"github.com/quantgrid/stratflow/store"
	"github.com/quantgrid/stratflow/store/mem"
	"github.com/quantgrid/stratflow/store/postgres"
	"github.com/quantgrid/stratflow/types"
)

// NewEngine creates a new strategy-graph engine with the given options.
// Concrete node types are registered against engine.Registry() by the
// domain adapters before graphs are built or reloaded.
func NewEngine(opts ...types.EngineOption) (*runtime.Engine, error) {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	var s store.Store
	var err error

	// EnableMemStore wins over PostgresConfig, so a test setup can reuse
	// production options without touching a database
	if !options.MemStore && options.PostgresConfig != nil {
		pgConfig := &postgres.Config{
			Host:     options.PostgresConfig.Host,
			Port:     options.PostgresConfig.Port,
			User:     options.PostgresConfig.User,
			Password: options.PostgresConfig.Password,
			Database: options.PostgresConfig.Database,
			SSLMode:  options.PostgresConfig.SSLMode,
		}

		s, err = postgres.NewPostgresStore(pgConfig)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
	} else {
		s = mem.NewMemStore()
	}

	return runtime.NewEngine(s, graph.NewRegistry(), options), nil
}
