package types

import (
	"context"

	"github.com/mcuadros/go-defaults"
)

func NewEngineOptions() *EngineOptions {
	opts := &EngineOptions{Ctx: context.Background()}
	defaults.SetDefaults(opts)
	return opts
}

type EngineOptions struct {
	// Base context of the engine. Submitted executions run under a context
	// derived from it; Engine.Close cancels that context.
	Ctx context.Context
	/**
	 * default: 16
	 * Upper bound on graph executions running at the same time when
	 * submitted through Engine.Submit. A single execution always runs
	 * its nodes strictly one at a time; the pool only bounds how many
	 * independent executions may be in flight.
	 */
	MaxConcurrentExecutions int `default:"16"`
	/**
	 * default: false, only set it to true when doing testing or developing.
	 */
	MemStore bool `default:"false"`

	// PostgreSQL store configuration.
	// If both MemStore and PostgresConfig are set, MemStore takes precedence.
	PostgresConfig *PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

type EngineOption func(*EngineOptions)

func WithContext(ctx context.Context) EngineOption {
	return func(opts *EngineOptions) {
		opts.Ctx = ctx
	}
}

func SetMaxConcurrentExecutions(concurrency int) EngineOption {
	return func(opts *EngineOptions) {
		opts.MaxConcurrentExecutions = concurrency
	}
}

func EnableMemStore() EngineOption {
	return func(opts *EngineOptions) {
		opts.MemStore = true
	}
}

// WithPostgresConfig configures the engine to use the PostgreSQL store
func WithPostgresConfig(config *PostgresConfig) EngineOption {
	return func(opts *EngineOptions) {
		opts.PostgresConfig = config
	}
}
