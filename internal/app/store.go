package service

import (
	"context"
	"fmt"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/config"
)

// OpenStore opens the graph store selected by cfg.StoreBackend and wraps it
// with operation metrics.
func OpenStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	var (
		store graph.Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = graph.NewMemoryStore()
	case config.BackendSQLite:
		store, err = graph.OpenSQLite(cfg.SQLitePath)
	case config.BackendNeo4j:
		store, err = graph.OpenNeo4j(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return graph.NewInstrumented(store, cfg.StoreBackend), nil
}
