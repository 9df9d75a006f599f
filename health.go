package docinx

import (
	"context"
	"fmt"

	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
)

// Overall health values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Health is a point-in-time report of queues, breakers and caches.
type Health struct {
	Status          string                               `json:"status"`
	Backend         string                               `json:"backend"`
	Queue           map[core.TaskKind]storage.QueueStats `json:"queue"`
	Breakers        []breaker.State                      `json:"circuit_breakers"`
	Embeddings      fallback.ChainStatus                 `json:"embedding_chain"`
	Completions     fallback.ChainStatus                 `json:"completion_chain"`
	SearchCacheSize int                                  `json:"search_cache_size"`
}

// Health reports the engine state. Breaker states are read from the shared
// store, so breakers tripped by other processes are included. Status is
// degraded while any breaker is not closed.
func (e *Engine) Health(ctx context.Context) (*Health, error) {
	queue, err := e.Worker.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	states, err := e.kv.Breakers.States(ctx)
	if err != nil {
		return nil, fmt.Errorf("breaker states: %w", err)
	}

	h := &Health{
		Status:          HealthOK,
		Backend:         e.backend,
		Queue:           queue,
		Breakers:        states,
		Embeddings:      e.Embeddings.Status(),
		Completions:     e.Completions.Status(),
		SearchCacheSize: e.Search.CacheSize(),
	}
	for _, s := range states {
		if s.State != breaker.StateClosed {
			h.Status = HealthDegraded
			break
		}
	}
	return h, nil
}
