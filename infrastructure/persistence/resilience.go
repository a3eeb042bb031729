// Package persistence provides cross-adapter decorators for the
// PersistenceService port.
package persistence

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"braindump/application/ports"
)

var _ ports.PersistenceService = (*Resilient)(nil)

// Resilient wraps a PersistenceService with a circuit breaker. When the
// remote store degrades, the breaker fails fast instead of stacking
// timed-out writes behind every optimistic mutation.
type Resilient struct {
	inner   ports.PersistenceService
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilient wraps the given service. The breaker opens after five
// consecutive failures and probes again after thirty seconds.
func NewResilient(inner ports.PersistenceService, logger *zap.Logger) *Resilient {
	settings := gobreaker.Settings{
		Name:        "persistence",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("persistence circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Resilient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (r *Resilient) Insert(ctx context.Context, entity ports.EntityType, record ports.Record) (ports.Record, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Insert(ctx, entity, record)
	})
	if err != nil {
		return nil, err
	}
	return result.(ports.Record), nil
}

func (r *Resilient) Update(ctx context.Context, entity ports.EntityType, id string, patch ports.Record) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Update(ctx, entity, id, patch)
	})
	return err
}

func (r *Resilient) Delete(ctx context.Context, entity ports.EntityType, ids []string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Delete(ctx, entity, ids)
	})
	return err
}

func (r *Resilient) Upsert(ctx context.Context, entity ports.EntityType, records []ports.Record, conflictKey string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Upsert(ctx, entity, records, conflictKey)
	})
	return err
}

func (r *Resilient) Query(ctx context.Context, entity ports.EntityType, filter ports.Filter) ([]ports.Record, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Query(ctx, entity, filter)
	})
	if err != nil {
		return nil, err
	}
	return result.([]ports.Record), nil
}

// State exposes the breaker state for the debug surface
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}
