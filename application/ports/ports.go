package ports

import (
	"context"

	"braindump/domain/events"
)

// EntityType names the remote tables the engine persists into
type EntityType string

const (
	EntityNode      EntityType = "nodes"
	EntityEdge      EntityType = "edges"
	EntityWorkspace EntityType = "workspaces"
)

// Record is one persisted row in transport-neutral form
type Record map[string]interface{}

// Filter restricts a query by exact-match columns
type Filter map[string]interface{}

// PersistenceService is the engine's boundary to remote durability.
// This is a port in hexagonal architecture - the engine doesn't know
// about the implementation.
//
// The engine relies on two contract details: inserts can be ordered by
// the caller (nodes before dependent edges), and Delete is idempotent
// (deleting an already-absent id is not an error).
type PersistenceService interface {
	// Insert persists a new record and returns the stored row
	Insert(ctx context.Context, entityType EntityType, record Record) (Record, error)

	// Update applies a partial patch to one record
	Update(ctx context.Context, entityType EntityType, id string, patch Record) error

	// Delete removes records by id; absent ids are not an error
	Delete(ctx context.Context, entityType EntityType, ids []string) error

	// Upsert inserts or replaces records keyed by conflictKey
	Upsert(ctx context.Context, entityType EntityType, records []Record, conflictKey string) error

	// Query returns all records matching the filter
	Query(ctx context.Context, entityType EntityType, filter Filter) ([]Record, error)
}

// Enricher is the boundary to the asynchronous text enrichment service.
// Calls are fire-and-forget from the engine's point of view: a failure
// marks the node errored but never rolls back the text change.
type Enricher interface {
	// Summarize derives a short summary for the text
	Summarize(ctx context.Context, text string) (string, error)

	// Embed derives an embedding vector for the text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Observer receives engine state transitions for telemetry. Production
// builds may supply NopObserver; the Prometheus implementation lives in
// infrastructure/observability.
type Observer interface {
	// OnEvent receives every domain event the engine raises
	OnEvent(event events.DomainEvent)

	// OnSnapshotSaved fires when a snapshot is accepted into history
	OnSnapshotSaved(historyLen, cursor int)

	// OnSnapshotRejected fires when integrity validation discards a snapshot
	OnSnapshotRejected(reason string)

	// OnPersistenceFailure fires when a background remote write fails
	OnPersistenceFailure(operation string, err error)

	// OnEnrichmentFailure fires when background enrichment fails
	OnEnrichmentFailure(err error)

	// OnPositionFlush fires after each debounced position flush
	OnPositionFlush(entityCount int)
}

// NopObserver ignores every callback
type NopObserver struct{}

func (NopObserver) OnEvent(events.DomainEvent)         {}
func (NopObserver) OnSnapshotSaved(int, int)           {}
func (NopObserver) OnSnapshotRejected(string)          {}
func (NopObserver) OnPersistenceFailure(string, error) {}
func (NopObserver) OnEnrichmentFailure(error)          {}
func (NopObserver) OnPositionFlush(int)                {}
