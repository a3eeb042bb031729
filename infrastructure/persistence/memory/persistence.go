// Package memory provides an in-process PersistenceService used by
// tests and the local debug binary. It mimics the remote adapter's
// contract, including idempotent deletes and conflict-key upserts, and
// supports scripted failures so callers' rollback paths can be
// exercised.
package memory

import (
	"context"
	"fmt"
	"sync"

	"braindump/application/ports"
)

type failureKey struct {
	op     string
	entity ports.EntityType
}

var _ ports.PersistenceService = (*Store)(nil)

// Store is a mutex-guarded table-per-entity record store
type Store struct {
	mu       sync.RWMutex
	tables   map[ports.EntityType]map[string]ports.Record
	failures map[failureKey]error
}

func NewStore() *Store {
	return &Store{
		tables:   make(map[ports.EntityType]map[string]ports.Record),
		failures: make(map[failureKey]error),
	}
}

// FailWith makes every subsequent call of the given operation on the
// given entity return err, until ClearFailures. Operation names:
// "insert", "update", "delete", "upsert", "query".
func (s *Store) FailWith(op string, entity ports.EntityType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failureKey{op: op, entity: entity}] = err
}

// ClearFailures removes all scripted failures
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[failureKey]error)
}

func (s *Store) failureLocked(op string, entity ports.EntityType) error {
	return s.failures[failureKey{op: op, entity: entity}]
}

func (s *Store) tableLocked(entity ports.EntityType) map[string]ports.Record {
	table, ok := s.tables[entity]
	if !ok {
		table = make(map[string]ports.Record)
		s.tables[entity] = table
	}
	return table
}

// Insert stores a new record. The record must carry a string "id";
// inserting an existing id fails.
func (s *Store) Insert(ctx context.Context, entity ports.EntityType, record ports.Record) (ports.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failureLocked("insert", entity); err != nil {
		return nil, err
	}

	id, ok := record["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("insert into %s: record has no id", entity)
	}

	table := s.tableLocked(entity)
	if _, exists := table[id]; exists {
		return nil, fmt.Errorf("insert into %s: id %s already exists", entity, id)
	}
	table[id] = copyRecord(record)
	return copyRecord(record), nil
}

// Update patches an existing record with the given fields
func (s *Store) Update(ctx context.Context, entity ports.EntityType, id string, patch ports.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failureLocked("update", entity); err != nil {
		return err
	}

	table := s.tableLocked(entity)
	record, exists := table[id]
	if !exists {
		return fmt.Errorf("update %s: id %s not found", entity, id)
	}
	for key, value := range patch {
		record[key] = value
	}
	return nil
}

// Delete removes records by id. Missing ids are ignored so retries and
// cascades are idempotent.
func (s *Store) Delete(ctx context.Context, entity ports.EntityType, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failureLocked("delete", entity); err != nil {
		return err
	}

	table := s.tableLocked(entity)
	for _, id := range ids {
		delete(table, id)
	}
	return nil
}

// Upsert inserts or replaces records keyed by the conflict column
func (s *Store) Upsert(ctx context.Context, entity ports.EntityType, records []ports.Record, conflictKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failureLocked("upsert", entity); err != nil {
		return err
	}

	table := s.tableLocked(entity)
	for _, record := range records {
		key, ok := record[conflictKey].(string)
		if !ok || key == "" {
			return fmt.Errorf("upsert into %s: record has no %s", entity, conflictKey)
		}
		table[key] = copyRecord(record)
	}
	return nil
}

// Query returns copies of all records matching every filter field
func (s *Store) Query(ctx context.Context, entity ports.EntityType, filter ports.Filter) ([]ports.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failureLocked("query", entity); err != nil {
		return nil, err
	}

	table := s.tables[entity]
	var results []ports.Record
	for _, record := range table {
		if matches(record, filter) {
			results = append(results, copyRecord(record))
		}
	}
	return results, nil
}

// Count returns the number of stored records for an entity
func (s *Store) Count(entity ports.EntityType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[entity])
}

// Record returns a copy of a stored record, if present
func (s *Store) Record(entity ports.EntityType, id string) (ports.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tables[entity][id]
	if !ok {
		return nil, false
	}
	return copyRecord(record), true
}

func matches(record ports.Record, filter ports.Filter) bool {
	for key, want := range filter {
		if record[key] != want {
			return false
		}
	}
	return true
}

func copyRecord(record ports.Record) ports.Record {
	out := make(ports.Record, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}
