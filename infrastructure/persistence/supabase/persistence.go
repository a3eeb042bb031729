// Package supabase implements the PersistenceService against a Supabase
// project's PostgREST endpoint. One table per entity type, named by the
// EntityType value.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"braindump/application/ports"
	pkgerrors "braindump/pkg/errors"
)

var _ ports.PersistenceService = (*Persistence)(nil)

type Persistence struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewPersistence connects to a Supabase project. Use the service role
// key: row-level security is expected to be enforced upstream of this
// process, not here.
func NewPersistence(url, serviceKey string, logger *zap.Logger) (*Persistence, error) {
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create supabase client")
	}
	return &Persistence{client: client, logger: logger}, nil
}

// Insert creates a row and returns the server's representation of it.
// The underlying client carries its own HTTP plumbing; the context is
// not threaded through it.
func (p *Persistence) Insert(ctx context.Context, entity ports.EntityType, record ports.Record) (ports.Record, error) {
	data, _, err := p.client.From(string(entity)).
		Insert(record, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", entity, err)
	}

	var rows []ports.Record
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		// The row was written; a missing representation is not worth
		// failing the operation over
		p.logger.Debug("insert returned no representation", zap.String("entity", string(entity)))
		return record, nil
	}
	return rows[0], nil
}

// Update patches a single row by id
func (p *Persistence) Update(ctx context.Context, entity ports.EntityType, id string, patch ports.Record) error {
	_, _, err := p.client.From(string(entity)).
		Update(patch, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", entity, id, err)
	}
	return nil
}

// Delete removes rows by id. PostgREST deletes are idempotent: absent
// ids simply match nothing.
func (p *Persistence) Delete(ctx context.Context, entity ports.EntityType, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, _, err := p.client.From(string(entity)).
		Delete("", "").
		In("id", ids).
		Execute()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", entity, err)
	}
	return nil
}

// Upsert inserts or replaces rows keyed by the conflict column
func (p *Persistence) Upsert(ctx context.Context, entity ports.EntityType, records []ports.Record, conflictKey string) error {
	if len(records) == 0 {
		return nil
	}
	_, _, err := p.client.From(string(entity)).
		Insert(records, true, conflictKey, "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", entity, err)
	}
	return nil
}

// Query returns all rows matching every filter field exactly
func (p *Persistence) Query(ctx context.Context, entity ports.EntityType, filter ports.Filter) ([]ports.Record, error) {
	builder := p.client.From(string(entity)).Select("*", "", false)
	for column, value := range filter {
		builder = builder.Eq(column, fmt.Sprint(value))
	}

	data, _, err := builder.Execute()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}

	var rows []ports.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", entity, err)
	}
	return rows, nil
}
