package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braindump/application/ports"
)

func TestInsert_StoresACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	record := ports.Record{"id": "n1", "text": "hello"}
	stored, err := s.Insert(ctx, ports.EntityNode, record)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored["text"])

	// Mutating the caller's record must not reach the table
	record["text"] = "mutated"
	got, ok := s.Record(ports.EntityNode, "n1")
	require.True(t, ok)
	assert.Equal(t, "hello", got["text"])
}

func TestInsert_DuplicateIDFails(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n1"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n1"})
	assert.Error(t, err)
}

func TestInsert_MissingIDFails(t *testing.T) {
	s := NewStore()

	_, err := s.Insert(context.Background(), ports.EntityNode, ports.Record{"text": "no id"})
	assert.Error(t, err)
}

func TestUpdate_PatchesOnlyGivenFields(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n1", "text": "hello", "x": 5.0})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, ports.EntityNode, "n1", ports.Record{"x": 10.0}))

	got, _ := s.Record(ports.EntityNode, "n1")
	assert.Equal(t, 10.0, got["x"])
	assert.Equal(t, "hello", got["text"])
}

func TestUpdate_MissingIDFails(t *testing.T) {
	s := NewStore()

	err := s.Update(context.Background(), ports.EntityNode, "ghost", ports.Record{"x": 1.0})
	assert.Error(t, err)
}

func TestDelete_IsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, ports.EntityEdge, ports.Record{"id": "e1"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ports.EntityEdge, []string{"e1", "ghost"}))
	require.NoError(t, s.Delete(ctx, ports.EntityEdge, []string{"e1"}))
	assert.Equal(t, 0, s.Count(ports.EntityEdge))
}

func TestUpsert_InsertsThenReplaces(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, ports.EntityNode, []ports.Record{
		{"id": "n1", "text": "first"},
	}, "id"))
	require.NoError(t, s.Upsert(ctx, ports.EntityNode, []ports.Record{
		{"id": "n1", "text": "second"},
		{"id": "n2", "text": "other"},
	}, "id"))

	assert.Equal(t, 2, s.Count(ports.EntityNode))
	got, _ := s.Record(ports.EntityNode, "n1")
	assert.Equal(t, "second", got["text"])
}

func TestUpsert_MissingConflictKeyFails(t *testing.T) {
	s := NewStore()

	err := s.Upsert(context.Background(), ports.EntityNode, []ports.Record{{"text": "keyless"}}, "id")
	assert.Error(t, err)
}

func TestQuery_FiltersExactMatches(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n1", "workspace_id": "w1"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n2", "workspace_id": "w2"})
	require.NoError(t, err)

	results, err := s.Query(ctx, ports.EntityNode, ports.Filter{"workspace_id": "w1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0]["id"])

	all, err := s.Query(ctx, ports.EntityNode, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFailWith_ScriptsAnOperation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailWith("insert", ports.EntityEdge, boom)

	// Only the scripted op/entity pair fails
	_, err := s.Insert(ctx, ports.EntityEdge, ports.Record{"id": "e1"})
	assert.ErrorIs(t, err, boom)
	_, err = s.Insert(ctx, ports.EntityNode, ports.Record{"id": "n1"})
	assert.NoError(t, err)

	s.ClearFailures()
	_, err = s.Insert(ctx, ports.EntityEdge, ports.Record{"id": "e1"})
	assert.NoError(t, err)
}
