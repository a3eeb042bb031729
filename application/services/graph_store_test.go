package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/config"
	"braindump/domain/core/aggregates"
	"braindump/domain/core/valueobjects"
	"braindump/infrastructure/persistence/memory"
	pkgerrors "braindump/pkg/errors"
)

func testEngineConfig() *config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.HistoryDebounce = 20 * time.Millisecond
	cfg.ImmediateSuppress = 40 * time.Millisecond
	cfg.BatchSettleDelay = 10 * time.Millisecond
	cfg.PositionFlushWindow = 20 * time.Millisecond
	return cfg
}

type testEngine struct {
	store       *GraphStore
	history     *HistoryManager
	persistence *memory.Store
	cfg         *config.EngineConfig
}

func newTestEngine(t *testing.T, enricher ports.Enricher) *testEngine {
	t.Helper()

	cfg := testEngineConfig()
	workspace, err := aggregates.NewWorkspace("test")
	require.NoError(t, err)

	mem := memory.NewStore()
	logger := zap.NewNop()

	store := NewGraphStore(workspace, cfg, mem, enricher, ports.NopObserver{}, logger)
	history := NewHistoryManager(cfg, store.Snapshot, ports.NopObserver{}, logger)
	store.AttachHistory(history)
	history.CaptureImmediate(store.Snapshot())

	t.Cleanup(func() {
		store.Dispose()
		history.Dispose()
	})

	return &testEngine{store: store, history: history, persistence: mem, cfg: cfg}
}

func pos(x, y float64) valueobjects.Position {
	return valueobjects.Position{X: x, Y: y}
}

func TestCreateNode_PersistsBeforeMemory(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "first idea", pos(10, 20))
	require.NoError(t, err)

	assert.True(t, engine.store.HasNode(id))
	assert.Equal(t, 1, engine.persistence.Count(ports.EntityNode))

	record, ok := engine.persistence.Record(ports.EntityNode, id.String())
	require.True(t, ok)
	assert.Equal(t, "first idea", record["text"])
}

func TestCreateNode_RemoteFailureLeavesMemoryUntouched(t *testing.T) {
	engine := newTestEngine(t, nil)
	engine.persistence.FailWith("insert", ports.EntityNode, errors.New("service unavailable"))

	_, err := engine.store.CreateNode(context.Background(), "doomed", pos(0, 0))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsPersistence(err))
	assert.Equal(t, 0, engine.store.NodeCount())
}

func TestCreateNode_EmptyTextRejected(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.store.CreateNode(context.Background(), "   ", pos(0, 0))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateNode_RecordsLastPlacedPosition(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.store.CreateNode(context.Background(), "idea", pos(123, 456))
	require.NoError(t, err)

	assert.Equal(t, pos(123, 456), engine.store.LastPlaced())
}

func TestUpdateNodeText_IdenticalTextIsNoOp(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "same text", pos(0, 0))
	require.NoError(t, err)
	lenBefore := engine.history.Len()

	require.NoError(t, engine.store.UpdateNodeText(ctx, id, "same text", true))

	// No-op updates must not grow history
	assert.Equal(t, lenBefore, engine.history.Len())
}

func TestUpdateNodeText_ChangePersistsEventually(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "before", pos(0, 0))
	require.NoError(t, err)

	require.NoError(t, engine.store.UpdateNodeText(ctx, id, "after", true))

	node, ok := engine.store.Node(id)
	require.True(t, ok)
	assert.Equal(t, "after", node.Content().Text())

	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityNode, id.String())
		return ok && record["text"] == "after"
	}, time.Second, 10*time.Millisecond)
}

func TestUpdateNodeText_UnknownNode(t *testing.T) {
	engine := newTestEngine(t, nil)

	err := engine.store.UpdateNodeText(context.Background(), valueobjects.NewNodeID(), "text", true)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUpdateNodeText_PersistenceFailureKeepsMemoryChange(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "before", pos(0, 0))
	require.NoError(t, err)

	engine.persistence.FailWith("update", ports.EntityNode, errors.New("write refused"))
	require.NoError(t, engine.store.UpdateNodeText(ctx, id, "after", true))

	// Optimistic: memory keeps the change even though the write failed
	node, _ := engine.store.Node(id)
	assert.Equal(t, "after", node.Content().Text())
}

func TestUpdateNodePosition_UnknownNodeFailsSilently(t *testing.T) {
	engine := newTestEngine(t, nil)

	// Must not panic or error
	engine.store.UpdateNodePosition(valueobjects.NewNodeID(), pos(1, 2))
}

func TestUpdateNodePosition_MemorySyncPersistenceDebounced(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "movable", pos(0, 0))
	require.NoError(t, err)

	engine.store.UpdateNodePosition(id, pos(50, 60))

	node, _ := engine.store.Node(id)
	assert.Equal(t, pos(50, 60), node.Position())

	// The persisted row catches up after the flush window
	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityNode, id.String())
		return ok && record["x"] == 50.0 && record["y"] == 60.0
	}, time.Second, 10*time.Millisecond)
}

func TestUpdateNodePosition_CoalescesToFinalPosition(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "dragged", pos(0, 0))
	require.NoError(t, err)

	// Simulated drag: three rapid moves, only the last may be persisted
	engine.store.UpdateNodePosition(id, pos(10, 10))
	engine.store.UpdateNodePosition(id, pos(20, 20))
	engine.store.UpdateNodePosition(id, pos(30, 30))

	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityNode, id.String())
		return ok && record["x"] == 30.0 && record["y"] == 30.0
	}, time.Second, 10*time.Millisecond)

	// Intermediate positions never reached the store
	record, _ := engine.persistence.Record(ports.EntityNode, id.String())
	assert.NotEqual(t, 10.0, record["x"])
	assert.NotEqual(t, 20.0, record["x"])
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, err := engine.store.CreateNode(ctx, "a", pos(0, 0))
	require.NoError(t, err)
	b, err := engine.store.CreateNode(ctx, "b", pos(100, 0))
	require.NoError(t, err)
	c, err := engine.store.CreateNode(ctx, "c", pos(200, 0))
	require.NoError(t, err)

	_, err = engine.store.CreateEdge(ctx, a, b, "relates-to", "")
	require.NoError(t, err)
	keep, err := engine.store.CreateEdge(ctx, b, c, "relates-to", "")
	require.NoError(t, err)

	require.NoError(t, engine.store.DeleteNode(ctx, a))

	assert.False(t, engine.store.HasNode(a))
	assert.Equal(t, 1, engine.store.EdgeCount())
	_, ok := engine.store.Edge(keep)
	assert.True(t, ok)

	// No dangling edges in the surviving state
	assert.NoError(t, engine.store.Snapshot().Validate())

	assert.Eventually(t, func() bool {
		return engine.persistence.Count(ports.EntityNode) == 2 &&
			engine.persistence.Count(ports.EntityEdge) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDeleteNode_Unknown(t *testing.T) {
	engine := newTestEngine(t, nil)

	err := engine.store.DeleteNode(context.Background(), valueobjects.NewNodeID())

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCreateEdge_Success(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))

	id, err := engine.store.CreateEdge(ctx, a, b, "supports", "because")
	require.NoError(t, err)

	edge, ok := engine.store.Edge(id)
	require.True(t, ok)
	assert.Equal(t, "supports", edge.Type())
	assert.Equal(t, "because", edge.Note())
	assert.Equal(t, 1, engine.persistence.Count(ports.EntityEdge))
}

func TestCreateEdge_UnknownParent(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	b, _ := engine.store.CreateNode(ctx, "b", pos(0, 0))

	_, err := engine.store.CreateEdge(ctx, valueobjects.NewNodeID(), b, "relates-to", "")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateEdge_SelfLoopRejected(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))

	_, err := engine.store.CreateEdge(ctx, a, a, "relates-to", "")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateEdge_DuplicateRejected(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))

	_, err := engine.store.CreateEdge(ctx, a, b, "relates-to", "")
	require.NoError(t, err)

	_, err = engine.store.CreateEdge(ctx, a, b, "relates-to", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	// Same endpoints with a different type is a distinct edge
	_, err = engine.store.CreateEdge(ctx, a, b, "supports", "")
	assert.NoError(t, err)
}

func TestCreateEdge_UnknownTypeRejected(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))

	_, err := engine.store.CreateEdge(ctx, a, b, "invents", "")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateEdge_CycleRejected(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))
	c, _ := engine.store.CreateNode(ctx, "c", pos(200, 0))

	_, err := engine.store.CreateEdge(ctx, a, b, "relates-to", "")
	require.NoError(t, err)
	_, err = engine.store.CreateEdge(ctx, b, c, "relates-to", "")
	require.NoError(t, err)

	// c -> a would close the cycle a -> b -> c -> a
	_, err = engine.store.CreateEdge(ctx, c, a, "relates-to", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateEdge_RemoteFailureLeavesMemoryUntouched(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))

	engine.persistence.FailWith("insert", ports.EntityEdge, errors.New("service unavailable"))
	_, err := engine.store.CreateEdge(ctx, a, b, "relates-to", "")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsPersistence(err))
	assert.Equal(t, 0, engine.store.EdgeCount())
}

func TestDeleteEdge(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))
	id, err := engine.store.CreateEdge(ctx, a, b, "relates-to", "")
	require.NoError(t, err)

	require.NoError(t, engine.store.DeleteEdge(ctx, id))
	assert.Equal(t, 0, engine.store.EdgeCount())

	assert.Eventually(t, func() bool {
		return engine.persistence.Count(ports.EntityEdge) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSelection_FollowsNodeLifecycle(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(0, 0))
	b, _ := engine.store.CreateNode(ctx, "b", pos(100, 0))

	engine.store.SelectNode(a)
	engine.store.SelectNode(b)
	engine.store.SelectNode(valueobjects.NewNodeID()) // unknown id ignored
	assert.Len(t, engine.store.SelectedIDs(), 2)

	require.NoError(t, engine.store.DeleteNode(ctx, a))
	assert.Equal(t, []valueobjects.NodeID{b}, engine.store.SelectedIDs())

	engine.store.ClearSelection()
	assert.Empty(t, engine.store.SelectedIDs())
}

func TestLoad_RestoresPersistedState(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	a, _ := engine.store.CreateNode(ctx, "a", pos(1, 2))
	b, _ := engine.store.CreateNode(ctx, "b", pos(3, 4))
	_, err := engine.store.CreateEdge(ctx, a, b, "relates-to", "note")
	require.NoError(t, err)

	// Second store over the same persistence and workspace
	fresh := NewGraphStore(engine.store.Workspace(), engine.cfg, engine.persistence, nil, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(fresh.Dispose)

	require.NoError(t, fresh.Load(ctx))

	assert.Equal(t, 2, fresh.NodeCount())
	assert.Equal(t, 1, fresh.EdgeCount())
	node, ok := fresh.Node(a)
	require.True(t, ok)
	assert.Equal(t, "a", node.Content().Text())
	assert.Equal(t, pos(1, 2), node.Position())
}

type stubEnricher struct {
	summary string
	err     error
}

func (s *stubEnricher) Summarize(ctx context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func (s *stubEnricher) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

// longText returns text above the enrichment threshold, already in the
// trimmed form the content value object stores
func longText() string {
	parts := make([]string, 30)
	for i := range parts {
		parts[i] = "an idea that keeps going"
	}
	return strings.Join(parts, " ")
}

func TestEnrichment_CompletesAndPersistsSummary(t *testing.T) {
	engine := newTestEngine(t, &stubEnricher{summary: "short version"})
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, longText(), pos(0, 0))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		node, ok := engine.store.Node(id)
		return ok && node.Content().Summary() == "short version"
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityNode, id.String())
		return ok && record["summary"] == "short version" && record["state"] == "ready"
	}, time.Second, 10*time.Millisecond)
}

func TestEnrichment_FailureMarksNodeErrored(t *testing.T) {
	engine := newTestEngine(t, &stubEnricher{err: errors.New("model overloaded")})
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, longText(), pos(0, 0))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		node, ok := engine.store.Node(id)
		return ok && node.State() == "error"
	}, time.Second, 10*time.Millisecond)

	// The text survives the failure untouched
	node, _ := engine.store.Node(id)
	assert.Equal(t, longText(), node.Content().Text())
}

func TestEnrichment_ShortTextSkipped(t *testing.T) {
	engine := newTestEngine(t, &stubEnricher{summary: "unused"})
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, "short", pos(0, 0))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	node, _ := engine.store.Node(id)
	assert.Empty(t, node.Content().Summary())
	assert.Equal(t, "ready", string(node.State()))
}

func TestStaleEnrichment_DiscardedAfterTextChange(t *testing.T) {
	slow := &slowEnricher{summary: "stale summary", delay: 60 * time.Millisecond}
	engine := newTestEngine(t, slow)
	ctx := context.Background()

	id, err := engine.store.CreateNode(ctx, longText(), pos(0, 0))
	require.NoError(t, err)

	// Change the text while the first enrichment is still in flight
	require.NoError(t, engine.store.UpdateNodeText(ctx, id, "brand new text", true))

	time.Sleep(150 * time.Millisecond)
	node, _ := engine.store.Node(id)
	assert.NotEqual(t, "stale summary", node.Content().Summary())
	assert.Equal(t, "brand new text", node.Content().Text())
}

type slowEnricher struct {
	summary string
	delay   time.Duration
}

func (s *slowEnricher) Summarize(ctx context.Context, text string) (string, error) {
	time.Sleep(s.delay)
	return s.summary, nil
}

func (s *slowEnricher) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0}, nil
}

func TestRenameWorkspace_PersistsNewName(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()
	require.NoError(t, engine.store.EnsureWorkspacePersisted(ctx))

	require.NoError(t, engine.store.RenameWorkspace(ctx, "renamed"))

	assert.Equal(t, "renamed", engine.store.Workspace().Name())
	workspaceID := engine.store.Workspace().ID().String()
	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityWorkspace, workspaceID)
		return ok && record["name"] == "renamed"
	}, time.Second, 5*time.Millisecond)
}

func TestRenameWorkspace_RejectsEmptyName(t *testing.T) {
	engine := newTestEngine(t, nil)

	err := engine.store.RenameWorkspace(context.Background(), "")

	assert.Error(t, err)
	assert.NotEmpty(t, engine.store.Workspace().Name())
}

func TestSaveViewport_UpdatesAggregateAndPersists(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()
	require.NoError(t, engine.store.EnsureWorkspacePersisted(ctx))

	viewport := valueobjects.Viewport{Pan: pos(120, -40), Zoom: 1.5}
	engine.store.SaveViewport(ctx, viewport)

	assert.True(t, engine.store.Workspace().Viewport().Equals(viewport))
	workspaceID := engine.store.Workspace().ID().String()
	assert.Eventually(t, func() bool {
		record, ok := engine.persistence.Record(ports.EntityWorkspace, workspaceID)
		return ok && record["zoom"] == 1.5
	}, time.Second, 5*time.Millisecond)
}
