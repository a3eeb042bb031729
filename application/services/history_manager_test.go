package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/core/aggregates"
	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
)

func snapshotWithNodes(t *testing.T, count int) *aggregates.GraphSnapshot {
	t.Helper()
	ws := valueobjects.NewWorkspaceID()
	nodes := make(map[valueobjects.NodeID]*entities.Node, count)
	for i := 0; i < count; i++ {
		content, err := valueobjects.NewIdeaContentWithConfig(fmt.Sprintf("idea %d", i), nil)
		require.NoError(t, err)
		node, err := entities.NewNode(ws, content, valueobjects.Position{X: float64(i) * 100}, nil)
		require.NoError(t, err)
		nodes[node.ID()] = node
	}
	return aggregates.NewGraphSnapshot(nodes, nil)
}

// corruptSnapshot builds a snapshot containing a dangling edge
func corruptSnapshot(t *testing.T) *aggregates.GraphSnapshot {
	t.Helper()
	ws := valueobjects.NewWorkspaceID()

	content, err := valueobjects.NewIdeaContentWithConfig("orphan parent", nil)
	require.NoError(t, err)
	node, err := entities.NewNode(ws, content, valueobjects.Position{}, nil)
	require.NoError(t, err)

	edge, err := entities.NewEdge(ws, node.ID(), valueobjects.NewNodeID(), "relates-to", "")
	require.NoError(t, err)

	return aggregates.NewGraphSnapshot(
		map[valueobjects.NodeID]*entities.Node{node.ID(): node},
		map[valueobjects.EdgeID]*entities.Edge{edge.ID(): edge},
	)
}

func newTestHistory(t *testing.T) *HistoryManager {
	t.Helper()
	h := NewHistoryManager(testEngineConfig(), func() *aggregates.GraphSnapshot {
		return snapshotWithNodes(t, 1)
	}, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(h.Dispose)
	return h
}

func TestCaptureImmediate_AppendsSnapshot(t *testing.T) {
	h := newTestHistory(t)

	h.CaptureImmediate(snapshotWithNodes(t, 0))
	h.CaptureImmediate(snapshotWithNodes(t, 1))

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Cursor())
	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestCaptureImmediate_DeduplicatesEqualState(t *testing.T) {
	h := newTestHistory(t)

	s := snapshotWithNodes(t, 1)
	h.CaptureImmediate(s)
	h.CaptureImmediate(aggregates.NewGraphSnapshot(nil, nil)) // different
	h.CaptureImmediate(aggregates.NewGraphSnapshot(nil, nil)) // same as top

	assert.Equal(t, 2, h.Len())
}

func TestCaptureImmediate_RejectsCorruptSnapshot(t *testing.T) {
	h := newTestHistory(t)

	h.CaptureImmediate(corruptSnapshot(t))

	assert.Equal(t, 0, h.Len())
}

func TestHistory_BoundedEviction(t *testing.T) {
	h := newTestHistory(t)
	maxHistory := testEngineConfig().MaxHistory

	// maxHistory + 5 distinct snapshots
	for i := 0; i <= maxHistory+4; i++ {
		h.CaptureImmediate(snapshotWithNodes(t, i))
	}

	assert.Equal(t, maxHistory, h.Len())
	assert.Equal(t, maxHistory-1, h.Cursor())
	// Oldest states were evicted: undoing all the way lands on the
	// oldest surviving snapshot, not the first ever captured
	for h.CanUndo() {
		require.NotNil(t, h.Undo())
	}
	current := h.Current()
	require.NotNil(t, current)
	assert.Equal(t, 5, current.NodeCount())
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	h := newTestHistory(t)

	empty := snapshotWithNodes(t, 0)
	one := snapshotWithNodes(t, 1)
	h.CaptureImmediate(empty)
	h.CaptureImmediate(one)

	back := h.Undo()
	require.NotNil(t, back)
	assert.Equal(t, 0, back.NodeCount())
	assert.True(t, h.CanRedo())

	forward := h.Redo()
	require.NotNil(t, forward)
	assert.Equal(t, 1, forward.NodeCount())
	assert.False(t, h.CanRedo())
}

func TestUndo_NothingToUndo(t *testing.T) {
	h := newTestHistory(t)

	assert.Nil(t, h.Undo())

	h.CaptureImmediate(snapshotWithNodes(t, 0))
	// A single snapshot is the current state; there is no prior state
	assert.Nil(t, h.Undo())
}

func TestRedo_NothingToRedo(t *testing.T) {
	h := newTestHistory(t)

	h.CaptureImmediate(snapshotWithNodes(t, 0))

	assert.Nil(t, h.Redo())
}

func TestCapture_AfterUndoTruncatesFuture(t *testing.T) {
	h := newTestHistory(t)

	h.CaptureImmediate(snapshotWithNodes(t, 0))
	h.CaptureImmediate(snapshotWithNodes(t, 1))
	h.CaptureImmediate(snapshotWithNodes(t, 2))

	require.NotNil(t, h.Undo())
	require.NotNil(t, h.Undo())
	require.True(t, h.CanRedo())

	// A new capture discards the redo branch
	h.CaptureImmediate(snapshotWithNodes(t, 7))

	assert.False(t, h.CanRedo())
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 7, h.Current().NodeCount())
}

func TestDebouncedCapture_CoalescesBurst(t *testing.T) {
	cfg := testEngineConfig()
	calls := 0
	h := NewHistoryManager(cfg, func() *aggregates.GraphSnapshot {
		calls++
		return snapshotWithNodes(t, calls)
	}, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(h.Dispose)

	// A burst of continuous mutations schedules exactly one capture
	for i := 0; i < 10; i++ {
		h.CaptureDebounced()
		time.Sleep(2 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * cfg.HistoryDebounce)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1, calls)
}

func TestDebouncedCapture_SuppressedAfterImmediate(t *testing.T) {
	cfg := testEngineConfig()
	h := NewHistoryManager(cfg, func() *aggregates.GraphSnapshot {
		return snapshotWithNodes(t, 3)
	}, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(h.Dispose)

	h.CaptureDebounced()
	h.CaptureImmediate(snapshotWithNodes(t, 1))
	require.Equal(t, 1, h.Len())

	// The pending debounced capture was cancelled; a new one inside the
	// suppress window is dropped on firing
	h.CaptureDebounced()
	time.Sleep(cfg.HistoryDebounce + 10*time.Millisecond)
	assert.Equal(t, 1, h.Len())
}

func TestBatch_SingleSnapshotForManyMutations(t *testing.T) {
	cfg := testEngineConfig()
	h := NewHistoryManager(cfg, func() *aggregates.GraphSnapshot {
		return snapshotWithNodes(t, 4)
	}, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(h.Dispose)

	h.StartBatch()
	for i := 0; i < 5; i++ {
		h.CaptureImmediate(snapshotWithNodes(t, i))
	}
	h.EndBatch()

	assert.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, h.Current().NodeCount())
}

func TestBatch_CleanBatchCapturesNothing(t *testing.T) {
	h := newTestHistory(t)

	h.StartBatch()
	h.EndBatch()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.Len())
}

func TestBatch_Nested(t *testing.T) {
	cfg := testEngineConfig()
	h := NewHistoryManager(cfg, func() *aggregates.GraphSnapshot {
		return snapshotWithNodes(t, 2)
	}, ports.NopObserver{}, zap.NewNop())
	t.Cleanup(h.Dispose)

	h.StartBatch()
	h.StartBatch()
	h.CaptureImmediate(snapshotWithNodes(t, 1))
	h.EndBatch()
	// Still inside the outer batch: nothing captured yet
	time.Sleep(cfg.BatchSettleDelay + 20*time.Millisecond)
	require.Equal(t, 0, h.Len())

	h.EndBatch()
	assert.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestUndo_AbortsOnCorruptStoredSnapshot(t *testing.T) {
	h := newTestHistory(t)

	// Sneak a corrupt snapshot into history by bypassing validation
	h.mu.Lock()
	h.history = []*aggregates.GraphSnapshot{corruptSnapshot(t), snapshotWithNodes(t, 1)}
	h.currentIndex = 1
	h.mu.Unlock()

	assert.Nil(t, h.Undo())
	// Cursor unchanged: the live state was not replaced
	assert.Equal(t, 1, h.Cursor())
}

func TestHistoryManager_WithLiveStore(t *testing.T) {
	engine := newTestEngine(t, nil)
	ctx := context.Background()

	// Seed snapshot exists; two structural mutations add two more
	_, err := engine.store.CreateNode(ctx, "one", valueobjects.Position{X: 0})
	require.NoError(t, err)
	_, err = engine.store.CreateNode(ctx, "two", valueobjects.Position{X: 200})
	require.NoError(t, err)

	assert.Equal(t, 3, engine.history.Len())

	back := engine.history.Undo()
	require.NotNil(t, back)
	assert.Equal(t, 1, back.NodeCount())
}
