package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/config"
	"braindump/domain/core/aggregates"
)

// SnapshotProvider supplies the current live graph state as a deep copy.
// The history manager pulls through this on its coalescing lanes so it
// never holds a reference into live store internals.
type SnapshotProvider func() *aggregates.GraphSnapshot

// HistoryManager is a bounded, integrity-gated undo/redo history.
//
// Snapshots reach it through two cooperating lanes: structural mutations
// (create/delete node or edge, text commits) capture immediately so they
// are never lost to a race, while continuous mutations (drag positions)
// coalesce on a debounce timer. An immediate capture inside the suppress
// window cancels an imminent debounced capture that would otherwise
// duplicate it. Every snapshot is validated before it is trusted:
// corrupt states never enter history, and a stored snapshot that fails
// re-validation aborts the undo/redo instead of being applied.
type HistoryManager struct {
	mu           sync.Mutex
	history      []*aggregates.GraphSnapshot
	currentIndex int // cursor into history; -1 when empty

	maxHistory       int
	debounceWindow   time.Duration
	suppressWindow   time.Duration
	batchSettleDelay time.Duration

	provider      SnapshotProvider
	debounceTimer *time.Timer
	lastImmediate time.Time

	batchDepth int
	batchDirty bool
	batchTimer *time.Timer

	observer ports.Observer
	logger   *zap.Logger
	disposed bool
}

// NewHistoryManager creates a history manager with the configured bound
// and windows. The provider feeds the debounced and batch lanes.
func NewHistoryManager(cfg *config.EngineConfig, provider SnapshotProvider, observer ports.Observer, logger *zap.Logger) *HistoryManager {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return &HistoryManager{
		currentIndex:     -1,
		maxHistory:       cfg.MaxHistory,
		debounceWindow:   cfg.HistoryDebounce,
		suppressWindow:   cfg.ImmediateSuppress,
		batchSettleDelay: cfg.BatchSettleDelay,
		provider:         provider,
		observer:         observer,
		logger:           logger,
	}
}

// CaptureImmediate validates and appends the snapshot synchronously.
// Inside a batch the capture is deferred to the batch snapshot instead.
func (h *HistoryManager) CaptureImmediate(snapshot *aggregates.GraphSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed {
		return
	}
	if h.batchDepth > 0 {
		h.batchDirty = true
		return
	}

	h.saveLocked(snapshot)
	h.lastImmediate = time.Now()

	// A pending debounced capture this close to an immediate one would
	// only duplicate it
	if h.debounceTimer != nil {
		h.debounceTimer.Stop()
		h.debounceTimer = nil
	}
}

// CaptureDebounced schedules a coalesced capture after the debounce
// window of inactivity. Repeated calls reset the timer.
func (h *HistoryManager) CaptureDebounced() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed {
		return
	}
	if h.batchDepth > 0 {
		h.batchDirty = true
		return
	}

	if h.debounceTimer != nil {
		h.debounceTimer.Stop()
	}
	h.debounceTimer = time.AfterFunc(h.debounceWindow, h.debouncedFire)
}

// debouncedFire runs on the timer goroutine. The snapshot is pulled
// before taking the lock so the provider can read the store freely.
func (h *HistoryManager) debouncedFire() {
	snapshot := h.provider()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed || h.batchDepth > 0 {
		return
	}
	h.debounceTimer = nil

	if time.Since(h.lastImmediate) < h.suppressWindow {
		// An immediate capture just recorded this state
		return
	}

	h.saveLocked(snapshot)
}

// StartBatch suppresses automatic snapshot capture until the matching
// EndBatch, so a multi-entity sequence becomes exactly one undo step.
// Batches nest; only the outermost EndBatch captures.
func (h *HistoryManager) StartBatch() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.batchDepth++
	if h.batchTimer != nil {
		h.batchTimer.Stop()
		h.batchTimer = nil
	}
}

// EndBatch closes the batch and, once the sequence settles, captures a
// single snapshot covering every mutation inside it
func (h *HistoryManager) EndBatch() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.batchDepth == 0 {
		return
	}
	h.batchDepth--
	if h.batchDepth > 0 || !h.batchDirty {
		return
	}
	h.batchDirty = false

	h.batchTimer = time.AfterFunc(h.batchSettleDelay, func() {
		snapshot := h.provider()

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.disposed || h.batchDepth > 0 {
			return
		}
		h.batchTimer = nil
		h.saveLocked(snapshot)
		h.lastImmediate = time.Now()
	})
}

// saveLocked validates and appends the snapshot under the lock.
// Creating a new snapshot after undoing truncates all future snapshots;
// exceeding the bound evicts the oldest one and shifts the cursor down.
func (h *HistoryManager) saveLocked(snapshot *aggregates.GraphSnapshot) {
	if snapshot == nil {
		return
	}

	if err := snapshot.Validate(); err != nil {
		// Corrupt states must never enter history
		h.logger.Warn("snapshot rejected by integrity validation", zap.Error(err))
		h.observer.OnSnapshotRejected(err.Error())
		return
	}

	if h.currentIndex >= 0 && snapshot.Equal(h.history[h.currentIndex]) {
		return
	}

	h.history = h.history[:h.currentIndex+1]
	h.history = append(h.history, snapshot)
	h.currentIndex++

	if len(h.history) > h.maxHistory {
		overflow := len(h.history) - h.maxHistory
		h.history = append([]*aggregates.GraphSnapshot{}, h.history[overflow:]...)
		h.currentIndex -= overflow
	}

	h.observer.OnSnapshotSaved(len(h.history), h.currentIndex)
}

// Undo steps the cursor back and returns the prior snapshot, or nil when
// there is nothing to undo. A stored snapshot that fails re-validation
// aborts the undo rather than applying a broken state.
func (h *HistoryManager) Undo() *aggregates.GraphSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.currentIndex <= 0 {
		return nil
	}

	candidate := h.history[h.currentIndex-1]
	if err := candidate.Validate(); err != nil {
		h.logger.Warn("stored undo snapshot failed re-validation, aborting undo", zap.Error(err))
		h.observer.OnSnapshotRejected(err.Error())
		return nil
	}

	h.currentIndex--
	return candidate
}

// Redo steps the cursor forward and returns the next snapshot, or nil
// when there is nothing to redo
func (h *HistoryManager) Redo() *aggregates.GraphSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.currentIndex < 0 || h.currentIndex >= len(h.history)-1 {
		return nil
	}

	candidate := h.history[h.currentIndex+1]
	if err := candidate.Validate(); err != nil {
		h.logger.Warn("stored redo snapshot failed re-validation, aborting redo", zap.Error(err))
		h.observer.OnSnapshotRejected(err.Error())
		return nil
	}

	h.currentIndex++
	return candidate
}

// Current returns the snapshot at the cursor, or nil when history is
// empty
func (h *HistoryManager) Current() *aggregates.GraphSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.currentIndex < 0 {
		return nil
	}
	return h.history[h.currentIndex]
}

// CanUndo reports whether an undo step exists
func (h *HistoryManager) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentIndex > 0
}

// CanRedo reports whether a redo step exists
func (h *HistoryManager) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentIndex >= 0 && h.currentIndex < len(h.history)-1
}

// Len returns the number of stored snapshots
func (h *HistoryManager) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// Cursor returns the current cursor position
func (h *HistoryManager) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentIndex
}

// Report returns the validation report of the snapshot at the cursor,
// for the debug/introspection surface
func (h *HistoryManager) Report() aggregates.ValidationReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.currentIndex < 0 {
		return aggregates.ValidationReport{Valid: true}
	}
	return h.history[h.currentIndex].Report()
}

// Dispose stops outstanding timers. Further captures are ignored.
func (h *HistoryManager) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.disposed = true
	if h.debounceTimer != nil {
		h.debounceTimer.Stop()
		h.debounceTimer = nil
	}
	if h.batchTimer != nil {
		h.batchTimer.Stop()
		h.batchTimer = nil
	}
}
