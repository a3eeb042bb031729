package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/core/valueobjects"
)

// PositionDebouncer decouples high-frequency in-memory position updates
// from persistence writes. Every mouse-move during a drag overwrites the
// pending patch for that node; a single flush timer then writes the
// latest known value per node in one pass. Intermediate positions are
// never persisted, bounding write amplification to one write per node
// per flush window.
type PositionDebouncer struct {
	mu          sync.Mutex
	pending     map[valueobjects.NodeID]ports.Record
	timer       *time.Timer
	window      time.Duration
	persistence ports.PersistenceService
	observer    ports.Observer
	logger      *zap.Logger
	disposed    bool
}

// NewPositionDebouncer creates a debouncer flushing at the given window
func NewPositionDebouncer(window time.Duration, persistence ports.PersistenceService, observer ports.Observer, logger *zap.Logger) *PositionDebouncer {
	return &PositionDebouncer{
		pending:     make(map[valueobjects.NodeID]ports.Record),
		window:      window,
		persistence: persistence,
		observer:    observer,
		logger:      logger,
	}
}

// Add records or overwrites the latest pending position for the node
// and schedules a flush if none is running
func (d *PositionDebouncer) Add(id valueobjects.NodeID, x, y float64) {
	d.merge(id, ports.Record{"x": x, "y": y})
}

// AddSize records the latest measured dimensions for the node, merged
// into the same pending patch as any position update
func (d *PositionDebouncer) AddSize(id valueobjects.NodeID, width, height float64) {
	d.merge(id, ports.Record{"width": width, "height": height})
}

func (d *PositionDebouncer) merge(id valueobjects.NodeID, patch ports.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return
	}

	existing, ok := d.pending[id]
	if !ok {
		existing = ports.Record{}
		d.pending[id] = existing
	}
	for k, v := range patch {
		existing[k] = v
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.flush)
	}
}

// Flush forces an immediate flush of all pending writes. Used on
// dispose so a drag that ended just before teardown is not lost.
func (d *PositionDebouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.flush()
}

// PendingCount returns the number of nodes with unflushed writes
func (d *PositionDebouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Dispose flushes outstanding writes and stops the timer
func (d *PositionDebouncer) Dispose() {
	d.Flush()
	d.mu.Lock()
	d.disposed = true
	d.mu.Unlock()
}

// flush takes the pending set and writes the latest patch per node in
// one pass
func (d *PositionDebouncer) flush() {
	d.mu.Lock()
	batch := d.pending
	d.pending = make(map[valueobjects.NodeID]ports.Record)
	d.timer = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx := context.Background()
	for id, patch := range batch {
		if err := d.persistence.Update(ctx, ports.EntityNode, id.String(), patch); err != nil {
			// Optimistic: memory already holds the new position, the
			// failed write is logged and not retried
			d.logger.Warn("debounced position write failed",
				zap.String("node_id", id.String()),
				zap.Error(err),
			)
			d.observer.OnPersistenceFailure("update", err)
		}
	}

	d.observer.OnPositionFlush(len(batch))
}
