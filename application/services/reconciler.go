package services

import (
	"context"

	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/core/aggregates"
	pkgerrors "braindump/pkg/errors"
)

// Reconciler applies a snapshot diff to the persistence layer. Undo and
// redo restore a past snapshot; the reconciler issues only the deltas
// between that snapshot and the live state instead of rewriting every
// row.
type Reconciler struct {
	persistence ports.PersistenceService
	logger      *zap.Logger
}

func NewReconciler(persistence ports.PersistenceService, logger *zap.Logger) *Reconciler {
	return &Reconciler{persistence: persistence, logger: logger}
}

// Apply issues the plan's remote operations in dependency order:
// node inserts before edge inserts so edges always find their
// endpoints, edge deletes before node deletes so the remote store never
// holds a dangling reference. Stops on the first error.
func (r *Reconciler) Apply(ctx context.Context, plan *aggregates.ReconcilePlan) error {
	if plan.IsEmpty() {
		return nil
	}

	if len(plan.NodesToInsert) > 0 {
		records := make([]ports.Record, 0, len(plan.NodesToInsert))
		for _, node := range plan.NodesToInsert {
			records = append(records, ports.NodeToRecord(node))
		}
		if err := r.persistence.Upsert(ctx, ports.EntityNode, records, "id"); err != nil {
			return pkgerrors.NewPersistenceError("reconcile insert nodes", err)
		}
	}

	if len(plan.EdgesToInsert) > 0 {
		records := make([]ports.Record, 0, len(plan.EdgesToInsert))
		for _, edge := range plan.EdgesToInsert {
			records = append(records, ports.EdgeToRecord(edge))
		}
		if err := r.persistence.Upsert(ctx, ports.EntityEdge, records, "id"); err != nil {
			return pkgerrors.NewPersistenceError("reconcile insert edges", err)
		}
	}

	if len(plan.NodesToUpsert) > 0 {
		records := make([]ports.Record, 0, len(plan.NodesToUpsert))
		for _, node := range plan.NodesToUpsert {
			records = append(records, ports.NodeToRecord(node))
		}
		if err := r.persistence.Upsert(ctx, ports.EntityNode, records, "id"); err != nil {
			return pkgerrors.NewPersistenceError("reconcile upsert nodes", err)
		}
	}

	if len(plan.EdgesToUpsert) > 0 {
		records := make([]ports.Record, 0, len(plan.EdgesToUpsert))
		for _, edge := range plan.EdgesToUpsert {
			records = append(records, ports.EdgeToRecord(edge))
		}
		if err := r.persistence.Upsert(ctx, ports.EntityEdge, records, "id"); err != nil {
			return pkgerrors.NewPersistenceError("reconcile upsert edges", err)
		}
	}

	if len(plan.EdgeIDsToDelete) > 0 {
		ids := make([]string, 0, len(plan.EdgeIDsToDelete))
		for _, id := range plan.EdgeIDsToDelete {
			ids = append(ids, id.String())
		}
		if err := r.persistence.Delete(ctx, ports.EntityEdge, ids); err != nil {
			return pkgerrors.NewPersistenceError("reconcile delete edges", err)
		}
	}

	if len(plan.NodeIDsToDelete) > 0 {
		ids := make([]string, 0, len(plan.NodeIDsToDelete))
		for _, id := range plan.NodeIDsToDelete {
			ids = append(ids, id.String())
		}
		if err := r.persistence.Delete(ctx, ports.EntityNode, ids); err != nil {
			return pkgerrors.NewPersistenceError("reconcile delete nodes", err)
		}
	}

	r.logger.Debug("reconcile plan applied",
		zap.Int("nodes_inserted", len(plan.NodesToInsert)),
		zap.Int("edges_inserted", len(plan.EdgesToInsert)),
		zap.Int("nodes_upserted", len(plan.NodesToUpsert)),
		zap.Int("edges_upserted", len(plan.EdgesToUpsert)),
		zap.Int("edges_deleted", len(plan.EdgeIDsToDelete)),
		zap.Int("nodes_deleted", len(plan.NodeIDsToDelete)),
	)
	return nil
}
