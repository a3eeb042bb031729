package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"braindump/application/commands"
	"braindump/application/ports"
	"braindump/application/sagas"
	"braindump/domain/config"
	"braindump/domain/core/aggregates"
	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
	"braindump/domain/events"
	domainservices "braindump/domain/services"
	pkgerrors "braindump/pkg/errors"
)

// MutationService implements the compound graph operations that touch
// more than one entity: node-with-edge creation, node merging, bulk
// duplication and history restoration. Single-entity mutations go
// straight to the GraphStore; everything here composes store primitives
// under a history batch or a compensating saga.
type MutationService struct {
	store      *GraphStore
	history    *HistoryManager
	reconciler *Reconciler
	cfg        *config.EngineConfig
	observer   ports.Observer
	logger     *zap.Logger
}

func NewMutationService(
	store *GraphStore,
	history *HistoryManager,
	reconciler *Reconciler,
	cfg *config.EngineConfig,
	observer ports.Observer,
	logger *zap.Logger,
) *MutationService {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &MutationService{
		store:      store,
		history:    history,
		reconciler: reconciler,
		cfg:        cfg,
		observer:   observer,
		logger:     logger,
	}
}

// CreateNode creates a standalone node at the given position
func (m *MutationService) CreateNode(ctx context.Context, cmd commands.CreateNodeCommand) (valueobjects.NodeID, error) {
	if err := cmd.Validate(); err != nil {
		return valueobjects.NodeID{}, err
	}
	position, err := valueobjects.NewPosition(cmd.X, cmd.Y)
	if err != nil {
		return valueobjects.NodeID{}, err
	}
	return m.store.CreateNode(ctx, cmd.Text, position)
}

// CreateNodeWithEdgeResult carries the ids produced by the atomic
// node-with-edge creation
type CreateNodeWithEdgeResult struct {
	NodeID valueobjects.NodeID
	EdgeID valueobjects.EdgeID
}

// CreateNodeWithEdge atomically creates a node and, when a parent is
// given, an edge from the parent to it. If the edge write fails, the
// already-persisted node is compensated away so no orphan survives.
// Both additions land in history as a single snapshot. Enrichment is
// triggered after the operation and never blocks or fails it.
func (m *MutationService) CreateNodeWithEdge(ctx context.Context, cmd commands.CreateNodeWithEdgeCommand) (*CreateNodeWithEdgeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	position, err := valueobjects.NewPosition(cmd.X, cmd.Y)
	if err != nil {
		return nil, err
	}
	content, err := valueobjects.NewIdeaContentWithConfig(cmd.Text, m.cfg)
	if err != nil {
		return nil, err
	}

	var parentID valueobjects.NodeID
	if cmd.ParentID != "" {
		parentID, err = valueobjects.NewNodeIDFromString(cmd.ParentID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("parent_id is not a valid id")
		}
		if !m.store.HasNode(parentID) {
			return nil, pkgerrors.NewValidationError("parent node does not exist")
		}
	}

	// An unknown edge type falls back to the default instead of failing
	// the whole creation
	edgeType := cmd.EdgeType
	if !m.cfg.IsAllowedEdgeType(edgeType) {
		edgeType = m.cfg.DefaultEdgeType
	}

	node, err := entities.NewNode(m.store.Workspace().ID(), content, position, m.cfg)
	if err != nil {
		return nil, err
	}

	if parentID.IsZero() {
		if err := m.store.AdoptNode(ctx, node); err != nil {
			return nil, err
		}
		m.store.TriggerEnrichment(node.ID())
		return &CreateNodeWithEdgeResult{NodeID: node.ID()}, nil
	}

	result := &CreateNodeWithEdgeResult{NodeID: node.ID()}

	// Batch the two store mutations into one history snapshot. A failed
	// saga compensates back to the starting state, which the batch lane
	// then deduplicates away.
	m.history.StartBatch()
	defer m.history.EndBatch()

	saga := sagas.New("create-node-with-edge", m.logger)
	saga.AddStep(sagas.Step{
		Name: "persist-node",
		Execute: func(ctx context.Context, data interface{}) (interface{}, error) {
			return nil, m.store.AdoptNode(ctx, node)
		},
		Compensate: func(ctx context.Context, data interface{}) error {
			return m.store.RollbackNode(ctx, node.ID())
		},
	})
	saga.AddStep(sagas.Step{
		Name: "persist-edge",
		Execute: func(ctx context.Context, data interface{}) (interface{}, error) {
			edgeID, err := m.store.CreateEdge(ctx, parentID, node.ID(), edgeType, cmd.Note)
			if err != nil {
				return nil, err
			}
			result.EdgeID = edgeID
			return nil, nil
		},
	})

	if _, err := saga.Execute(ctx, nil); err != nil {
		return nil, err
	}

	m.store.TriggerEnrichment(node.ID())
	return result, nil
}

// ConnectNodes creates an edge between two existing nodes
func (m *MutationService) ConnectNodes(ctx context.Context, cmd commands.ConnectNodesCommand) (valueobjects.EdgeID, error) {
	if err := cmd.Validate(); err != nil {
		return valueobjects.EdgeID{}, err
	}

	parentID, err := valueobjects.NewNodeIDFromString(cmd.ParentID)
	if err != nil {
		return valueobjects.EdgeID{}, pkgerrors.NewValidationError("parent_id is not a valid id")
	}
	childID, err := valueobjects.NewNodeIDFromString(cmd.ChildID)
	if err != nil {
		return valueobjects.EdgeID{}, pkgerrors.NewValidationError("child_id is not a valid id")
	}

	return m.store.CreateEdge(ctx, parentID, childID, cmd.EdgeType, cmd.Note)
}

// MergeNodes folds the source node into the target node: combined text,
// merged metadata, edges repointed from source to target (dropping
// would-be self-loops and duplicates), source deleted. One undo step
// restores the exact pre-merge state.
func (m *MutationService) MergeNodes(ctx context.Context, cmd commands.MergeNodesCommand) (valueobjects.NodeID, error) {
	if err := cmd.Validate(); err != nil {
		return valueobjects.NodeID{}, err
	}

	sourceID, err := valueobjects.NewNodeIDFromString(cmd.SourceID)
	if err != nil {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError("source_id is not a valid id")
	}
	targetID, err := valueobjects.NewNodeIDFromString(cmd.TargetID)
	if err != nil {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError("target_id is not a valid id")
	}

	// Pin the exact pre-merge state into history first: pending
	// debounced position captures may not have fired yet, and undo of a
	// merge must restore the graph as it stood at merge time
	m.history.CaptureImmediate(m.store.Snapshot())

	outcome, err := m.store.ApplyMerge(sourceID, targetID)
	if err != nil {
		return valueobjects.NodeID{}, err
	}

	m.persistMergeAsync(outcome)
	m.history.CaptureImmediate(m.store.Snapshot())
	m.store.TriggerEnrichment(targetID)

	return targetID, nil
}

// persistMergeAsync issues the merge's remote writes in dependency
// order. Optimistic: a failure is logged without reverting memory.
func (m *MutationService) persistMergeAsync(outcome *MergeOutcome) {
	store := m.store
	store.persistAsync("merge nodes", func(ctx context.Context) error {
		if err := store.persistence.Upsert(ctx, ports.EntityNode, []ports.Record{outcome.TargetRecord}, "id"); err != nil {
			return err
		}
		if len(outcome.RepointedEdges) > 0 {
			records := make([]ports.Record, 0, len(outcome.RepointedEdges))
			for _, edge := range outcome.RepointedEdges {
				records = append(records, ports.EdgeToRecord(edge))
			}
			if err := store.persistence.Upsert(ctx, ports.EntityEdge, records, "id"); err != nil {
				return err
			}
		}
		if len(outcome.DroppedEdgeIDs) > 0 {
			ids := make([]string, 0, len(outcome.DroppedEdgeIDs))
			for _, id := range outcome.DroppedEdgeIDs {
				ids = append(ids, id.String())
			}
			if err := store.persistence.Delete(ctx, ports.EntityEdge, ids); err != nil {
				return err
			}
		}
		return store.persistence.Delete(ctx, ports.EntityNode, []string{outcome.DeletedNodeID.String()})
	})
}

// DuplicateNodes clones the given nodes at an offset, placing each
// clone at the nearest collision-free position. All clones land in
// history as a single snapshot.
func (m *MutationService) DuplicateNodes(ctx context.Context, cmd commands.DuplicateNodesCommand) ([]valueobjects.NodeID, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	originals := make([]*entities.Node, 0, len(cmd.NodeIDs))
	for _, raw := range cmd.NodeIDs {
		id, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			return nil, pkgerrors.NewValidationError("node id is not a valid id")
		}
		node, ok := m.store.Node(id)
		if !ok {
			return nil, pkgerrors.NewNotFoundError("node")
		}
		originals = append(originals, node)
	}

	offsetX, offsetY := cmd.OffsetX, cmd.OffsetY
	if offsetX == 0 && offsetY == 0 {
		offsetX, offsetY = m.cfg.SpiralStep, m.cfg.SpiralStep
	}

	m.history.StartBatch()
	defer m.history.EndBatch()

	created := make([]valueobjects.NodeID, 0, len(originals))
	cloneOf := make(map[valueobjects.NodeID]valueobjects.NodeID, len(originals))
	now := time.Now()
	for _, original := range originals {
		desired := original.Position().Translate(offsetX, offsetY)
		placed := domainservices.FindFreePosition(desired, original.Size(), m.store.OccupiedRects(), m.cfg)

		clone, err := entities.ReconstructNode(
			valueobjects.NewNodeID(),
			original.WorkspaceID(),
			original.Kind(),
			original.Content(),
			placed,
			original.Size(),
			original.Metadata(),
			original.State(),
			original.Resource(),
			now, now,
		)
		if err != nil {
			return created, err
		}
		if err := m.store.AdoptNode(ctx, clone); err != nil {
			return created, err
		}
		created = append(created, clone.ID())
		cloneOf[original.ID()] = clone.ID()
	}

	// Edges whose endpoints were both duplicated come along too
	for _, edge := range m.store.Edges() {
		parentClone, inParent := cloneOf[edge.ParentID()]
		childClone, inChild := cloneOf[edge.ChildID()]
		if !inParent || !inChild {
			continue
		}
		if _, err := m.store.CreateEdge(ctx, parentClone, childClone, edge.Type(), edge.Note()); err != nil {
			return created, err
		}
	}

	return created, nil
}

// Undo restores the previous history snapshot. Memory is replaced
// immediately; the remote deltas are reconciled in the background.
// Returns false when there is nothing to undo.
func (m *MutationService) Undo(ctx context.Context) (bool, error) {
	target := m.history.Undo()
	if target == nil {
		return false, nil
	}
	m.restore(target, "undo")
	return true, nil
}

// Redo re-applies the next history snapshot
func (m *MutationService) Redo(ctx context.Context) (bool, error) {
	target := m.history.Redo()
	if target == nil {
		return false, nil
	}
	m.restore(target, "redo")
	return true, nil
}

// restore installs a validated history snapshot as the live state and
// reconciles the persisted state to it asynchronously
func (m *MutationService) restore(target *aggregates.GraphSnapshot, direction string) {
	plan := target.DiffFrom(m.store.Snapshot())

	nodes, edges := target.CloneState()
	m.store.ReplaceState(nodes, edges)

	m.store.persistAsync("history "+direction, func(ctx context.Context) error {
		return m.reconciler.Apply(ctx, plan)
	})

	m.observer.OnEvent(events.NewHistoryRestored(
		m.store.Workspace().ID(),
		direction,
		len(plan.NodesToInsert), len(plan.NodeIDsToDelete),
		len(plan.EdgesToInsert), len(plan.EdgeIDsToDelete),
		time.Now(),
	))
	m.logger.Info("history restored",
		zap.String("direction", direction),
		zap.Int("nodes", target.NodeCount()),
		zap.Int("edges", target.EdgeCount()),
	)
}
