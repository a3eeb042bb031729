package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/domain/config"
	"braindump/domain/core/aggregates"
	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
	"braindump/domain/events"
	domainservices "braindump/domain/services"
	pkgerrors "braindump/pkg/errors"
)

// GraphStore holds the canonical in-memory node/edge collections for one
// workspace and provides the primitive mutators. All mutators are
// optimistic: memory is updated ahead of the persistence round-trip, and
// a failed background write is logged without reverting memory. The one
// exception is creation, which waits for the remote insert so callers
// only ever see server-confirmed ids.
//
// The node/edge maps are mutated only through the store's own methods;
// no other component may touch them directly.
type GraphStore struct {
	mu sync.RWMutex

	cfg       *config.EngineConfig
	workspace *aggregates.Workspace
	nodes     map[valueobjects.NodeID]*entities.Node
	edges     map[valueobjects.EdgeID]*entities.Edge
	selected  map[valueobjects.NodeID]struct{}

	// lastPlaced feeds the spatial-placement heuristics: new nodes probe
	// outward from the most recently placed position
	lastPlaced valueobjects.Position

	persistence ports.PersistenceService
	enricher    ports.Enricher
	observer    ports.Observer
	debouncer   *PositionDebouncer
	history     *HistoryManager
	logger      *zap.Logger
	disposed    bool
}

// NewGraphStore creates a store for the given workspace. The store owns
// its position debouncer; attach a history manager separately so tests
// can run without one.
func NewGraphStore(
	workspace *aggregates.Workspace,
	cfg *config.EngineConfig,
	persistence ports.PersistenceService,
	enricher ports.Enricher,
	observer ports.Observer,
	logger *zap.Logger,
) *GraphStore {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}

	return &GraphStore{
		cfg:         cfg,
		workspace:   workspace,
		nodes:       make(map[valueobjects.NodeID]*entities.Node),
		edges:       make(map[valueobjects.EdgeID]*entities.Edge),
		selected:    make(map[valueobjects.NodeID]struct{}),
		persistence: persistence,
		enricher:    enricher,
		observer:    observer,
		debouncer:   NewPositionDebouncer(cfg.PositionFlushWindow, persistence, observer, logger),
		logger:      logger,
	}
}

// AttachHistory wires the history manager that receives snapshot
// captures from the store's mutators
func (s *GraphStore) AttachHistory(history *HistoryManager) {
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
}

// Dispose flushes pending writes and stops background machinery
func (s *GraphStore) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
	s.debouncer.Dispose()
}

// Load replaces the in-memory state with the workspace's persisted
// nodes and edges
func (s *GraphStore) Load(ctx context.Context) error {
	workspaceID := s.workspace.ID().String()

	nodeRecords, err := s.persistence.Query(ctx, ports.EntityNode, ports.Filter{"workspace_id": workspaceID})
	if err != nil {
		return pkgerrors.NewPersistenceError("query nodes", err)
	}
	edgeRecords, err := s.persistence.Query(ctx, ports.EntityEdge, ports.Filter{"workspace_id": workspaceID})
	if err != nil {
		return pkgerrors.NewPersistenceError("query edges", err)
	}

	nodes := make(map[valueobjects.NodeID]*entities.Node, len(nodeRecords))
	for _, record := range nodeRecords {
		node, err := ports.NodeFromRecord(record)
		if err != nil {
			return pkgerrors.Wrap(err, "load node")
		}
		nodes[node.ID()] = node
	}

	edges := make(map[valueobjects.EdgeID]*entities.Edge, len(edgeRecords))
	for _, record := range edgeRecords {
		edge, err := ports.EdgeFromRecord(record)
		if err != nil {
			return pkgerrors.Wrap(err, "load edge")
		}
		if _, ok := nodes[edge.ParentID()]; !ok {
			s.logger.Warn("dropping persisted edge with missing parent", zap.String("edge_id", edge.ID().String()))
			continue
		}
		if _, ok := nodes[edge.ChildID()]; !ok {
			s.logger.Warn("dropping persisted edge with missing child", zap.String("edge_id", edge.ID().String()))
			continue
		}
		edges[edge.ID()] = edge
	}

	s.mu.Lock()
	s.nodes = nodes
	s.edges = edges
	s.selected = make(map[valueobjects.NodeID]struct{})
	s.workspace.SetCounts(len(nodes), len(edges))
	s.mu.Unlock()

	return nil
}

// CreateNode validates the text, persists the node remotely and inserts
// it into memory. The returned id is server-confirmed. The position is
// recorded as last-placed for spatial-placement heuristics.
func (s *GraphStore) CreateNode(ctx context.Context, text string, position valueobjects.Position) (valueobjects.NodeID, error) {
	content, err := valueobjects.NewIdeaContentWithConfig(text, s.cfg)
	if err != nil {
		return valueobjects.NodeID{}, err
	}
	if !position.IsValid() {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError("position must have finite coordinates")
	}

	node, err := entities.NewNode(s.workspace.ID(), content, position, s.cfg)
	if err != nil {
		return valueobjects.NodeID{}, err
	}

	if err := s.AdoptNode(ctx, node); err != nil {
		return valueobjects.NodeID{}, err
	}

	s.TriggerEnrichment(node.ID())
	return node.ID(), nil
}

// CreateAttachmentNode creates a node owning an external resource
func (s *GraphStore) CreateAttachmentNode(ctx context.Context, text string, position valueobjects.Position, resource string) (valueobjects.NodeID, error) {
	content, err := valueobjects.NewIdeaContentWithConfig(text, s.cfg)
	if err != nil {
		return valueobjects.NodeID{}, err
	}
	if !position.IsValid() {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError("position must have finite coordinates")
	}

	node, err := entities.NewAttachmentNode(s.workspace.ID(), content, position, resource, s.cfg)
	if err != nil {
		return valueobjects.NodeID{}, err
	}

	if err := s.AdoptNode(ctx, node); err != nil {
		return valueobjects.NodeID{}, err
	}

	s.TriggerEnrichment(node.ID())
	return node.ID(), nil
}

// AdoptNode persists a prepared node and inserts it into memory. Used
// by CreateNode and by compound operations that build nodes themselves.
func (s *GraphStore) AdoptNode(ctx context.Context, node *entities.Node) error {
	s.mu.RLock()
	capacity := len(s.nodes) >= s.cfg.MaxNodesPerWorkspace
	s.mu.RUnlock()
	if capacity {
		return pkgerrors.NewValidationError("workspace node limit reached")
	}

	if _, err := s.persistence.Insert(ctx, ports.EntityNode, ports.NodeToRecord(node)); err != nil {
		return pkgerrors.NewPersistenceError("insert node", err)
	}

	s.mu.Lock()
	s.nodes[node.ID()] = node
	s.lastPlaced = node.Position()
	s.workspace.SetCounts(len(s.nodes), len(s.edges))
	drained := drainEvents(node)
	snapshot, history := s.snapshotForHistoryLocked()
	s.mu.Unlock()

	s.publish(drained)
	if history != nil {
		history.CaptureImmediate(snapshot)
	}
	return nil
}

// UpdateNodeText updates a node's text. Updating to the identical text
// is a no-op. A real change resets the derived summary and lifecycle
// state and, unless skipped, triggers async enrichment.
func (s *GraphStore) UpdateNodeText(ctx context.Context, id valueobjects.NodeID, text string, skipEnrichment bool) error {
	content, err := valueobjects.NewIdeaContentWithConfig(text, s.cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}

	changed, err := node.UpdateText(content, s.cfg)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}

	patch := ports.Record{
		"text":       node.Content().Text(),
		"summary":    node.Content().Summary(),
		"state":      string(node.State()),
		"updated_at": node.UpdatedAt().Format(time.RFC3339Nano),
	}
	drained := drainEvents(node)
	snapshot, history := s.snapshotForHistoryLocked()
	s.mu.Unlock()

	s.publish(drained)
	s.persistAsync("update node text", func(ctx context.Context) error {
		return s.persistence.Update(ctx, ports.EntityNode, id.String(), patch)
	})
	if history != nil {
		history.CaptureImmediate(snapshot)
	}
	if !skipEnrichment {
		s.TriggerEnrichment(id)
	}
	return nil
}

// UpdateNodePosition moves a node in memory synchronously for drag
// feedback and enqueues a debounced persistence write. A missing id is
// a caller bug, not a recoverable condition: it is logged and ignored.
func (s *GraphStore) UpdateNodePosition(id valueobjects.NodeID, position valueobjects.Position) {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("position update for unknown node", zap.String("node_id", id.String()))
		return
	}
	if err := node.MoveTo(position); err != nil {
		s.mu.Unlock()
		s.logger.Warn("position update rejected", zap.String("node_id", id.String()), zap.Error(err))
		return
	}
	drained := drainEvents(node)
	history := s.history
	s.mu.Unlock()

	s.publish(drained)
	s.debouncer.Add(id, position.X, position.Y)
	if history != nil {
		history.CaptureDebounced()
	}
}

// UpdateNodeDimensions reconciles a node's measured render size.
// Memory-only except for the debouncer's periodic persistence pass.
func (s *GraphStore) UpdateNodeDimensions(id valueobjects.NodeID, size valueobjects.Size) {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("dimension update for unknown node", zap.String("node_id", id.String()))
		return
	}
	if err := node.Resize(size); err != nil {
		s.mu.Unlock()
		s.logger.Warn("dimension update rejected", zap.String("node_id", id.String()), zap.Error(err))
		return
	}
	s.mu.Unlock()

	s.debouncer.AddSize(id, size.Width, size.Height)
}

// DeleteNode removes the node and every edge referencing it, atomically
// in memory. The client drops cascaded edges locally before the server
// confirms anything: relying on a server-side cascade alone would leave
// a window where local edges dangle.
func (s *GraphStore) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}

	var cascadedIDs []valueobjects.EdgeID
	for edgeID, edge := range s.edges {
		if edge.References(id) {
			cascadedIDs = append(cascadedIDs, edgeID)
		}
	}
	sort.Slice(cascadedIDs, func(i, j int) bool { return cascadedIDs[i].String() < cascadedIDs[j].String() })

	cascadedStrs := make([]string, 0, len(cascadedIDs))
	drained := []events.DomainEvent{}
	for _, edgeID := range cascadedIDs {
		delete(s.edges, edgeID)
		cascadedStrs = append(cascadedStrs, edgeID.String())
		drained = append(drained, events.NewEdgeDeleted(edgeID, time.Now()))
	}
	delete(s.nodes, id)
	delete(s.selected, id)
	s.workspace.SetCounts(len(s.nodes), len(s.edges))
	drained = append(drained, events.NewNodeDeleted(node.ID(), cascadedStrs, time.Now()))
	snapshot, history := s.snapshotForHistoryLocked()
	s.mu.Unlock()

	s.publish(drained)
	s.persistAsync("delete node", func(ctx context.Context) error {
		// Edges first so the remote store never holds a dangling
		// reference, matching the ordering the undo reconciler uses
		if len(cascadedStrs) > 0 {
			if err := s.persistence.Delete(ctx, ports.EntityEdge, cascadedStrs); err != nil {
				return err
			}
		}
		return s.persistence.Delete(ctx, ports.EntityNode, []string{id.String()})
	})
	if history != nil {
		history.CaptureImmediate(snapshot)
	}
	return nil
}

// CreateEdge validates the edge invariants against the live graph,
// persists the edge remotely and inserts it into memory
func (s *GraphStore) CreateEdge(ctx context.Context, parentID, childID valueobjects.NodeID, edgeType, note string) (valueobjects.EdgeID, error) {
	if !s.cfg.IsAllowedEdgeType(edgeType) {
		return valueobjects.EdgeID{}, pkgerrors.NewValidationError("edge type is not in the allow-list")
	}

	s.mu.RLock()
	err := s.validateEdgeLocked(parentID, childID, edgeType)
	s.mu.RUnlock()
	if err != nil {
		return valueobjects.EdgeID{}, err
	}

	edge, err := entities.NewEdge(s.workspace.ID(), parentID, childID, edgeType, note)
	if err != nil {
		return valueobjects.EdgeID{}, err
	}

	if err := s.AdoptEdge(ctx, edge); err != nil {
		return valueobjects.EdgeID{}, err
	}
	return edge.ID(), nil
}

// AdoptEdge persists a prepared edge and inserts it into memory after
// re-validating the graph invariants
func (s *GraphStore) AdoptEdge(ctx context.Context, edge *entities.Edge) error {
	s.mu.RLock()
	err := s.validateEdgeLocked(edge.ParentID(), edge.ChildID(), edge.Type())
	capacity := len(s.edges) >= s.cfg.MaxEdgesPerWorkspace
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if capacity {
		return pkgerrors.NewValidationError("workspace edge limit reached")
	}

	if _, err := s.persistence.Insert(ctx, ports.EntityEdge, ports.EdgeToRecord(edge)); err != nil {
		return pkgerrors.NewPersistenceError("insert edge", err)
	}

	s.mu.Lock()
	s.edges[edge.ID()] = edge
	s.workspace.SetCounts(len(s.nodes), len(s.edges))
	drained := drainEvents(edge)
	snapshot, history := s.snapshotForHistoryLocked()
	s.mu.Unlock()

	s.publish(drained)
	if history != nil {
		history.CaptureImmediate(snapshot)
	}
	return nil
}

// DeleteEdge removes an edge from memory and issues an optimistic
// remote delete
func (s *GraphStore) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	s.mu.Lock()
	if _, ok := s.edges[id]; !ok {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("edge")
	}
	delete(s.edges, id)
	s.workspace.SetCounts(len(s.nodes), len(s.edges))
	drained := []events.DomainEvent{events.NewEdgeDeleted(id, time.Now())}
	snapshot, history := s.snapshotForHistoryLocked()
	s.mu.Unlock()

	s.publish(drained)
	s.persistAsync("delete edge", func(ctx context.Context) error {
		return s.persistence.Delete(ctx, ports.EntityEdge, []string{id.String()})
	})
	if history != nil {
		history.CaptureImmediate(snapshot)
	}
	return nil
}

// RollbackNode synchronously removes a node (and any cascaded edges)
// from memory and the remote store. Used by compound operations to
// compensate a creation whose sibling write failed.
func (s *GraphStore) RollbackNode(ctx context.Context, id valueobjects.NodeID) error {
	s.mu.Lock()
	var cascadedStrs []string
	for edgeID, edge := range s.edges {
		if edge.References(id) {
			delete(s.edges, edgeID)
			cascadedStrs = append(cascadedStrs, edgeID.String())
		}
	}
	delete(s.nodes, id)
	delete(s.selected, id)
	s.workspace.SetCounts(len(s.nodes), len(s.edges))
	s.mu.Unlock()

	if len(cascadedStrs) > 0 {
		if err := s.persistence.Delete(ctx, ports.EntityEdge, cascadedStrs); err != nil {
			return pkgerrors.NewPersistenceError("rollback edges", err)
		}
	}
	if err := s.persistence.Delete(ctx, ports.EntityNode, []string{id.String()}); err != nil {
		return pkgerrors.NewPersistenceError("rollback node", err)
	}
	return nil
}

// MergeOutcome describes the in-memory effects of a node merge so the
// caller can issue the matching persistence writes
type MergeOutcome struct {
	TargetRecord    ports.Record
	RepointedEdges  []*entities.Edge
	DroppedEdgeIDs  []valueobjects.EdgeID
	DeletedNodeID   valueobjects.NodeID
	CascadedEdgeIDs []valueobjects.EdgeID
}

// ApplyMerge folds the source node into the target node in memory:
// combined text, shallow-merged metadata (target wins), edges repointed
// from source to target. An edge that would become a self-loop or a
// duplicate after repointing is dropped instead. The source node is
// deleted, cascading its remaining edges.
func (s *GraphStore) ApplyMerge(sourceID, targetID valueobjects.NodeID) (*MergeOutcome, error) {
	if sourceID.Equals(targetID) {
		return nil, pkgerrors.NewValidationError("cannot merge a node into itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.nodes[sourceID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("source node")
	}
	target, ok := s.nodes[targetID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("target node")
	}

	// Combined text keeps the target first; the target's position is
	// retained by never touching it
	combined := target.Content().Text() + "\n\n" + source.Content().Text()
	content, err := valueobjects.NewIdeaContentWithConfig(combined, s.cfg)
	if err != nil {
		return nil, err
	}
	if _, err := target.UpdateText(content, s.cfg); err != nil {
		return nil, err
	}
	target.AbsorbMetadata(source.Metadata())
	target.TransferResourceFrom(source)

	outcome := &MergeOutcome{DeletedNodeID: sourceID}

	// Existing keys of edges NOT referencing the source, for duplicate
	// detection after repointing
	existingKeys := make(map[string]struct{}, len(s.edges))
	for _, edge := range s.edges {
		if !edge.References(sourceID) {
			existingKeys[edge.Key()] = struct{}{}
		}
	}

	var referencing []valueobjects.EdgeID
	for edgeID, edge := range s.edges {
		if edge.References(sourceID) {
			referencing = append(referencing, edgeID)
		}
	}
	sort.Slice(referencing, func(i, j int) bool { return referencing[i].String() < referencing[j].String() })

	for _, edgeID := range referencing {
		edge := s.edges[edgeID]
		if err := edge.Repoint(sourceID, targetID); err != nil {
			// Would become a self-loop: drop instead of repointing
			delete(s.edges, edgeID)
			outcome.DroppedEdgeIDs = append(outcome.DroppedEdgeIDs, edgeID)
			continue
		}
		if _, dup := existingKeys[edge.Key()]; dup {
			// Redundant duplicate of a surviving edge
			delete(s.edges, edgeID)
			outcome.DroppedEdgeIDs = append(outcome.DroppedEdgeIDs, edgeID)
			continue
		}
		existingKeys[edge.Key()] = struct{}{}
		outcome.RepointedEdges = append(outcome.RepointedEdges, edge.Clone())
	}

	// Delete the source; every edge referencing it is already repointed
	// or dropped, so there is nothing left to cascade
	delete(s.nodes, sourceID)
	delete(s.selected, sourceID)
	s.workspace.SetCounts(len(s.nodes), len(s.edges))

	outcome.TargetRecord = ports.NodeToRecord(target)

	drained := drainEvents(target)
	drained = append(drained, events.NewNodesMerged(sourceID, targetID, time.Now()))
	go s.publish(drained)

	return outcome, nil
}

// ReplaceState installs the given maps as the live state. Used by the
// undo/redo reconciler after it has issued the remote deltas; the maps
// must be deep copies owned by the caller.
func (s *GraphStore) ReplaceState(nodes map[valueobjects.NodeID]*entities.Node, edges map[valueobjects.EdgeID]*entities.Edge) {
	s.mu.Lock()
	s.nodes = nodes
	s.edges = edges
	for id := range s.selected {
		if _, ok := nodes[id]; !ok {
			delete(s.selected, id)
		}
	}
	s.workspace.SetCounts(len(nodes), len(edges))
	s.mu.Unlock()
}

// Snapshot returns an immutable deep copy of the current graph state
func (s *GraphStore) Snapshot() *aggregates.GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return aggregates.NewGraphSnapshot(s.nodes, s.edges)
}

// Node returns a deep copy of the node, guarding the live entity from
// outside mutation
func (s *GraphStore) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// HasNode reports whether the node exists
func (s *GraphStore) HasNode(id valueobjects.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Edge returns a deep copy of the edge
func (s *GraphStore) Edge(id valueobjects.EdgeID) (*entities.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	return edge.Clone(), true
}

// Nodes returns deep copies of all nodes
func (s *GraphStore) Nodes() []*entities.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*entities.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		nodes = append(nodes, node.Clone())
	}
	return nodes
}

// Edges returns deep copies of all edges
func (s *GraphStore) Edges() []*entities.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := make([]*entities.Edge, 0, len(s.edges))
	for _, edge := range s.edges {
		edges = append(edges, edge.Clone())
	}
	return edges
}

// NodeCount returns the number of nodes in memory
func (s *GraphStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges in memory
func (s *GraphStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// SelectNode adds a node to the selection; unknown ids are ignored
func (s *GraphStore) SelectNode(id valueobjects.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; ok {
		s.selected[id] = struct{}{}
	}
}

// DeselectNode removes a node from the selection
func (s *GraphStore) DeselectNode(id valueobjects.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, id)
}

// ClearSelection empties the selection
func (s *GraphStore) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[valueobjects.NodeID]struct{})
}

// SelectedIDs returns the selected node ids in deterministic order
func (s *GraphStore) SelectedIDs() []valueobjects.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]valueobjects.NodeID, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// LastPlaced returns the most recently placed node position
func (s *GraphStore) LastPlaced() valueobjects.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPlaced
}

// Workspace returns a copy of the workspace aggregate
func (s *GraphStore) Workspace() *aggregates.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspace.Clone()
}

// EnsureWorkspacePersisted upserts the workspace row so later viewport
// and count updates have a target
func (s *GraphStore) EnsureWorkspacePersisted(ctx context.Context) error {
	s.mu.RLock()
	record := ports.WorkspaceToRecord(s.workspace)
	s.mu.RUnlock()

	if err := s.persistence.Upsert(ctx, ports.EntityWorkspace, []ports.Record{record}, "id"); err != nil {
		return pkgerrors.NewPersistenceError("upsert workspace", err)
	}
	return nil
}

// RenameWorkspace changes the workspace name and persists it in the
// background
func (s *GraphStore) RenameWorkspace(ctx context.Context, name string) error {
	s.mu.Lock()
	if err := s.workspace.Rename(name); err != nil {
		s.mu.Unlock()
		return err
	}
	id := s.workspace.ID().String()
	updatedAt := s.workspace.UpdatedAt()
	s.mu.Unlock()

	s.persistAsync("rename workspace", func(ctx context.Context) error {
		return s.persistence.Update(ctx, ports.EntityWorkspace, id, ports.Record{
			"name":       name,
			"updated_at": updatedAt.Format(time.RFC3339Nano),
		})
	})
	return nil
}

// SaveViewport persists the canvas pan/zoom state
func (s *GraphStore) SaveViewport(ctx context.Context, viewport valueobjects.Viewport) {
	s.mu.Lock()
	s.workspace.SaveViewport(viewport)
	record := ports.WorkspaceToRecord(s.workspace)
	id := s.workspace.ID().String()
	s.mu.Unlock()

	s.persistAsync("save viewport", func(ctx context.Context) error {
		return s.persistence.Update(ctx, ports.EntityWorkspace, id, record)
	})
}

// CandidateRects returns the collision rectangles of every node except
// the excluded one, in deterministic order
func (s *GraphStore) CandidateRects(exclude valueobjects.NodeID) []domainservices.CandidateRect {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rects := make([]domainservices.CandidateRect, 0, len(s.nodes))
	for id, node := range s.nodes {
		if id.Equals(exclude) {
			continue
		}
		rects = append(rects, domainservices.CandidateRect{
			ID:   id,
			Rect: domainservices.NewRectAt(node.Position(), node.Size()),
		})
	}
	sort.Slice(rects, func(i, j int) bool { return rects[i].ID.String() < rects[j].ID.String() })
	return rects
}

// OccupiedRects returns every node's rectangle, for free-position search
func (s *GraphStore) OccupiedRects() []domainservices.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rects := make([]domainservices.Rect, 0, len(s.nodes))
	for _, node := range s.nodes {
		rects = append(rects, domainservices.NewRectAt(node.Position(), node.Size()))
	}
	return rects
}

// TriggerEnrichment starts background enrichment for the node when its
// text warrants it. Fire-and-forget: a failure marks the node errored
// but never touches the text.
func (s *GraphStore) TriggerEnrichment(id valueobjects.NodeID) {
	if s.enricher == nil {
		return
	}

	s.mu.RLock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.RUnlock()
		return
	}
	content := node.Content()
	s.mu.RUnlock()

	if !content.NeedsEnrichment(s.cfg) {
		return
	}

	go s.enrich(id, content.Text())
}

// enrich runs on its own goroutine. A stale result (node deleted or text
// changed since) is discarded instead of applied.
func (s *GraphStore) enrich(id valueobjects.NodeID, text string) {
	ctx := context.Background()

	summary, err := s.enricher.Summarize(ctx, text)
	if err == nil {
		_, err = s.enricher.Embed(ctx, text)
	}

	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok || node.Content().Text() != text {
		s.mu.Unlock()
		return
	}

	if err != nil {
		node.FailEnrichment(err.Error())
	} else {
		node.CompleteEnrichment(summary)
	}
	patch := ports.Record{
		"summary":    node.Content().Summary(),
		"state":      string(node.State()),
		"updated_at": node.UpdatedAt().Format(time.RFC3339Nano),
	}
	drained := drainEvents(node)
	s.mu.Unlock()

	s.publish(drained)
	if err != nil {
		s.logger.Warn("enrichment failed", zap.String("node_id", id.String()), zap.Error(err))
		s.observer.OnEnrichmentFailure(err)
	}
	s.persistAsync("update enrichment", func(ctx context.Context) error {
		return s.persistence.Update(ctx, ports.EntityNode, id.String(), patch)
	})
}

// validateEdgeLocked enforces the graph-level edge invariants. Caller
// holds at least a read lock.
func (s *GraphStore) validateEdgeLocked(parentID, childID valueobjects.NodeID, edgeType string) error {
	parent, ok := s.nodes[parentID]
	if !ok {
		return pkgerrors.NewValidationError("parent node does not exist")
	}
	child, ok := s.nodes[childID]
	if !ok {
		return pkgerrors.NewValidationError("child node does not exist")
	}
	if !parent.WorkspaceID().Equals(child.WorkspaceID()) {
		return pkgerrors.NewValidationError("edge endpoints must be in the same workspace")
	}
	if !s.cfg.AllowSelfLoops && parentID.Equals(childID) {
		return pkgerrors.NewValidationError("edge cannot connect a node to itself")
	}

	if !s.cfg.AllowDuplicates {
		key := entities.EdgeKey(parentID, childID, edgeType)
		for _, edge := range s.edges {
			if edge.Key() == key {
				return pkgerrors.NewValidationError("an identical edge already exists")
			}
		}
	}

	// Reject an edge that would close a parent->child cycle: history
	// validation would discard any snapshot containing one, so the store
	// must never produce such a state
	if s.wouldCreateCycleLocked(parentID, childID) {
		return pkgerrors.NewValidationError("edge would create a cycle")
	}

	return nil
}

// wouldCreateCycleLocked walks the child's descendants; if the parent is
// among them, adding parent->child closes a cycle
func (s *GraphStore) wouldCreateCycleLocked(parentID, childID valueobjects.NodeID) bool {
	visited := map[valueobjects.NodeID]bool{}
	stack := []valueobjects.NodeID{childID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current.Equals(parentID) {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, edge := range s.edges {
			if edge.ParentID().Equals(current) {
				stack = append(stack, edge.ChildID())
			}
		}
	}
	return false
}

// snapshotForHistoryLocked builds a snapshot for the history lanes while
// the caller already holds the write lock. The history reference is
// returned alongside so the capture itself can run after unlock.
func (s *GraphStore) snapshotForHistoryLocked() (*aggregates.GraphSnapshot, *HistoryManager) {
	if s.history == nil {
		return nil, nil
	}
	return aggregates.NewGraphSnapshot(s.nodes, s.edges), s.history
}

// persistAsync runs a background persistence write. Optimistic policy:
// the in-memory change stands even when the write fails; the failure is
// logged and reported to the observer. See the engine design notes for
// the rationale.
func (s *GraphStore) persistAsync(operation string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(context.Background()); err != nil {
			s.logger.Warn("optimistic persistence write failed",
				zap.String("operation", operation),
				zap.Error(err),
			)
			s.observer.OnPersistenceFailure(operation, err)
		}
	}()
}

// publish forwards drained domain events to the observer
func (s *GraphStore) publish(drained []events.DomainEvent) {
	for _, event := range drained {
		s.observer.OnEvent(event)
	}
}

// eventSource is implemented by entities that accumulate domain events
type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

func drainEvents(source eventSource) []events.DomainEvent {
	drained := source.GetUncommittedEvents()
	source.MarkEventsAsCommitted()
	return drained
}
