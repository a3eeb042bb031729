package entities

import (
	"time"

	"braindump/domain/core/valueobjects"
	"braindump/domain/events"
	pkgerrors "braindump/pkg/errors"
)

// Edge is a directed, typed relationship between two nodes in the same
// workspace
type Edge struct {
	id          valueobjects.EdgeID
	workspaceID valueobjects.WorkspaceID
	parentID    valueobjects.NodeID
	childID     valueobjects.NodeID
	edgeType    string
	note        string
	createdAt   time.Time
	updatedAt   time.Time

	events []events.DomainEvent
}

// NewEdge creates an edge with validation. Endpoint existence is the
// store's concern; the entity only enforces shape-level invariants.
func NewEdge(workspaceID valueobjects.WorkspaceID, parentID, childID valueobjects.NodeID, edgeType, note string) (*Edge, error) {
	if workspaceID.IsZero() {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if parentID.IsZero() || childID.IsZero() {
		return nil, pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}
	if parentID.Equals(childID) {
		return nil, pkgerrors.NewValidationError("edge cannot connect a node to itself")
	}
	if edgeType == "" {
		return nil, pkgerrors.NewValidationError("edge type cannot be empty")
	}

	now := time.Now()
	edge := &Edge{
		id:          valueobjects.NewEdgeID(),
		workspaceID: workspaceID,
		parentID:    parentID,
		childID:     childID,
		edgeType:    edgeType,
		note:        note,
		createdAt:   now,
		updatedAt:   now,
		events:      []events.DomainEvent{},
	}

	edge.addEvent(events.NewEdgeCreated(edge.id, parentID, childID, edgeType, now))

	return edge, nil
}

// ReconstructEdge restores an edge from persisted data
func ReconstructEdge(
	id valueobjects.EdgeID,
	workspaceID valueobjects.WorkspaceID,
	parentID, childID valueobjects.NodeID,
	edgeType, note string,
	createdAt, updatedAt time.Time,
) (*Edge, error) {
	if parentID.IsZero() || childID.IsZero() {
		return nil, pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}

	return &Edge{
		id:          id,
		workspaceID: workspaceID,
		parentID:    parentID,
		childID:     childID,
		edgeType:    edgeType,
		note:        note,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		events:      []events.DomainEvent{},
	}, nil
}

// ID returns the edge's unique identifier
func (e *Edge) ID() valueobjects.EdgeID {
	return e.id
}

// WorkspaceID returns the workspace the edge belongs to
func (e *Edge) WorkspaceID() valueobjects.WorkspaceID {
	return e.workspaceID
}

// ParentID returns the source endpoint
func (e *Edge) ParentID() valueobjects.NodeID {
	return e.parentID
}

// ChildID returns the target endpoint
func (e *Edge) ChildID() valueobjects.NodeID {
	return e.childID
}

// Type returns the edge's type label
func (e *Edge) Type() string {
	return e.edgeType
}

// Note returns the optional note
func (e *Edge) Note() string {
	return e.note
}

// CreatedAt returns when the edge was created
func (e *Edge) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt returns when the edge was last updated
func (e *Edge) UpdatedAt() time.Time {
	return e.updatedAt
}

// Key identifies the (parent, child, type) triple used for duplicate
// detection
func (e *Edge) Key() string {
	return EdgeKey(e.parentID, e.childID, e.edgeType)
}

// EdgeKey builds the duplicate-detection key for a prospective edge
func EdgeKey(parentID, childID valueobjects.NodeID, edgeType string) string {
	return parentID.String() + "->" + childID.String() + ":" + edgeType
}

// References reports whether either endpoint is the given node
func (e *Edge) References(nodeID valueobjects.NodeID) bool {
	return e.parentID.Equals(nodeID) || e.childID.Equals(nodeID)
}

// Repoint replaces every occurrence of from among the endpoints with to.
// Returns an error if the result would be a self-loop; the caller is
// expected to drop the edge instead.
func (e *Edge) Repoint(from, to valueobjects.NodeID) error {
	parentID := e.parentID
	childID := e.childID
	if parentID.Equals(from) {
		parentID = to
	}
	if childID.Equals(from) {
		childID = to
	}
	if parentID.Equals(childID) {
		return pkgerrors.NewValidationError("repointing would create a self-loop")
	}

	e.parentID = parentID
	e.childID = childID
	e.updatedAt = time.Now()
	return nil
}

// UpdateNote replaces the edge's note
func (e *Edge) UpdateNote(note string) {
	if note == e.note {
		return
	}
	e.note = note
	e.updatedAt = time.Now()
}

// Clone returns a deep copy of the edge without uncommitted events
func (e *Edge) Clone() *Edge {
	return &Edge{
		id:          e.id,
		workspaceID: e.workspaceID,
		parentID:    e.parentID,
		childID:     e.childID,
		edgeType:    e.edgeType,
		note:        e.note,
		createdAt:   e.createdAt,
		updatedAt:   e.updatedAt,
		events:      []events.DomainEvent{},
	}
}

// GetUncommittedEvents returns all uncommitted domain events
func (e *Edge) GetUncommittedEvents() []events.DomainEvent {
	return e.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (e *Edge) MarkEventsAsCommitted() {
	e.events = []events.DomainEvent{}
}

func (e *Edge) addEvent(event events.DomainEvent) {
	e.events = append(e.events, event)
}
