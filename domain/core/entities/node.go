package entities

import (
	"time"

	"braindump/domain/config"
	"braindump/domain/core/valueobjects"
	"braindump/domain/events"
	pkgerrors "braindump/pkg/errors"
)

// NodeState represents the lifecycle state of a node
type NodeState string

const (
	// StateReady means the node is fully materialized
	StateReady NodeState = "ready"
	// StateGenerating means an asynchronous enrichment is in flight
	StateGenerating NodeState = "generating"
	// StateError means the last enrichment attempt failed
	StateError NodeState = "error"
)

// NodeKind distinguishes plain text nodes from attachment nodes
type NodeKind string

const (
	KindText       NodeKind = "text"
	KindAttachment NodeKind = "attachment"
)

// Node is the main entity representing one idea on the canvas
// This is a rich domain model with encapsulated business logic
type Node struct {
	// Private fields ensure encapsulation
	id          valueobjects.NodeID
	workspaceID valueobjects.WorkspaceID
	kind        NodeKind
	content     valueobjects.IdeaContent
	position    valueobjects.Position
	size        valueobjects.Size
	metadata    map[string]interface{}
	state       NodeState
	resource    string // opaque handle to an external binary/URL resource
	createdAt   time.Time
	updatedAt   time.Time

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewNode creates a new text node with full business rule validation.
// The initial state is derived from the text length: short text is ready
// immediately, long text starts generating until enrichment completes.
func NewNode(workspaceID valueobjects.WorkspaceID, content valueobjects.IdeaContent, position valueobjects.Position, cfg *config.EngineConfig) (*Node, error) {
	return newNode(workspaceID, KindText, content, position, cfg)
}

// NewAttachmentNode creates a node that owns an external resource.
// Attachment nodes render square and keep a handle to the resource.
func NewAttachmentNode(workspaceID valueobjects.WorkspaceID, content valueobjects.IdeaContent, position valueobjects.Position, resource string, cfg *config.EngineConfig) (*Node, error) {
	node, err := newNode(workspaceID, KindAttachment, content, position, cfg)
	if err != nil {
		return nil, err
	}
	node.resource = resource
	return node, nil
}

func newNode(workspaceID valueobjects.WorkspaceID, kind NodeKind, content valueobjects.IdeaContent, position valueobjects.Position, cfg *config.EngineConfig) (*Node, error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	if workspaceID.IsZero() {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}
	if !position.IsValid() {
		return nil, pkgerrors.NewValidationError("position must have finite coordinates")
	}

	size := valueobjects.Size{Width: cfg.DefaultNodeWidth, Height: cfg.DefaultNodeHeight}
	if kind == KindAttachment {
		size = valueobjects.Size{Width: cfg.AttachmentNodeSize, Height: cfg.AttachmentNodeSize}
	}

	state := StateReady
	if content.NeedsEnrichment(cfg) {
		state = StateGenerating
	}

	now := time.Now()
	node := &Node{
		id:          valueobjects.NewNodeID(),
		workspaceID: workspaceID,
		kind:        kind,
		content:     content,
		position:    position,
		size:        size,
		metadata:    make(map[string]interface{}),
		state:       state,
		createdAt:   now,
		updatedAt:   now,
		events:      []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(node.id, workspaceID, content.Text(), now))

	return node, nil
}

// ReconstructNode reconstructs a node from persisted data with preserved
// timestamps. No creation event is raised.
func ReconstructNode(
	id valueobjects.NodeID,
	workspaceID valueobjects.WorkspaceID,
	kind NodeKind,
	content valueobjects.IdeaContent,
	position valueobjects.Position,
	size valueobjects.Size,
	metadata map[string]interface{},
	state NodeState,
	resource string,
	createdAt, updatedAt time.Time,
) (*Node, error) {
	if workspaceID.IsZero() {
		return nil, pkgerrors.NewValidationError("workspaceID cannot be empty")
	}
	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Node{
		id:          id,
		workspaceID: workspaceID,
		kind:        kind,
		content:     content,
		position:    position,
		size:        size,
		metadata:    metadata,
		state:       state,
		resource:    resource,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		events:      []events.DomainEvent{},
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// WorkspaceID returns the workspace the node belongs to
func (n *Node) WorkspaceID() valueobjects.WorkspaceID {
	return n.workspaceID
}

// Kind returns the node kind
func (n *Node) Kind() NodeKind {
	return n.kind
}

// Content returns the node's content
func (n *Node) Content() valueobjects.IdeaContent {
	return n.content
}

// Position returns the node's position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// Size returns the node's rendered size
func (n *Node) Size() valueobjects.Size {
	return n.size
}

// State returns the node's lifecycle state
func (n *Node) State() NodeState {
	return n.state
}

// Resource returns the external resource handle, empty for text nodes
func (n *Node) Resource() string {
	return n.resource
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// Bounds returns the node's axis-aligned rectangle. Positions are
// center-anchored so the rectangle extends half the size in each
// direction.
func (n *Node) Bounds() (minX, minY, maxX, maxY float64) {
	halfW := n.size.Width / 2
	halfH := n.size.Height / 2
	return n.position.X - halfW, n.position.Y - halfH, n.position.X + halfW, n.position.Y + halfH
}

// UpdateText updates the node's text with validation. Updating to the
// same text is a no-op. A real change discards the derived summary and
// recomputes the lifecycle state.
func (n *Node) UpdateText(content valueobjects.IdeaContent, cfg *config.EngineConfig) (changed bool, err error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	if content.IsEmpty() {
		return false, pkgerrors.NewValidationError("content cannot be empty")
	}
	if content.Equals(n.content) {
		return false, nil
	}

	oldText := n.content.Text()
	n.content = valueobjects.ReconstructIdeaContent(content.Text(), "")
	if n.content.NeedsEnrichment(cfg) {
		n.state = StateGenerating
	} else {
		n.state = StateReady
	}
	n.updatedAt = time.Now()

	n.addEvent(events.NewNodeTextUpdated(n.id, oldText, content.Text(), n.updatedAt))

	return true, nil
}

// MoveTo moves the node to a new position. Moving to the current
// position is a no-op.
func (n *Node) MoveTo(position valueobjects.Position) error {
	if !position.IsValid() {
		return pkgerrors.NewValidationError("position must have finite coordinates")
	}
	if position.Equals(n.position) {
		return nil
	}

	oldPosition := n.position
	n.position = position
	n.updatedAt = time.Now()

	n.addEvent(events.NewNodeMoved(n.id, oldPosition, position, n.updatedAt))

	return nil
}

// Resize reconciles the node's size with its measured render size
func (n *Node) Resize(size valueobjects.Size) error {
	if !size.IsValid() {
		return pkgerrors.NewValidationError("size must have positive dimensions")
	}
	if size.Equals(n.size) {
		return nil
	}

	n.size = size
	n.updatedAt = time.Now()
	return nil
}

// BeginEnrichment marks the node as awaiting async enrichment
func (n *Node) BeginEnrichment() {
	n.state = StateGenerating
	n.updatedAt = time.Now()
}

// CompleteEnrichment stores the derived summary and marks the node ready
func (n *Node) CompleteEnrichment(summary string) {
	n.content = n.content.WithSummary(summary)
	n.state = StateReady
	n.updatedAt = time.Now()
}

// FailEnrichment marks the node as failed. The text itself is untouched.
func (n *Node) FailEnrichment(reason string) {
	n.state = StateError
	n.updatedAt = time.Now()

	n.addEvent(events.NewNodeEnrichmentFailed(n.id, reason, n.updatedAt))
}

// Metadata returns a copy of the node's free-form metadata
func (n *Node) Metadata() map[string]interface{} {
	meta := make(map[string]interface{}, len(n.metadata))
	for k, v := range n.metadata {
		meta[k] = v
	}
	return meta
}

// SetMetadata stores a free-form metadata entry
func (n *Node) SetMetadata(key string, value interface{}) {
	n.metadata[key] = value
	n.updatedAt = time.Now()
}

// AbsorbMetadata shallow-merges metadata from another node. Existing
// keys on the receiver win on conflict.
func (n *Node) AbsorbMetadata(other map[string]interface{}) {
	for k, v := range other {
		if _, exists := n.metadata[k]; !exists {
			n.metadata[k] = v
		}
	}
	n.updatedAt = time.Now()
}

// TransferResourceFrom moves the external resource association off
// another node onto this one
func (n *Node) TransferResourceFrom(source *Node) {
	if source == nil || source.resource == "" {
		return
	}
	n.resource = source.resource
	source.resource = ""
	n.updatedAt = time.Now()
}

// Clone returns a deep copy of the node. Domain events are not carried
// over; clones exist for snapshots, not for publishing.
func (n *Node) Clone() *Node {
	meta := make(map[string]interface{}, len(n.metadata))
	for k, v := range n.metadata {
		meta[k] = v
	}

	return &Node{
		id:          n.id,
		workspaceID: n.workspaceID,
		kind:        n.kind,
		content:     n.content,
		position:    n.position,
		size:        n.size,
		metadata:    meta,
		state:       n.state,
		resource:    n.resource,
		createdAt:   n.createdAt,
		updatedAt:   n.updatedAt,
		events:      []events.DomainEvent{},
	}
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

// addEvent adds a domain event to the uncommitted list
func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
