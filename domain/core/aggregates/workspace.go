package aggregates

import (
	"time"

	"braindump/domain/core/valueobjects"
	pkgerrors "braindump/pkg/errors"
)

// Workspace is a named container scoping a set of nodes and edges
// ("brain dump"). It carries aggregate counts and the persisted
// viewport so the canvas reopens where the user left it.
type Workspace struct {
	id        valueobjects.WorkspaceID
	name      string
	ideaCount int
	edgeCount int
	viewport  valueobjects.Viewport
	createdAt time.Time
	updatedAt time.Time
}

// NewWorkspace creates a new workspace
func NewWorkspace(name string) (*Workspace, error) {
	if name == "" {
		return nil, pkgerrors.NewValidationError("workspace name cannot be empty")
	}

	now := time.Now()
	return &Workspace{
		id:        valueobjects.NewWorkspaceID(),
		name:      name,
		viewport:  valueobjects.DefaultViewport(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructWorkspace recreates a workspace from stored data
func ReconstructWorkspace(
	id valueobjects.WorkspaceID,
	name string,
	ideaCount, edgeCount int,
	viewport valueobjects.Viewport,
	createdAt, updatedAt time.Time,
) (*Workspace, error) {
	if id.IsZero() || name == "" {
		return nil, pkgerrors.NewValidationError("required fields missing for workspace reconstruction")
	}

	return &Workspace{
		id:        id,
		name:      name,
		ideaCount: ideaCount,
		edgeCount: edgeCount,
		viewport:  viewport,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// ID returns the workspace's unique identifier
func (w *Workspace) ID() valueobjects.WorkspaceID {
	return w.id
}

// Name returns the workspace's name
func (w *Workspace) Name() string {
	return w.name
}

// IdeaCount returns the number of nodes in the workspace
func (w *Workspace) IdeaCount() int {
	return w.ideaCount
}

// EdgeCount returns the number of edges in the workspace
func (w *Workspace) EdgeCount() int {
	return w.edgeCount
}

// Viewport returns the persisted pan/zoom state
func (w *Workspace) Viewport() valueobjects.Viewport {
	return w.viewport
}

// CreatedAt returns when the workspace was created
func (w *Workspace) CreatedAt() time.Time {
	return w.createdAt
}

// UpdatedAt returns when the workspace was last updated
func (w *Workspace) UpdatedAt() time.Time {
	return w.updatedAt
}

// Rename changes the workspace name
func (w *Workspace) Rename(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("workspace name cannot be empty")
	}
	if name == w.name {
		return nil
	}

	w.name = name
	w.updatedAt = time.Now()
	return nil
}

// SaveViewport persists the current pan/zoom state
func (w *Workspace) SaveViewport(viewport valueobjects.Viewport) {
	if viewport.Equals(w.viewport) {
		return
	}
	w.viewport = viewport
	w.updatedAt = time.Now()
}

// SetCounts reconciles the aggregate counts with the live store state.
// Counts can go stale during undo/redo, so the store overwrites rather
// than increments wherever the whole graph changes at once.
func (w *Workspace) SetCounts(ideaCount, edgeCount int) {
	if ideaCount < 0 {
		ideaCount = 0
	}
	if edgeCount < 0 {
		edgeCount = 0
	}
	w.ideaCount = ideaCount
	w.edgeCount = edgeCount
	w.updatedAt = time.Now()
}

// Clone returns a copy of the workspace
func (w *Workspace) Clone() *Workspace {
	clone := *w
	return &clone
}
