package ports

import (
	"time"

	"braindump/domain/core/aggregates"
	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
	pkgerrors "braindump/pkg/errors"
	"braindump/pkg/utils"
)

// Record codecs translating between domain entities and the
// transport-neutral rows the persistence port carries. Column names
// match the remote schema.

// NodeToRecord flattens a node into a persistence record
func NodeToRecord(node *entities.Node) Record {
	return Record{
		"id":           node.ID().String(),
		"workspace_id": node.WorkspaceID().String(),
		"kind":         string(node.Kind()),
		"text":         node.Content().Text(),
		"summary":      node.Content().Summary(),
		"metadata":     node.Metadata(),
		"state":        string(node.State()),
		"resource":     node.Resource(),
		"x":            node.Position().X,
		"y":            node.Position().Y,
		"width":        node.Size().Width,
		"height":       node.Size().Height,
		"created_at":   node.CreatedAt().Format(time.RFC3339Nano),
		"updated_at":   node.UpdatedAt().Format(time.RFC3339Nano),
	}
}

// NodeFromRecord reconstructs a node from a persistence record
func NodeFromRecord(record Record) (*entities.Node, error) {
	id, err := valueobjects.NewNodeIDFromString(recordString(record, "id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("node record has invalid id").WithCause(err)
	}
	workspaceID, err := valueobjects.NewWorkspaceIDFromString(recordString(record, "workspace_id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("node record has invalid workspace_id").WithCause(err)
	}

	content := valueobjects.ReconstructIdeaContent(
		recordString(record, "text"),
		recordString(record, "summary"),
	)
	position := valueobjects.Position{
		X: recordFloat(record, "x"),
		Y: recordFloat(record, "y"),
	}
	size := valueobjects.Size{
		Width:  recordFloat(record, "width"),
		Height: recordFloat(record, "height"),
	}

	var metadata map[string]interface{}
	if m, ok := record["metadata"].(map[string]interface{}); ok {
		metadata = m
	}

	return entities.ReconstructNode(
		id,
		workspaceID,
		entities.NodeKind(recordString(record, "kind")),
		content,
		position,
		size,
		metadata,
		entities.NodeState(recordString(record, "state")),
		recordString(record, "resource"),
		recordTime(record, "created_at"),
		recordTime(record, "updated_at"),
	)
}

// EdgeToRecord flattens an edge into a persistence record
func EdgeToRecord(edge *entities.Edge) Record {
	return Record{
		"id":           edge.ID().String(),
		"workspace_id": edge.WorkspaceID().String(),
		"parent_id":    edge.ParentID().String(),
		"child_id":     edge.ChildID().String(),
		"type":         edge.Type(),
		"note":         edge.Note(),
		"created_at":   edge.CreatedAt().Format(time.RFC3339Nano),
		"updated_at":   edge.UpdatedAt().Format(time.RFC3339Nano),
	}
}

// EdgeFromRecord reconstructs an edge from a persistence record
func EdgeFromRecord(record Record) (*entities.Edge, error) {
	id, err := valueobjects.NewEdgeIDFromString(recordString(record, "id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("edge record has invalid id").WithCause(err)
	}
	workspaceID, err := valueobjects.NewWorkspaceIDFromString(recordString(record, "workspace_id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("edge record has invalid workspace_id").WithCause(err)
	}
	parentID, err := valueobjects.NewNodeIDFromString(recordString(record, "parent_id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("edge record has invalid parent_id").WithCause(err)
	}
	childID, err := valueobjects.NewNodeIDFromString(recordString(record, "child_id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("edge record has invalid child_id").WithCause(err)
	}

	return entities.ReconstructEdge(
		id,
		workspaceID,
		parentID,
		childID,
		recordString(record, "type"),
		recordString(record, "note"),
		recordTime(record, "created_at"),
		recordTime(record, "updated_at"),
	)
}

// WorkspaceToRecord flattens a workspace into a persistence record
func WorkspaceToRecord(workspace *aggregates.Workspace) Record {
	return Record{
		"id":         workspace.ID().String(),
		"name":       workspace.Name(),
		"idea_count": workspace.IdeaCount(),
		"edge_count": workspace.EdgeCount(),
		"pan_x":      workspace.Viewport().Pan.X,
		"pan_y":      workspace.Viewport().Pan.Y,
		"zoom":       workspace.Viewport().Zoom,
		"created_at": workspace.CreatedAt().Format(time.RFC3339Nano),
		"updated_at": workspace.UpdatedAt().Format(time.RFC3339Nano),
	}
}

// WorkspaceFromRecord reconstructs a workspace from a persistence record
func WorkspaceFromRecord(record Record) (*aggregates.Workspace, error) {
	id, err := valueobjects.NewWorkspaceIDFromString(recordString(record, "id"))
	if err != nil {
		return nil, pkgerrors.NewValidationError("workspace record has invalid id").WithCause(err)
	}

	viewport := valueobjects.Viewport{
		Pan:  valueobjects.Position{X: recordFloat(record, "pan_x"), Y: recordFloat(record, "pan_y")},
		Zoom: recordFloat(record, "zoom"),
	}
	if viewport.Zoom == 0 {
		viewport.Zoom = 1.0
	}

	return aggregates.ReconstructWorkspace(
		id,
		recordString(record, "name"),
		recordInt(record, "idea_count"),
		recordInt(record, "edge_count"),
		viewport,
		recordTime(record, "created_at"),
		recordTime(record, "updated_at"),
	)
}

// Coercion helpers: JSON decoding yields float64 for numbers and string
// for timestamps, so each accessor tolerates the wire representation.

func recordString(record Record, key string) string {
	if s, ok := record[key].(string); ok {
		return s
	}
	return ""
}

func recordFloat(record Record, key string) float64 {
	switch v := record[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func recordInt(record Record, key string) int {
	switch v := record[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func recordTime(record Record, key string) time.Time {
	s, ok := record[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := utils.ParseRFC3339(s)
	return t
}
