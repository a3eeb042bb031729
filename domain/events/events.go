package events

import (
	"time"

	"braindump/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// Node events

// NodeCreated is raised when a new node enters the graph
type NodeCreated struct {
	BaseEvent
	NodeID      valueobjects.NodeID      `json:"node_id"`
	WorkspaceID valueobjects.WorkspaceID `json:"workspace_id"`
	Text        string                   `json:"text"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID valueobjects.NodeID, workspaceID valueobjects.WorkspaceID, text string, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "node.created",
			Timestamp:   timestamp,
		},
		NodeID:      nodeID,
		WorkspaceID: workspaceID,
		Text:        text,
	}
}

// NodeTextUpdated is raised when a node's text changes
type NodeTextUpdated struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	OldText string              `json:"old_text"`
	NewText string              `json:"new_text"`
}

// NewNodeTextUpdated creates a NodeTextUpdated event
func NewNodeTextUpdated(nodeID valueobjects.NodeID, oldText, newText string, timestamp time.Time) NodeTextUpdated {
	return NodeTextUpdated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "node.text_updated",
			Timestamp:   timestamp,
		},
		NodeID:  nodeID,
		OldText: oldText,
		NewText: newText,
	}
}

// NodeMoved is raised when a node changes position
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(nodeID valueobjects.NodeID, oldPosition, newPosition valueobjects.Position, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "node.moved",
			Timestamp:   timestamp,
		},
		NodeID:      nodeID,
		OldPosition: oldPosition,
		NewPosition: newPosition,
	}
}

// NodeDeleted is raised when a node is removed, cascading its edges
type NodeDeleted struct {
	BaseEvent
	NodeID          valueobjects.NodeID `json:"node_id"`
	CascadedEdgeIDs []string            `json:"cascaded_edge_ids"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(nodeID valueobjects.NodeID, cascadedEdgeIDs []string, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "node.deleted",
			Timestamp:   timestamp,
		},
		NodeID:          nodeID,
		CascadedEdgeIDs: cascadedEdgeIDs,
	}
}

// NodeEnrichmentFailed is raised when background summarization or
// embedding fails; the node's text is never rolled back
type NodeEnrichmentFailed struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Reason string              `json:"reason"`
}

// NewNodeEnrichmentFailed creates a NodeEnrichmentFailed event
func NewNodeEnrichmentFailed(nodeID valueobjects.NodeID, reason string, timestamp time.Time) NodeEnrichmentFailed {
	return NodeEnrichmentFailed{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "node.enrichment_failed",
			Timestamp:   timestamp,
		},
		NodeID: nodeID,
		Reason: reason,
	}
}

// Edge events

// EdgeCreated is raised when two nodes are connected
type EdgeCreated struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	ParentID valueobjects.NodeID `json:"parent_id"`
	ChildID  valueobjects.NodeID `json:"child_id"`
	EdgeType string              `json:"edge_type"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(edgeID valueobjects.EdgeID, parentID, childID valueobjects.NodeID, edgeType string, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   "edge.created",
			Timestamp:   timestamp,
		},
		EdgeID:   edgeID,
		ParentID: parentID,
		ChildID:  childID,
		EdgeType: edgeType,
	}
}

// EdgeDeleted is raised when an edge is removed
type EdgeDeleted struct {
	BaseEvent
	EdgeID valueobjects.EdgeID `json:"edge_id"`
}

// NewEdgeDeleted creates an EdgeDeleted event
func NewEdgeDeleted(edgeID valueobjects.EdgeID, timestamp time.Time) EdgeDeleted {
	return EdgeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   "edge.deleted",
			Timestamp:   timestamp,
		},
		EdgeID: edgeID,
	}
}

// Compound events

// NodesMerged is raised when a source node is folded into a target node
type NodesMerged struct {
	BaseEvent
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewNodesMerged creates a NodesMerged event
func NewNodesMerged(sourceID, targetID valueobjects.NodeID, timestamp time.Time) NodesMerged {
	return NodesMerged{
		BaseEvent: BaseEvent{
			AggregateID: targetID.String(),
			EventType:   "nodes.merged",
			Timestamp:   timestamp,
		},
		SourceID: sourceID,
		TargetID: targetID,
	}
}

// HistoryRestored is raised when undo or redo replaces the live state
// with a stored snapshot
type HistoryRestored struct {
	BaseEvent
	WorkspaceID   valueobjects.WorkspaceID `json:"workspace_id"`
	Direction     string                   `json:"direction"` // "undo" or "redo"
	NodesInserted int                      `json:"nodes_inserted"`
	NodesDeleted  int                      `json:"nodes_deleted"`
	EdgesInserted int                      `json:"edges_inserted"`
	EdgesDeleted  int                      `json:"edges_deleted"`
}

// NewHistoryRestored creates a HistoryRestored event
func NewHistoryRestored(workspaceID valueobjects.WorkspaceID, direction string, nodesInserted, nodesDeleted, edgesInserted, edgesDeleted int, timestamp time.Time) HistoryRestored {
	return HistoryRestored{
		BaseEvent: BaseEvent{
			AggregateID: workspaceID.String(),
			EventType:   "history.restored",
			Timestamp:   timestamp,
		},
		WorkspaceID:   workspaceID,
		Direction:     direction,
		NodesInserted: nodesInserted,
		NodesDeleted:  nodesDeleted,
		EdgesInserted: edgesInserted,
		EdgesDeleted:  edgesDeleted,
	}
}
