package commands

import (
	"braindump/pkg/utils"
)

// Commands are the validated inputs of the mutation service. Validation
// tags cover shape-level rules; graph-level rules (endpoint existence,
// duplicates, cycles) belong to the store.

// CreateNodeCommand creates a single node
type CreateNodeCommand struct {
	Text string  `json:"text" validate:"required,min=1"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Validate checks the command's shape
func (c CreateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateNodeWithEdgeCommand atomically creates a node and, when ParentID
// is set, an edge from the parent to the new node
type CreateNodeWithEdgeCommand struct {
	Text     string  `json:"text" validate:"required,min=1"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ParentID string  `json:"parent_id,omitempty" validate:"omitempty,uuid"`
	EdgeType string  `json:"edge_type,omitempty"`
	Note     string  `json:"note,omitempty" validate:"max=2000"`
}

// Validate checks the command's shape
func (c CreateNodeWithEdgeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ConnectNodesCommand creates a typed edge between two existing nodes
type ConnectNodesCommand struct {
	ParentID string `json:"parent_id" validate:"required,uuid"`
	ChildID  string `json:"child_id" validate:"required,uuid,nefield=ParentID"`
	EdgeType string `json:"edge_type" validate:"required"`
	Note     string `json:"note,omitempty" validate:"max=2000"`
}

// Validate checks the command's shape
func (c ConnectNodesCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// MergeNodesCommand folds the source node into the target node
type MergeNodesCommand struct {
	SourceID string `json:"source_id" validate:"required,uuid"`
	TargetID string `json:"target_id" validate:"required,uuid,nefield=SourceID"`
}

// Validate checks the command's shape
func (c MergeNodesCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DuplicateNodesCommand duplicates a selection of nodes together with
// the edges between them
type DuplicateNodesCommand struct {
	NodeIDs []string `json:"node_ids" validate:"required,min=1,dive,uuid"`
	OffsetX float64  `json:"offset_x"`
	OffsetY float64  `json:"offset_y"`
}

// Validate checks the command's shape
func (c DuplicateNodesCommand) Validate() error {
	return utils.ValidateStruct(c)
}
