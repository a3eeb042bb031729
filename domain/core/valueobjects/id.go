package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// NodeID is a value object representing a unique node identifier
// Value objects are immutable and have no identity beyond their value
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	if !isValidUUID(id) {
		return NodeID{}, errors.New("node ID must be a valid UUID")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	return unmarshalIDString(data, &id.value, "NodeID")
}

// EdgeID is a value object representing a unique edge identifier
type EdgeID struct {
	value string
}

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID{value: uuid.New().String()}
}

// NewEdgeIDFromString creates an EdgeID from an existing string
func NewEdgeIDFromString(id string) (EdgeID, error) {
	if id == "" {
		return EdgeID{}, errors.New("edge ID cannot be empty")
	}
	if !isValidUUID(id) {
		return EdgeID{}, errors.New("edge ID must be a valid UUID")
	}
	return EdgeID{value: id}, nil
}

// String returns the string representation of the EdgeID
func (id EdgeID) String() string {
	return id.value
}

// Equals checks if two EdgeIDs are equal
func (id EdgeID) Equals(other EdgeID) bool {
	return id.value == other.value
}

// IsZero checks if the EdgeID is the zero value
func (id EdgeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id EdgeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *EdgeID) UnmarshalJSON(data []byte) error {
	return unmarshalIDString(data, &id.value, "EdgeID")
}

// WorkspaceID is a value object identifying a brain dump workspace
type WorkspaceID struct {
	value string
}

// NewWorkspaceID creates a new random WorkspaceID
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID{value: uuid.New().String()}
}

// NewWorkspaceIDFromString creates a WorkspaceID from an existing string
func NewWorkspaceIDFromString(id string) (WorkspaceID, error) {
	if id == "" {
		return WorkspaceID{}, errors.New("workspace ID cannot be empty")
	}
	if !isValidUUID(id) {
		return WorkspaceID{}, errors.New("workspace ID must be a valid UUID")
	}
	return WorkspaceID{value: id}, nil
}

// String returns the string representation of the WorkspaceID
func (id WorkspaceID) String() string {
	return id.value
}

// Equals checks if two WorkspaceIDs are equal
func (id WorkspaceID) Equals(other WorkspaceID) bool {
	return id.value == other.value
}

// IsZero checks if the WorkspaceID is the zero value
func (id WorkspaceID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id WorkspaceID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *WorkspaceID) UnmarshalJSON(data []byte) error {
	return unmarshalIDString(data, &id.value, "WorkspaceID")
}

func unmarshalIDString(data []byte, target *string, kind string) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New(kind + " must be a string")
	}
	*target = string(data[1 : len(data)-1])
	return nil
}

// isValidUUID validates if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
