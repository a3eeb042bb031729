package valueobjects

import (
	"math"

	pkgerrors "braindump/pkg/errors"
)

// Position is a point on the canvas in continuous coordinates.
// Node positions are center-anchored.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position, rejecting non-finite coordinates
func NewPosition(x, y float64) (Position, error) {
	if !isFinite(x) || !isFinite(y) {
		return Position{}, pkgerrors.NewValidationError("position coordinates must be finite")
	}
	return Position{X: x, Y: y}, nil
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Translate returns the position shifted by (dx, dy)
func (p Position) Translate(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// DistanceTo returns the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(other.X-p.X, other.Y-p.Y)
}

// IsValid reports whether both coordinates are finite
func (p Position) IsValid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Size is the rendered size of a node
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Equals checks if two sizes are equal
func (s Size) Equals(other Size) bool {
	return s.Width == other.Width && s.Height == other.Height
}

// IsValid reports whether the size has positive finite dimensions
func (s Size) IsValid() bool {
	return isFinite(s.Width) && isFinite(s.Height) && s.Width > 0 && s.Height > 0
}

// Viewport is the persisted pan/zoom state of a workspace canvas
type Viewport struct {
	Pan  Position `json:"pan"`
	Zoom float64  `json:"zoom"`
}

// DefaultViewport returns an untransformed viewport
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1.0}
}

// Equals checks if two viewports are equal
func (v Viewport) Equals(other Viewport) bool {
	return v.Pan.Equals(other.Pan) && v.Zoom == other.Zoom
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
