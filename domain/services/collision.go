package services

import (
	"math"

	"golang.org/x/time/rate"

	"braindump/domain/config"
	"braindump/domain/core/valueobjects"
)

// Rect is an axis-aligned rectangle in canvas coordinates
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewRectAt builds a rectangle from a center-anchored position and size
func NewRectAt(pos valueobjects.Position, size valueobjects.Size) Rect {
	halfW := size.Width / 2
	halfH := size.Height / 2
	return Rect{
		MinX: pos.X - halfW,
		MinY: pos.Y - halfH,
		MaxX: pos.X + halfW,
		MaxY: pos.Y + halfH,
	}
}

// Width returns the rectangle's width
func (r Rect) Width() float64 {
	return r.MaxX - r.MinX
}

// Height returns the rectangle's height
func (r Rect) Height() float64 {
	return r.MaxY - r.MinY
}

// Area returns the rectangle's area
func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// Intersects reports whether two rectangles overlap
func (r Rect) Intersects(other Rect) bool {
	return r.MinX < other.MaxX && r.MaxX > other.MinX &&
		r.MinY < other.MaxY && r.MaxY > other.MinY
}

// Center returns the rectangle's center point
func (r Rect) Center() valueobjects.Position {
	return valueobjects.Position{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// OverlapFraction computes the intersection area divided by the area of
// the smaller rectangle, in [0,1]. Disjoint rectangles score zero; a
// small rectangle fully inside a large one scores one.
func OverlapFraction(a, b Rect) float64 {
	overlapW := math.Min(a.MaxX, b.MaxX) - math.Max(a.MinX, b.MinX)
	overlapH := math.Min(a.MaxY, b.MaxY) - math.Max(a.MinY, b.MinY)
	if overlapW <= 0 || overlapH <= 0 {
		return 0
	}

	smaller := math.Min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}

	fraction := (overlapW * overlapH) / smaller
	if fraction > 1 {
		fraction = 1
	}
	return fraction
}

// NearestEdgePoint returns the point on the rectangle's border nearest
// to the given point. Points inside the rectangle are projected onto the
// closest side.
func NearestEdgePoint(r Rect, p valueobjects.Position) valueobjects.Position {
	clamped := valueobjects.Position{
		X: math.Min(math.Max(p.X, r.MinX), r.MaxX),
		Y: math.Min(math.Max(p.Y, r.MinY), r.MaxY),
	}

	inside := p.X > r.MinX && p.X < r.MaxX && p.Y > r.MinY && p.Y < r.MaxY
	if !inside {
		return clamped
	}

	// Project an interior point onto the nearest side
	distances := [4]float64{
		p.X - r.MinX, // left
		r.MaxX - p.X, // right
		p.Y - r.MinY, // top
		r.MaxY - p.Y, // bottom
	}
	minIdx := 0
	for i := 1; i < 4; i++ {
		if distances[i] < distances[minIdx] {
			minIdx = i
		}
	}
	switch minIdx {
	case 0:
		return valueobjects.Position{X: r.MinX, Y: p.Y}
	case 1:
		return valueobjects.Position{X: r.MaxX, Y: p.Y}
	case 2:
		return valueobjects.Position{X: p.X, Y: r.MinY}
	default:
		return valueobjects.Position{X: p.X, Y: r.MaxY}
	}
}

// CandidateRect pairs a node id with its rectangle for collision checks
type CandidateRect struct {
	ID   valueobjects.NodeID
	Rect Rect
}

// CollisionResult describes which nodes the dragged node currently
// overlaps
type CollisionResult struct {
	// TouchedIDs lists every node overlapped above the touch threshold,
	// in input order
	TouchedIDs []valueobjects.NodeID
	// MergeCandidate is the single node above the merge threshold with
	// maximum overlap; zero if none qualifies. Ties go to the first
	// candidate encountered in input order.
	MergeCandidate valueobjects.NodeID
	// MergeOverlap is the overlap fraction of the merge candidate
	MergeOverlap float64
}

// DetectCollision evaluates the dragged rectangle against every other
// node
func DetectCollision(dragged Rect, others []CandidateRect, touchThreshold, mergeThreshold float64) CollisionResult {
	result := CollisionResult{}

	for _, other := range others {
		fraction := OverlapFraction(dragged, other.Rect)
		if fraction <= touchThreshold {
			continue
		}

		result.TouchedIDs = append(result.TouchedIDs, other.ID)
		if fraction >= mergeThreshold && fraction > result.MergeOverlap {
			result.MergeCandidate = other.ID
			result.MergeOverlap = fraction
		}
	}

	return result
}

// FindFreePosition searches outward from the desired position along a
// spiral until it finds a spot where a node of the given size overlaps
// nothing. Falls back to the desired position when the search radius is
// exhausted.
func FindFreePosition(desired valueobjects.Position, size valueobjects.Size, occupied []Rect, cfg *config.EngineConfig) valueobjects.Position {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	if isFree(NewRectAt(desired, size), occupied) {
		return desired
	}

	// Probe rings of increasing radius; the number of probes per ring
	// grows with the circumference so spacing stays roughly constant
	for radius := cfg.SpiralStep; radius <= cfg.SpiralMaxRadius; radius += cfg.SpiralStep {
		steps := int(math.Max(8, (2*math.Pi*radius)/(cfg.SpiralStep*2)))
		for i := 0; i < steps; i++ {
			angle := float64(i) * (2 * math.Pi / float64(steps))
			candidate := valueobjects.Position{
				X: desired.X + radius*math.Cos(angle),
				Y: desired.Y + radius*math.Sin(angle),
			}
			if isFree(NewRectAt(candidate, size), occupied) {
				return candidate
			}
		}
	}

	return desired
}

func isFree(rect Rect, occupied []Rect) bool {
	for _, other := range occupied {
		if rect.Intersects(other) {
			return false
		}
	}
	return true
}

// ThrottledDetector rate-limits collision evaluation so a flood of
// pointer events costs at most DetectorHz evaluations per second. When
// the limiter rejects an evaluation the previous result is returned.
type ThrottledDetector struct {
	limiter        *rate.Limiter
	touchThreshold float64
	mergeThreshold float64
	last           CollisionResult
}

// NewThrottledDetector creates a detector throttled per the engine
// configuration
func NewThrottledDetector(cfg *config.EngineConfig) *ThrottledDetector {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return &ThrottledDetector{
		limiter:        rate.NewLimiter(rate.Limit(cfg.DetectorHz), 1),
		touchThreshold: cfg.TouchThreshold,
		mergeThreshold: cfg.MergeThreshold,
	}
}

// Detect evaluates the collision if the rate limiter admits it, else
// returns the cached result from the previous evaluation
func (d *ThrottledDetector) Detect(dragged Rect, others []CandidateRect) CollisionResult {
	if !d.limiter.Allow() {
		return d.last
	}
	d.last = DetectCollision(dragged, others, d.touchThreshold, d.mergeThreshold)
	return d.last
}
