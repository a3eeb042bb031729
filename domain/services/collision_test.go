package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braindump/domain/config"
	"braindump/domain/core/valueobjects"
)

func rectAt(x, y, w, h float64) Rect {
	return NewRectAt(valueobjects.Position{X: x, Y: y}, valueobjects.Size{Width: w, Height: h})
}

func TestOverlapFraction_Disjoint(t *testing.T) {
	a := rectAt(0, 0, 100, 100)
	b := rectAt(500, 500, 100, 100)

	assert.Equal(t, 0.0, OverlapFraction(a, b))
}

func TestOverlapFraction_Identical(t *testing.T) {
	a := rectAt(50, 50, 100, 100)

	assert.InDelta(t, 1.0, OverlapFraction(a, a), 1e-9)
}

func TestOverlapFraction_SmallerRectInsideLarger(t *testing.T) {
	// Intersection is normalized by the smaller area, so a small rect
	// fully inside a large one counts as complete overlap
	large := rectAt(0, 0, 400, 400)
	small := rectAt(0, 0, 50, 50)

	assert.InDelta(t, 1.0, OverlapFraction(large, small), 1e-9)
}

func TestOverlapFraction_PartialOverlap(t *testing.T) {
	// Two 100x100 rects, centers 50 apart on x: intersection is 50x100
	a := rectAt(0, 0, 100, 100)
	b := rectAt(50, 0, 100, 100)

	assert.InDelta(t, 0.5, OverlapFraction(a, b), 1e-9)
}

func TestDetectCollision_BelowTouchThresholdIgnored(t *testing.T) {
	dragged := rectAt(0, 0, 100, 100)
	others := []CandidateRect{
		{ID: valueobjects.NewNodeID(), Rect: rectAt(95, 0, 100, 100)}, // 5% overlap
	}

	result := DetectCollision(dragged, others, 0.1, 0.4)

	assert.Empty(t, result.TouchedIDs)
	assert.True(t, result.MergeCandidate.IsZero())
}

func TestDetectCollision_TouchWithoutMerge(t *testing.T) {
	id := valueobjects.NewNodeID()
	dragged := rectAt(0, 0, 100, 100)
	others := []CandidateRect{
		{ID: id, Rect: rectAt(80, 0, 100, 100)}, // 20% overlap
	}

	result := DetectCollision(dragged, others, 0.1, 0.4)

	assert.Equal(t, []valueobjects.NodeID{id}, result.TouchedIDs)
	assert.True(t, result.MergeCandidate.IsZero())
}

func TestDetectCollision_MergeCandidateIsMaxOverlap(t *testing.T) {
	closer := valueobjects.NewNodeID()
	farther := valueobjects.NewNodeID()
	dragged := rectAt(0, 0, 100, 100)
	others := []CandidateRect{
		{ID: farther, Rect: rectAt(50, 0, 100, 100)}, // 50%
		{ID: closer, Rect: rectAt(20, 0, 100, 100)},  // 80%
	}

	result := DetectCollision(dragged, others, 0.1, 0.4)

	assert.Len(t, result.TouchedIDs, 2)
	assert.Equal(t, closer, result.MergeCandidate)
	assert.InDelta(t, 0.8, result.MergeOverlap, 1e-9)
}

func TestDetectCollision_TieGoesToFirstCandidate(t *testing.T) {
	first := valueobjects.NewNodeID()
	second := valueobjects.NewNodeID()
	dragged := rectAt(0, 0, 100, 100)
	others := []CandidateRect{
		{ID: first, Rect: rectAt(50, 0, 100, 100)},
		{ID: second, Rect: rectAt(50, 0, 100, 100)},
	}

	result := DetectCollision(dragged, others, 0.1, 0.4)

	assert.Equal(t, first, result.MergeCandidate)
}

func TestNearestEdgePoint_OutsidePointClamped(t *testing.T) {
	r := rectAt(50, 50, 100, 100) // spans 0..100 x 0..100

	p := NearestEdgePoint(r, valueobjects.Position{X: 200, Y: 50})

	assert.Equal(t, 100.0, p.X)
	assert.Equal(t, 50.0, p.Y)
}

func TestNearestEdgePoint_InsidePointProjectedToSide(t *testing.T) {
	r := rectAt(50, 50, 100, 100)

	p := NearestEdgePoint(r, valueobjects.Position{X: 90, Y: 50})

	// Nearest side is the right edge
	assert.Equal(t, 100.0, p.X)
	assert.Equal(t, 50.0, p.Y)
}

func TestFindFreePosition_DesiredSpotFree(t *testing.T) {
	desired := valueobjects.Position{X: 0, Y: 0}
	size := valueobjects.Size{Width: 100, Height: 100}

	got := FindFreePosition(desired, size, nil, nil)

	assert.Equal(t, desired, got)
}

func TestFindFreePosition_AvoidsOccupiedRects(t *testing.T) {
	desired := valueobjects.Position{X: 0, Y: 0}
	size := valueobjects.Size{Width: 100, Height: 100}
	occupied := []Rect{rectAt(0, 0, 100, 100)}

	got := FindFreePosition(desired, size, occupied, nil)

	require.NotEqual(t, desired, got)
	assert.True(t, isFree(NewRectAt(got, size), occupied))
}

func TestFindFreePosition_FallsBackWhenEverythingOccupied(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.SpiralMaxRadius = 80 // tiny search field

	desired := valueobjects.Position{X: 0, Y: 0}
	size := valueobjects.Size{Width: 100, Height: 100}
	// One huge rect covering the whole search area
	occupied := []Rect{rectAt(0, 0, 5000, 5000)}

	got := FindFreePosition(desired, size, occupied, cfg)

	assert.Equal(t, desired, got)
}

func TestThrottledDetector_ReturnsCachedResultWhenThrottled(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.DetectorHz = 1 // one evaluation per second

	detector := NewThrottledDetector(cfg)
	id := valueobjects.NewNodeID()
	dragged := rectAt(0, 0, 100, 100)
	overlapping := []CandidateRect{{ID: id, Rect: rectAt(20, 0, 100, 100)}}

	first := detector.Detect(dragged, overlapping)
	require.Equal(t, []valueobjects.NodeID{id}, first.TouchedIDs)

	// Second evaluation with different input is rejected by the limiter
	// and must return the cached result
	second := detector.Detect(rectAt(5000, 5000, 10, 10), nil)
	assert.Equal(t, first, second)
}
