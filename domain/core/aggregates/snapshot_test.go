package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
	pkgerrors "braindump/pkg/errors"
)

func testWorkspaceID() valueobjects.WorkspaceID {
	return valueobjects.NewWorkspaceID()
}

func mustNode(t *testing.T, ws valueobjects.WorkspaceID, text string, x, y float64) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewIdeaContentWithConfig(text, nil)
	require.NoError(t, err)
	node, err := entities.NewNode(ws, content, valueobjects.Position{X: x, Y: y}, nil)
	require.NoError(t, err)
	return node
}

func mustEdge(t *testing.T, ws valueobjects.WorkspaceID, parent, child valueobjects.NodeID) *entities.Edge {
	t.Helper()
	edge, err := entities.NewEdge(ws, parent, child, "relates-to", "")
	require.NoError(t, err)
	return edge
}

func nodeMap(nodes ...*entities.Node) map[valueobjects.NodeID]*entities.Node {
	m := make(map[valueobjects.NodeID]*entities.Node)
	for _, n := range nodes {
		m[n.ID()] = n
	}
	return m
}

func edgeMap(edges ...*entities.Edge) map[valueobjects.EdgeID]*entities.Edge {
	m := make(map[valueobjects.EdgeID]*entities.Edge)
	for _, e := range edges {
		m[e.ID()] = e
	}
	return m
}

func TestNewGraphSnapshot_DeepCopiesState(t *testing.T) {
	ws := testWorkspaceID()
	node := mustNode(t, ws, "original", 0, 0)

	snapshot := NewGraphSnapshot(nodeMap(node), nil)

	// Mutating the live node must not leak into the snapshot
	require.NoError(t, node.MoveTo(valueobjects.Position{X: 500, Y: 500}))

	captured := snapshot.Node(node.ID())
	require.NotNil(t, captured)
	assert.Equal(t, 0.0, captured.Position().X)
	assert.Equal(t, 0.0, captured.Position().Y)
}

func TestGraphSnapshot_NodeReturnsClone(t *testing.T) {
	ws := testWorkspaceID()
	node := mustNode(t, ws, "idea", 0, 0)
	snapshot := NewGraphSnapshot(nodeMap(node), nil)

	first := snapshot.Node(node.ID())
	require.NoError(t, first.MoveTo(valueobjects.Position{X: 99, Y: 99}))

	second := snapshot.Node(node.ID())
	assert.Equal(t, 0.0, second.Position().X)
}

func TestValidate_CleanGraph(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	edge := mustEdge(t, ws, a.ID(), b.ID())

	snapshot := NewGraphSnapshot(nodeMap(a, b), edgeMap(edge))

	assert.NoError(t, snapshot.Validate())
}

func TestValidate_DanglingEdgeEndpoint(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	edge := mustEdge(t, ws, a.ID(), b.ID())

	// b's node is missing from the snapshot
	snapshot := NewGraphSnapshot(nodeMap(a), edgeMap(edge))

	err := snapshot.Validate()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIntegrity(err))
}

func TestValidate_CycleDetected(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	c := mustNode(t, ws, "c", 200, 0)

	snapshot := NewGraphSnapshot(
		nodeMap(a, b, c),
		edgeMap(
			mustEdge(t, ws, a.ID(), b.ID()),
			mustEdge(t, ws, b.ID(), c.ID()),
			mustEdge(t, ws, c.ID(), a.ID()),
		),
	)

	err := snapshot.Validate()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIntegrity(err))
}

func TestValidate_DiamondIsNotACycle(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	c := mustNode(t, ws, "c", 200, 0)
	d := mustNode(t, ws, "d", 300, 0)

	// a->b, a->c, b->d, c->d: shared descendant, no cycle
	snapshot := NewGraphSnapshot(
		nodeMap(a, b, c, d),
		edgeMap(
			mustEdge(t, ws, a.ID(), b.ID()),
			mustEdge(t, ws, a.ID(), c.ID()),
			mustEdge(t, ws, b.ID(), d.ID()),
			mustEdge(t, ws, c.ID(), d.ID()),
		),
	)

	assert.NoError(t, snapshot.Validate())
}

func TestReport_ListsProblems(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	edge := mustEdge(t, ws, a.ID(), b.ID())

	snapshot := NewGraphSnapshot(nodeMap(a), edgeMap(edge))
	report := snapshot.Report()

	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.NodeCount)
	assert.Equal(t, 1, report.EdgeCount)
	assert.NotEmpty(t, report.Problems)
}

func TestEqual_IdenticalStates(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	edge := mustEdge(t, ws, a.ID(), b.ID())

	s1 := NewGraphSnapshot(nodeMap(a, b), edgeMap(edge))
	s2 := NewGraphSnapshot(nodeMap(a, b), edgeMap(edge))

	assert.True(t, s1.Equal(s2))
}

func TestEqual_DetectsPositionChange(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)

	before := NewGraphSnapshot(nodeMap(a), nil)
	require.NoError(t, a.MoveTo(valueobjects.Position{X: 10, Y: 10}))
	after := NewGraphSnapshot(nodeMap(a), nil)

	assert.False(t, before.Equal(after))
}

func TestDiffFrom_InsertAndDelete(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	b := mustNode(t, ws, "b", 100, 0)
	c := mustNode(t, ws, "c", 200, 0)
	edgeAB := mustEdge(t, ws, a.ID(), b.ID())
	edgeAC := mustEdge(t, ws, a.ID(), c.ID())

	// Target: a, b with a->b. Current: a, c with a->c.
	target := NewGraphSnapshot(nodeMap(a, b), edgeMap(edgeAB))
	current := NewGraphSnapshot(nodeMap(a, c), edgeMap(edgeAC))

	plan := target.DiffFrom(current)

	require.Len(t, plan.NodesToInsert, 1)
	assert.Equal(t, b.ID(), plan.NodesToInsert[0].ID())
	require.Len(t, plan.EdgesToInsert, 1)
	assert.Equal(t, edgeAB.ID(), plan.EdgesToInsert[0].ID())
	require.Len(t, plan.NodeIDsToDelete, 1)
	assert.Equal(t, c.ID(), plan.NodeIDsToDelete[0])
	require.Len(t, plan.EdgeIDsToDelete, 1)
	assert.Equal(t, edgeAC.ID(), plan.EdgeIDsToDelete[0])
}

func TestDiffFrom_UpsertChangedNode(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)

	current := NewGraphSnapshot(nodeMap(a), nil)
	require.NoError(t, a.MoveTo(valueobjects.Position{X: 42, Y: 0}))
	target := NewGraphSnapshot(nodeMap(a), nil)

	plan := target.DiffFrom(current)

	assert.Empty(t, plan.NodesToInsert)
	assert.Empty(t, plan.NodeIDsToDelete)
	require.Len(t, plan.NodesToUpsert, 1)
	assert.Equal(t, 42.0, plan.NodesToUpsert[0].Position().X)
}

func TestDiffFrom_IdenticalStatesIsEmpty(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)

	s1 := NewGraphSnapshot(nodeMap(a), nil)
	s2 := NewGraphSnapshot(nodeMap(a), nil)

	assert.True(t, s1.DiffFrom(s2).IsEmpty())
}

func TestCloneState_IndependentOfSnapshot(t *testing.T) {
	ws := testWorkspaceID()
	a := mustNode(t, ws, "a", 0, 0)
	snapshot := NewGraphSnapshot(nodeMap(a), nil)

	nodes, edges := snapshot.CloneState()
	require.Len(t, nodes, 1)
	assert.Empty(t, edges)

	// Mutating the clone must not affect the snapshot
	require.NoError(t, nodes[a.ID()].MoveTo(valueobjects.Position{X: 7, Y: 7}))
	assert.Equal(t, 0.0, snapshot.Node(a.ID()).Position().X)
}
