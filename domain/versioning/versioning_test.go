package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braindump/domain/core/aggregates"
	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
)

func buildSnapshot(t *testing.T, texts ...string) *aggregates.GraphSnapshot {
	t.Helper()
	ws := valueobjects.NewWorkspaceID()
	nodes := make(map[valueobjects.NodeID]*entities.Node, len(texts))
	for i, text := range texts {
		content, err := valueobjects.NewIdeaContent(text)
		require.NoError(t, err)
		node, err := entities.NewNode(ws, content, valueobjects.Position{X: float64(i) * 100}, nil)
		require.NoError(t, err)
		nodes[node.ID()] = node
	}
	return aggregates.NewGraphSnapshot(nodes, nil)
}

func TestDescribe_StableAcrossClones(t *testing.T) {
	snapshot := buildSnapshot(t, "first", "second")

	a := Describe(snapshot)
	b := Describe(snapshot)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.Equal(t, 2, a.NodeCount)
	assert.Equal(t, 0, a.EdgeCount)
}

func TestDescribe_DifferentContentDifferentChecksum(t *testing.T) {
	a := Describe(buildSnapshot(t, "first"))
	b := Describe(buildSnapshot(t, "changed"))

	assert.NotEqual(t, a.Checksum, b.Checksum)
}

func TestDescribe_NilSnapshot(t *testing.T) {
	info := Describe(nil)

	assert.Empty(t, info.Checksum)
	assert.Zero(t, info.NodeCount)
}

func TestCompare_ReportsDeltas(t *testing.T) {
	from := Describe(buildSnapshot(t, "one"))
	to := Describe(buildSnapshot(t, "one", "two", "three"))

	diff := Compare(from, to)

	assert.False(t, diff.Same)
	assert.Equal(t, 2, diff.NodesDelta)
}

func TestCompare_SameSnapshot(t *testing.T) {
	info := Describe(buildSnapshot(t, "only"))

	diff := Compare(info, info)

	assert.True(t, diff.Same)
	assert.Zero(t, diff.NodesDelta)
	assert.Zero(t, diff.TimeDelta)
}
