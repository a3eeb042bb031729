// Package versioning fingerprints graph snapshots. A version descriptor
// is a content-addressed summary of a snapshot: two snapshots with the
// same checksum hold the same graph, regardless of when they were
// captured. The debug surface uses descriptors to tell whether an
// undo/redo actually changed anything and to spot divergence between
// the live graph and the history cursor.
package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"braindump/domain/core/aggregates"
)

// VersionInfo describes one snapshot by content
type VersionInfo struct {
	Checksum  string    `json:"checksum"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	TakenAt   time.Time `json:"taken_at"`
}

// Describe computes the version descriptor for a snapshot. The checksum
// covers node identity, text, position, size and state, plus edge
// identity and endpoints, in sorted order so equal graphs always hash
// equal.
func Describe(snapshot *aggregates.GraphSnapshot) VersionInfo {
	if snapshot == nil {
		return VersionInfo{}
	}

	nodes, edges := snapshot.CloneState()

	lines := make([]string, 0, len(nodes)+len(edges))
	for _, node := range nodes {
		lines = append(lines, fmt.Sprintf("n|%s|%s|%.2f|%.2f|%.2f|%.2f|%s",
			node.ID(),
			node.Content().Text(),
			node.Position().X, node.Position().Y,
			node.Size().Width, node.Size().Height,
			node.State(),
		))
	}
	for _, edge := range edges {
		lines = append(lines, fmt.Sprintf("e|%s|%s|%s|%s",
			edge.ID(), edge.ParentID(), edge.ChildID(), edge.Type()))
	}
	sort.Strings(lines)

	hash := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return VersionInfo{
		Checksum:  hex.EncodeToString(hash[:]),
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		TakenAt:   snapshot.TakenAt(),
	}
}

// VersionDiff summarizes how one described snapshot relates to another
type VersionDiff struct {
	Same       bool          `json:"same"`
	NodesDelta int           `json:"nodes_delta"`
	EdgesDelta int           `json:"edges_delta"`
	TimeDelta  time.Duration `json:"time_delta"`
}

// Compare reports the coarse difference between two descriptors
func Compare(from, to VersionInfo) VersionDiff {
	return VersionDiff{
		Same:       from.Checksum == to.Checksum,
		NodesDelta: to.NodeCount - from.NodeCount,
		EdgesDelta: to.EdgeCount - from.EdgeCount,
		TimeDelta:  to.TakenAt.Sub(from.TakenAt),
	}
}
