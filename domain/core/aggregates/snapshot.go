package aggregates

import (
	"fmt"
	"sort"
	"time"

	"braindump/domain/core/entities"
	"braindump/domain/core/valueobjects"
	pkgerrors "braindump/pkg/errors"
)

// GraphSnapshot is an immutable deep copy of the full node/edge state at
// one instant. Snapshots are the unit of undo/redo: the history manager
// only ever stores and returns copies, so a live mutation can never
// corrupt a stored state through shared references.
type GraphSnapshot struct {
	nodes   map[valueobjects.NodeID]*entities.Node
	edges   map[valueobjects.EdgeID]*entities.Edge
	takenAt time.Time
}

// NewGraphSnapshot deep-copies the given maps into a snapshot
func NewGraphSnapshot(nodes map[valueobjects.NodeID]*entities.Node, edges map[valueobjects.EdgeID]*entities.Edge) *GraphSnapshot {
	snapNodes := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
	for id, node := range nodes {
		snapNodes[id] = node.Clone()
	}
	snapEdges := make(map[valueobjects.EdgeID]*entities.Edge, len(edges))
	for id, edge := range edges {
		snapEdges[id] = edge.Clone()
	}

	return &GraphSnapshot{
		nodes:   snapNodes,
		edges:   snapEdges,
		takenAt: time.Now(),
	}
}

// TakenAt returns when the snapshot was captured
func (s *GraphSnapshot) TakenAt() time.Time {
	return s.takenAt
}

// NodeCount returns the number of nodes in the snapshot
func (s *GraphSnapshot) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the snapshot
func (s *GraphSnapshot) EdgeCount() int {
	return len(s.edges)
}

// HasNode reports whether the snapshot contains the node
func (s *GraphSnapshot) HasNode(id valueobjects.NodeID) bool {
	_, ok := s.nodes[id]
	return ok
}

// HasEdge reports whether the snapshot contains the edge
func (s *GraphSnapshot) HasEdge(id valueobjects.EdgeID) bool {
	_, ok := s.edges[id]
	return ok
}

// Node returns a deep copy of the node, or nil if absent
func (s *GraphSnapshot) Node(id valueobjects.NodeID) *entities.Node {
	node, ok := s.nodes[id]
	if !ok {
		return nil
	}
	return node.Clone()
}

// Edge returns a deep copy of the edge, or nil if absent
func (s *GraphSnapshot) Edge(id valueobjects.EdgeID) *entities.Edge {
	edge, ok := s.edges[id]
	if !ok {
		return nil
	}
	return edge.Clone()
}

// CloneState returns deep copies of both maps, suitable for installing
// as live store state
func (s *GraphSnapshot) CloneState() (map[valueobjects.NodeID]*entities.Node, map[valueobjects.EdgeID]*entities.Edge) {
	nodes := make(map[valueobjects.NodeID]*entities.Node, len(s.nodes))
	for id, node := range s.nodes {
		nodes[id] = node.Clone()
	}
	edges := make(map[valueobjects.EdgeID]*entities.Edge, len(s.edges))
	for id, edge := range s.edges {
		edges[id] = edge.Clone()
	}
	return nodes, edges
}

// Validate runs the structural integrity checks every snapshot must pass
// before it is trusted: every edge endpoint must resolve to a node in
// the same snapshot, and the parent->child relation must be acyclic.
func (s *GraphSnapshot) Validate() error {
	for id, edge := range s.edges {
		if _, ok := s.nodes[edge.ParentID()]; !ok {
			return pkgerrors.NewIntegrityError(
				fmt.Sprintf("edge %s references missing parent node %s", id.String(), edge.ParentID().String()))
		}
		if _, ok := s.nodes[edge.ChildID()]; !ok {
			return pkgerrors.NewIntegrityError(
				fmt.Sprintf("edge %s references missing child node %s", id.String(), edge.ChildID().String()))
		}
	}

	if cycle := s.findCycle(); len(cycle) > 0 {
		return pkgerrors.NewIntegrityError(
			fmt.Sprintf("edge set contains a cycle through node %s", cycle[0].String()))
	}

	return nil
}

// ValidationReport describes the snapshot's structural health for the
// debug/introspection surface
type ValidationReport struct {
	Valid     bool     `json:"valid"`
	NodeCount int      `json:"node_count"`
	EdgeCount int      `json:"edge_count"`
	Problems  []string `json:"problems,omitempty"`
}

// Report collects every structural problem instead of stopping at the
// first one
func (s *GraphSnapshot) Report() ValidationReport {
	report := ValidationReport{
		Valid:     true,
		NodeCount: len(s.nodes),
		EdgeCount: len(s.edges),
	}

	for id, edge := range s.edges {
		if _, ok := s.nodes[edge.ParentID()]; !ok {
			report.Problems = append(report.Problems,
				fmt.Sprintf("edge %s references missing parent node %s", id.String(), edge.ParentID().String()))
		}
		if _, ok := s.nodes[edge.ChildID()]; !ok {
			report.Problems = append(report.Problems,
				fmt.Sprintf("edge %s references missing child node %s", id.String(), edge.ChildID().String()))
		}
	}

	if cycle := s.findCycle(); len(cycle) > 0 {
		report.Problems = append(report.Problems,
			fmt.Sprintf("edge set contains a cycle through node %s", cycle[0].String()))
	}

	sort.Strings(report.Problems)
	report.Valid = len(report.Problems) == 0
	return report
}

// findCycle runs a DFS with a recursion stack over the parent->child
// arcs and returns the nodes on the first cycle found, or nil
func (s *GraphSnapshot) findCycle() []valueobjects.NodeID {
	children := make(map[valueobjects.NodeID][]valueobjects.NodeID, len(s.nodes))
	for _, edge := range s.edges {
		children[edge.ParentID()] = append(children[edge.ParentID()], edge.ChildID())
	}

	visited := make(map[valueobjects.NodeID]bool, len(s.nodes))
	onStack := make(map[valueobjects.NodeID]bool)

	var stack []valueobjects.NodeID
	var dfs func(id valueobjects.NodeID) []valueobjects.NodeID

	dfs = func(id valueobjects.NodeID) []valueobjects.NodeID {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, child := range children[id] {
			if onStack[child] {
				// Slice the current path from the repeated node onward
				for i, n := range stack {
					if n.Equals(child) {
						cycle := make([]valueobjects.NodeID, len(stack)-i)
						copy(cycle, stack[i:])
						return cycle
					}
				}
				return []valueobjects.NodeID{child}
			}
			if !visited[child] {
				if cycle := dfs(child); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for id := range s.nodes {
		if !visited[id] {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ReconcilePlan is the minimal set of remote operations that transforms
// the current persisted state into the snapshot's state. The slices are
// meant to be applied in declaration order: inserts go nodes first so
// edges always find their endpoints, deletes go edges first so no
// dangling reference is ever persisted.
type ReconcilePlan struct {
	NodesToInsert   []*entities.Node
	EdgesToInsert   []*entities.Edge
	NodesToUpsert   []*entities.Node
	EdgesToUpsert   []*entities.Edge
	EdgeIDsToDelete []valueobjects.EdgeID
	NodeIDsToDelete []valueobjects.NodeID
}

// IsEmpty reports whether the plan contains no operations
func (p *ReconcilePlan) IsEmpty() bool {
	return len(p.NodesToInsert) == 0 && len(p.EdgesToInsert) == 0 &&
		len(p.NodesToUpsert) == 0 && len(p.EdgesToUpsert) == 0 &&
		len(p.EdgeIDsToDelete) == 0 && len(p.NodeIDsToDelete) == 0
}

// DiffFrom computes the plan that reconciles persisted state from the
// current snapshot to this (target) snapshot. Entities present in the
// target but absent from current are inserted; entities present in both
// but changed are upserted; entities absent from the target are deleted.
func (s *GraphSnapshot) DiffFrom(current *GraphSnapshot) *ReconcilePlan {
	plan := &ReconcilePlan{}

	for id, node := range s.nodes {
		curNode, ok := current.nodes[id]
		switch {
		case !ok:
			plan.NodesToInsert = append(plan.NodesToInsert, node.Clone())
		case nodeDiffers(curNode, node):
			plan.NodesToUpsert = append(plan.NodesToUpsert, node.Clone())
		}
	}
	for id := range current.nodes {
		if _, ok := s.nodes[id]; !ok {
			plan.NodeIDsToDelete = append(plan.NodeIDsToDelete, id)
		}
	}

	for id, edge := range s.edges {
		curEdge, ok := current.edges[id]
		switch {
		case !ok:
			plan.EdgesToInsert = append(plan.EdgesToInsert, edge.Clone())
		case edgeDiffers(curEdge, edge):
			plan.EdgesToUpsert = append(plan.EdgesToUpsert, edge.Clone())
		}
	}
	for id := range current.edges {
		if _, ok := s.edges[id]; !ok {
			plan.EdgeIDsToDelete = append(plan.EdgeIDsToDelete, id)
		}
	}

	plan.sortDeterministic()
	return plan
}

// sortDeterministic orders the plan slices by ID so reconciliation is
// reproducible across runs
func (p *ReconcilePlan) sortDeterministic() {
	sort.Slice(p.NodesToInsert, func(i, j int) bool {
		return p.NodesToInsert[i].ID().String() < p.NodesToInsert[j].ID().String()
	})
	sort.Slice(p.EdgesToInsert, func(i, j int) bool {
		return p.EdgesToInsert[i].ID().String() < p.EdgesToInsert[j].ID().String()
	})
	sort.Slice(p.NodesToUpsert, func(i, j int) bool {
		return p.NodesToUpsert[i].ID().String() < p.NodesToUpsert[j].ID().String()
	})
	sort.Slice(p.EdgesToUpsert, func(i, j int) bool {
		return p.EdgesToUpsert[i].ID().String() < p.EdgesToUpsert[j].ID().String()
	})
	sort.Slice(p.EdgeIDsToDelete, func(i, j int) bool {
		return p.EdgeIDsToDelete[i].String() < p.EdgeIDsToDelete[j].String()
	})
	sort.Slice(p.NodeIDsToDelete, func(i, j int) bool {
		return p.NodeIDsToDelete[i].String() < p.NodeIDsToDelete[j].String()
	})
}

// Equal reports whether two snapshots describe the same graph state,
// node-for-node and edge-for-edge
func (s *GraphSnapshot) Equal(other *GraphSnapshot) bool {
	if other == nil {
		return false
	}
	if len(s.nodes) != len(other.nodes) || len(s.edges) != len(other.edges) {
		return false
	}
	for id, node := range s.nodes {
		otherNode, ok := other.nodes[id]
		if !ok || nodeDiffers(node, otherNode) {
			return false
		}
	}
	for id, edge := range s.edges {
		otherEdge, ok := other.edges[id]
		if !ok || edgeDiffers(edge, otherEdge) {
			return false
		}
	}
	return true
}

// nodeDiffers compares the persisted fields of two nodes
func nodeDiffers(a, b *entities.Node) bool {
	return a.Content().Text() != b.Content().Text() ||
		a.Content().Summary() != b.Content().Summary() ||
		!a.Position().Equals(b.Position()) ||
		!a.Size().Equals(b.Size()) ||
		a.State() != b.State() ||
		a.Resource() != b.Resource()
}

// edgeDiffers compares the persisted fields of two edges
func edgeDiffers(a, b *entities.Edge) bool {
	return !a.ParentID().Equals(b.ParentID()) ||
		!a.ChildID().Equals(b.ChildID()) ||
		a.Type() != b.Type() ||
		a.Note() != b.Note()
}
