package queries

import (
	"sort"

	"braindump/application/services"
	"braindump/domain/core/entities"
)

// GraphView is the full render model of a workspace: every node, every
// edge, the viewport and summary statistics. Built on demand from the
// in-memory store, never cached.
type GraphView struct {
	WorkspaceID string      `json:"workspace_id"`
	Name        string      `json:"name"`
	Nodes       []NodeView  `json:"nodes"`
	Edges       []EdgeView  `json:"edges"`
	Viewport    Viewport    `json:"viewport"`
	Stats       GraphVStats `json:"stats"`
}

// NodeView is the render model of a single node
type NodeView struct {
	ID       string                 `json:"id"`
	Kind     string                 `json:"kind"`
	Text     string                 `json:"text"`
	Summary  string                 `json:"summary,omitempty"`
	State    string                 `json:"state"`
	Resource string                 `json:"resource,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	X        float64                `json:"x"`
	Y        float64                `json:"y"`
	Width    float64                `json:"width"`
	Height   float64                `json:"height"`
	Selected bool                   `json:"selected"`
}

// EdgeView is the render model of a single edge
type EdgeView struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	Type     string `json:"type"`
	Note     string `json:"note,omitempty"`
}

// Viewport is the persisted canvas pan/zoom state
type Viewport struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// GraphVStats summarizes the graph for dashboards and debugging
type GraphVStats struct {
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	Density   float64 `json:"density"`
}

// BuildGraphView assembles the render model from the live store state.
// Output ordering is deterministic (by id) so consecutive builds of an
// unchanged graph are byte-identical.
func BuildGraphView(store *services.GraphStore) GraphView {
	workspace := store.Workspace()

	selected := make(map[string]bool)
	for _, id := range store.SelectedIDs() {
		selected[id.String()] = true
	}

	nodes := store.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID().String() < nodes[j].ID().String() })
	nodeViews := make([]NodeView, 0, len(nodes))
	for _, node := range nodes {
		nodeViews = append(nodeViews, newNodeView(node, selected[node.ID().String()]))
	}

	edges := store.Edges()
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID().String() < edges[j].ID().String() })
	edgeViews := make([]EdgeView, 0, len(edges))
	for _, edge := range edges {
		edgeViews = append(edgeViews, EdgeView{
			ID:       edge.ID().String(),
			ParentID: edge.ParentID().String(),
			ChildID:  edge.ChildID().String(),
			Type:     edge.Type(),
			Note:     edge.Note(),
		})
	}

	viewport := workspace.Viewport()

	var density float64
	if len(nodeViews) > 1 {
		maxEdges := float64(len(nodeViews)) * float64(len(nodeViews)-1)
		density = float64(len(edgeViews)) / maxEdges
	}

	return GraphView{
		WorkspaceID: workspace.ID().String(),
		Name:        workspace.Name(),
		Nodes:       nodeViews,
		Edges:       edgeViews,
		Viewport: Viewport{
			PanX: viewport.Pan.X,
			PanY: viewport.Pan.Y,
			Zoom: viewport.Zoom,
		},
		Stats: GraphVStats{
			NodeCount: len(nodeViews),
			EdgeCount: len(edgeViews),
			Density:   density,
		},
	}
}

func newNodeView(node *entities.Node, selected bool) NodeView {
	return NodeView{
		ID:       node.ID().String(),
		Kind:     string(node.Kind()),
		Text:     node.Content().Text(),
		Summary:  node.Content().Summary(),
		State:    string(node.State()),
		Resource: node.Resource(),
		Metadata: node.Metadata(),
		X:        node.Position().X,
		Y:        node.Position().Y,
		Width:    node.Size().Width,
		Height:   node.Size().Height,
		Selected: selected,
	}
}
