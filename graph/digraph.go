// Package graph implements a minimal directed graph with attribute-carrying
// nodes and edges. It backs both workflow DAG construction and the
// agent-communication graphs, so it only offers the operations those
// builders need: storage, degrees, centrality, copy and removal.
//
// Every operation is total over the current state. Queries against absent
// nodes or edges return zero values, and mutations of absent elements are
// no-ops, so callers never guard against missing ids.
package graph

// Attrs holds the free-form attributes of a node or an edge.
type Attrs map[string]any

// Edge identifies one directed node pair.
type Edge struct {
	Source string
	Target string
}

// DiGraph is a directed graph keyed by string node ids. Node and edge
// iteration follows insertion order, which keeps downstream snapshots
// deterministic. The zero value is not usable; call New.
type DiGraph struct {
	nodeOrder []string
	nodeData  map[string]Attrs

	succ map[string]map[string]Attrs
	pred map[string]map[string]struct{}

	succOrder map[string][]string
	predOrder map[string][]string

	edgeOrder []Edge
}

// New returns an empty directed graph.
func New() *DiGraph {
	return &DiGraph{
		nodeData:  make(map[string]Attrs),
		succ:      make(map[string]map[string]Attrs),
		pred:      make(map[string]map[string]struct{}),
		succOrder: make(map[string][]string),
		predOrder: make(map[string][]string),
	}
}

// AddNode inserts a node, or merges data into it if it already exists.
// The data map is copied, never retained.
func (g *DiGraph) AddNode(id string, data Attrs) {
	attrs, ok := g.nodeData[id]
	if !ok {
		attrs = make(Attrs, len(data))
		g.nodeData[id] = attrs
		g.nodeOrder = append(g.nodeOrder, id)
	}
	for k, v := range data {
		attrs[k] = v
	}
}

// AddEdge inserts a directed edge, creating missing endpoints. Adding an
// existing pair merges data into the edge instead of duplicating it.
func (g *DiGraph) AddEdge(src, dst string, data Attrs) {
	g.AddNode(src, nil)
	g.AddNode(dst, nil)

	adj, ok := g.succ[src]
	if !ok {
		adj = make(map[string]Attrs)
		g.succ[src] = adj
	}
	attrs, exists := adj[dst]
	if !exists {
		attrs = make(Attrs, len(data))
		adj[dst] = attrs

		back, ok := g.pred[dst]
		if !ok {
			back = make(map[string]struct{})
			g.pred[dst] = back
		}
		back[src] = struct{}{}

		g.succOrder[src] = append(g.succOrder[src], dst)
		g.predOrder[dst] = append(g.predOrder[dst], src)
		g.edgeOrder = append(g.edgeOrder, Edge{Source: src, Target: dst})
	}
	for k, v := range data {
		attrs[k] = v
	}
}

// HasNode reports whether the node exists.
func (g *DiGraph) HasNode(id string) bool {
	_, ok := g.nodeData[id]
	return ok
}

// HasEdge reports whether the directed edge exists.
func (g *DiGraph) HasEdge(src, dst string) bool {
	adj, ok := g.succ[src]
	if !ok {
		return false
	}
	_, ok = adj[dst]
	return ok
}

// NodeData returns the node's live attribute map, or nil if absent.
func (g *DiGraph) NodeData(id string) Attrs {
	return g.nodeData[id]
}

// EdgeData returns the edge's live attribute map, or nil if absent.
func (g *DiGraph) EdgeData(src, dst string) Attrs {
	adj, ok := g.succ[src]
	if !ok {
		return nil
	}
	return adj[dst]
}

// UpdateEdgeData shallow-merges data into an existing edge. Absent edges
// are left untouched.
func (g *DiGraph) UpdateEdgeData(src, dst string, data Attrs) {
	attrs := g.EdgeData(src, dst)
	if attrs == nil {
		return
	}
	for k, v := range data {
		attrs[k] = v
	}
}

// SetEdgeData replaces an existing edge's attributes. Absent edges are
// left untouched.
func (g *DiGraph) SetEdgeData(src, dst string, data Attrs) {
	adj, ok := g.succ[src]
	if !ok {
		return
	}
	if _, ok := adj[dst]; !ok {
		return
	}
	attrs := make(Attrs, len(data))
	for k, v := range data {
		attrs[k] = v
	}
	adj[dst] = attrs
}

// RemoveEdge deletes the directed edge if present.
func (g *DiGraph) RemoveEdge(src, dst string) {
	adj, ok := g.succ[src]
	if !ok {
		return
	}
	if _, ok := adj[dst]; !ok {
		return
	}
	delete(adj, dst)
	delete(g.pred[dst], src)
	g.succOrder[src] = removeID(g.succOrder[src], dst)
	g.predOrder[dst] = removeID(g.predOrder[dst], src)
	for i, e := range g.edgeOrder {
		if e.Source == src && e.Target == dst {
			g.edgeOrder = append(g.edgeOrder[:i], g.edgeOrder[i+1:]...)
			break
		}
	}
}

// RemoveNode deletes a node and every incident edge.
func (g *DiGraph) RemoveNode(id string) {
	if _, ok := g.nodeData[id]; !ok {
		return
	}
	for _, dst := range append([]string(nil), g.succOrder[id]...) {
		g.RemoveEdge(id, dst)
	}
	for _, src := range append([]string(nil), g.predOrder[id]...) {
		g.RemoveEdge(src, id)
	}
	delete(g.nodeData, id)
	delete(g.succ, id)
	delete(g.pred, id)
	delete(g.succOrder, id)
	delete(g.predOrder, id)
	g.nodeOrder = removeID(g.nodeOrder, id)
}

// RemoveNodes deletes all listed nodes and their incident edges.
func (g *DiGraph) RemoveNodes(ids []string) {
	for _, id := range ids {
		g.RemoveNode(id)
	}
}

// NodeCount returns the number of nodes.
func (g *DiGraph) NodeCount() int {
	return len(g.nodeOrder)
}

// EdgeCount returns the number of edges.
func (g *DiGraph) EdgeCount() int {
	return len(g.edgeOrder)
}

// Nodes returns node ids in insertion order.
func (g *DiGraph) Nodes() []string {
	return append([]string(nil), g.nodeOrder...)
}

// Edges returns edges in insertion order.
func (g *DiGraph) Edges() []Edge {
	return append([]Edge(nil), g.edgeOrder...)
}

// Successors returns the targets of the node's outgoing edges in insertion
// order.
func (g *DiGraph) Successors(id string) []string {
	return append([]string(nil), g.succOrder[id]...)
}

// Predecessors returns the sources of the node's incoming edges in
// insertion order.
func (g *DiGraph) Predecessors(id string) []string {
	return append([]string(nil), g.predOrder[id]...)
}

// InDegree returns the number of incoming edges.
func (g *DiGraph) InDegree(id string) int {
	return len(g.pred[id])
}

// OutDegree returns the number of outgoing edges.
func (g *DiGraph) OutDegree(id string) int {
	return len(g.succ[id])
}

// Degree returns the total number of incident edges.
func (g *DiGraph) Degree(id string) int {
	return g.InDegree(id) + g.OutDegree(id)
}

// Isolates returns the ids of nodes with no incident edges, in insertion
// order.
func (g *DiGraph) Isolates() []string {
	var isolated []string
	for _, id := range g.nodeOrder {
		if g.Degree(id) == 0 {
			isolated = append(isolated, id)
		}
	}
	return isolated
}

// Density returns the ratio of existing edges to possible edges,
// edges / (n·(n−1)). Graphs with fewer than two nodes have density 0.
func (g *DiGraph) Density() float64 {
	n := len(g.nodeOrder)
	if n <= 1 {
		return 0
	}
	return float64(len(g.edgeOrder)) / float64(n*(n-1))
}

// DegreeCentrality returns per-node total degree normalized by n−1.
// Single-node graphs report 1 for their node.
func (g *DiGraph) DegreeCentrality() map[string]float64 {
	return g.centrality(g.Degree)
}

// InDegreeCentrality returns per-node in-degree normalized by n−1.
func (g *DiGraph) InDegreeCentrality() map[string]float64 {
	return g.centrality(g.InDegree)
}

// OutDegreeCentrality returns per-node out-degree normalized by n−1.
func (g *DiGraph) OutDegreeCentrality() map[string]float64 {
	return g.centrality(g.OutDegree)
}

func (g *DiGraph) centrality(degree func(string) int) map[string]float64 {
	out := make(map[string]float64, len(g.nodeOrder))
	n := len(g.nodeOrder)
	if n <= 1 {
		for _, id := range g.nodeOrder {
			out[id] = 1
		}
		return out
	}
	scale := 1 / float64(n-1)
	for _, id := range g.nodeOrder {
		out[id] = float64(degree(id)) * scale
	}
	return out
}

// Copy returns an independent clone. Attribute maps are duplicated one
// level deep, so callers replacing attribute values on the copy never
// touch the original.
func (g *DiGraph) Copy() *DiGraph {
	clone := New()
	clone.nodeOrder = append([]string(nil), g.nodeOrder...)
	for id, attrs := range g.nodeData {
		c := make(Attrs, len(attrs))
		for k, v := range attrs {
			c[k] = v
		}
		clone.nodeData[id] = c
	}
	for src, adj := range g.succ {
		cadj := make(map[string]Attrs, len(adj))
		for dst, attrs := range adj {
			c := make(Attrs, len(attrs))
			for k, v := range attrs {
				c[k] = v
			}
			cadj[dst] = c
		}
		clone.succ[src] = cadj
	}
	for dst, back := range g.pred {
		cback := make(map[string]struct{}, len(back))
		for src := range back {
			cback[src] = struct{}{}
		}
		clone.pred[dst] = cback
	}
	for id, order := range g.succOrder {
		clone.succOrder[id] = append([]string(nil), order...)
	}
	for id, order := range g.predOrder {
		clone.predOrder[id] = append([]string(nil), order...)
	}
	clone.edgeOrder = append([]Edge(nil), g.edgeOrder...)
	return clone
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
