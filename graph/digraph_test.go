package graph

import "testing"

func TestAddNodeMergesData(t *testing.T) {
	g := New()
	g.AddNode("a", Attrs{"label": "first", "count": 1})
	g.AddNode("a", Attrs{"count": 2})

	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
	data := g.NodeData("a")
	if data["label"] != "first" || data["count"] != 2 {
		t.Fatalf("unexpected node data: %+v", data)
	}
}

func TestAddEdgeAutoCreatesEndpoints(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", Attrs{"weight": 1})

	if !g.HasNode("a") || !g.HasNode("b") {
		t.Fatalf("expected endpoints to be created")
	}
	if !g.HasEdge("a", "b") {
		t.Fatalf("expected edge a->b")
	}
	if g.HasEdge("b", "a") {
		t.Fatalf("did not expect reverse edge")
	}
}

func TestAddEdgeIdempotent(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", Attrs{"weight": 1})
	g.AddEdge("a", "b", Attrs{"weight": 2, "kind": "flow"})

	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	data := g.EdgeData("a", "b")
	if data["weight"] != 2 || data["kind"] != "flow" {
		t.Fatalf("unexpected edge data: %+v", data)
	}
}

func TestMissingElementsAreZero(t *testing.T) {
	g := New()
	if g.EdgeData("x", "y") != nil {
		t.Fatalf("expected nil data for missing edge")
	}
	if g.NodeData("x") != nil {
		t.Fatalf("expected nil data for missing node")
	}
	if g.InDegree("x") != 0 || g.OutDegree("x") != 0 {
		t.Fatalf("expected zero degrees for missing node")
	}
	// Mutations of absent elements must not create anything.
	g.UpdateEdgeData("x", "y", Attrs{"k": 1})
	g.SetEdgeData("x", "y", Attrs{"k": 1})
	g.RemoveEdge("x", "y")
	g.RemoveNode("x")
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Fatalf("expected graph to stay empty, got %d nodes %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func TestUpdateAndSetEdgeData(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", Attrs{"weight": 1, "kind": "flow"})

	g.UpdateEdgeData("a", "b", Attrs{"weight": 5})
	data := g.EdgeData("a", "b")
	if data["weight"] != 5 || data["kind"] != "flow" {
		t.Fatalf("expected merge to keep untouched keys: %+v", data)
	}

	g.SetEdgeData("a", "b", Attrs{"weight": 9})
	data = g.EdgeData("a", "b")
	if data["weight"] != 9 {
		t.Fatalf("expected replaced weight, got %+v", data)
	}
	if _, ok := data["kind"]; ok {
		t.Fatalf("expected replace to drop old keys: %+v", data)
	}
}

func TestRemoveEdge(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", nil)
	g.AddEdge("a", "c", nil)
	g.RemoveEdge("a", "b")

	if g.HasEdge("a", "b") {
		t.Fatalf("expected edge a->b removed")
	}
	if !g.HasEdge("a", "c") {
		t.Fatalf("expected edge a->c kept")
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	if got := g.InDegree("b"); got != 0 {
		t.Fatalf("expected in-degree 0 for b, got %d", got)
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", nil)
	g.AddEdge("b", "c", nil)
	g.AddEdge("c", "a", nil)
	g.RemoveNode("b")

	if g.NodeCount() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	if g.HasEdge("a", "b") || g.HasEdge("b", "c") {
		t.Fatalf("expected incident edges removed")
	}
	if !g.HasEdge("c", "a") {
		t.Fatalf("expected unrelated edge kept")
	}
}

func TestRemoveNodes(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)
	g.RemoveNodes([]string{"c", "d"})

	if g.NodeCount() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.NodeCount())
	}
}

func TestDegrees(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", nil)
	g.AddEdge("a", "c", nil)
	g.AddEdge("b", "c", nil)

	if got := g.OutDegree("a"); got != 2 {
		t.Fatalf("expected out-degree 2, got %d", got)
	}
	if got := g.InDegree("c"); got != 2 {
		t.Fatalf("expected in-degree 2, got %d", got)
	}
	if got := g.Degree("b"); got != 2 {
		t.Fatalf("expected degree 2, got %d", got)
	}
}

func TestIsolates(t *testing.T) {
	g := New()
	g.AddNode("lonely", nil)
	g.AddEdge("a", "b", nil)
	g.AddNode("alone", nil)

	isolated := g.Isolates()
	if len(isolated) != 2 || isolated[0] != "lonely" || isolated[1] != "alone" {
		t.Fatalf("unexpected isolates: %v", isolated)
	}
}

func TestDensity(t *testing.T) {
	g := New()
	if g.Density() != 0 {
		t.Fatalf("expected 0 density for empty graph")
	}
	g.AddNode("a", nil)
	if g.Density() != 0 {
		t.Fatalf("expected 0 density for single node")
	}
	g.AddEdge("a", "b", nil)
	g.AddEdge("b", "a", nil)
	// 2 edges out of 2 possible.
	if got := g.Density(); got != 1 {
		t.Fatalf("expected density 1, got %f", got)
	}
}

func TestCentrality(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", nil)
	g.AddEdge("b", "c", nil)

	deg := g.DegreeCentrality()
	if deg["a"] != 0.5 || deg["b"] != 1 || deg["c"] != 0.5 {
		t.Fatalf("unexpected degree centrality: %v", deg)
	}
	in := g.InDegreeCentrality()
	if in["a"] != 0 || in["b"] != 0.5 || in["c"] != 0.5 {
		t.Fatalf("unexpected in-degree centrality: %v", in)
	}
	out := g.OutDegreeCentrality()
	if out["a"] != 0.5 || out["b"] != 0.5 || out["c"] != 0 {
		t.Fatalf("unexpected out-degree centrality: %v", out)
	}
}

func TestCentralitySingleNode(t *testing.T) {
	g := New()
	g.AddNode("only", nil)
	deg := g.DegreeCentrality()
	if deg["only"] != 1 {
		t.Fatalf("expected centrality 1 for single node, got %v", deg)
	}
}

func TestCopyIndependence(t *testing.T) {
	g := New()
	g.AddNode("a", Attrs{"label": "original"})
	g.AddEdge("a", "b", Attrs{"weight": 1})

	clone := g.Copy()
	clone.NodeData("a")["label"] = "changed"
	clone.EdgeData("a", "b")["weight"] = 99
	clone.AddEdge("b", "c", nil)
	clone.RemoveNode("a")

	if g.NodeData("a")["label"] != "original" {
		t.Fatalf("copy mutation leaked into original node data")
	}
	if g.EdgeData("a", "b")["weight"] != 1 {
		t.Fatalf("copy mutation leaked into original edge data")
	}
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Fatalf("copy structural mutation leaked: %d nodes %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func TestIterationOrder(t *testing.T) {
	g := New()
	g.AddEdge("c", "a", nil)
	g.AddEdge("a", "b", nil)
	g.AddEdge("c", "b", nil)

	nodes := g.Nodes()
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if nodes[i] != id {
			t.Fatalf("unexpected node order: %v", nodes)
		}
	}

	edges := g.Edges()
	if edges[0] != (Edge{"c", "a"}) || edges[1] != (Edge{"a", "b"}) || edges[2] != (Edge{"c", "b"}) {
		t.Fatalf("unexpected edge order: %v", edges)
	}

	succ := g.Successors("c")
	if len(succ) != 2 || succ[0] != "a" || succ[1] != "b" {
		t.Fatalf("unexpected successor order: %v", succ)
	}
	pred := g.Predecessors("b")
	if len(pred) != 2 || pred[0] != "a" || pred[1] != "c" {
		t.Fatalf("unexpected predecessor order: %v", pred)
	}
}
