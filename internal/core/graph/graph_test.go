package graph

import (
	"math"
	"testing"
)

// Two triangles joined by a single bridge edge.
func twoTriangles() ([]string, []Edge) {
	nodes := []string{"a", "b", "c", "d", "e", "f"}
	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
		{Source: "c", Target: "a"},
		{Source: "d", Target: "e"},
		{Source: "e", Target: "f"},
		{Source: "f", Target: "d"},
		{Source: "c", Target: "d"},
	}
	return nodes, edges
}

func TestAnalyzeTwoTriangles(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Analyze(nodes, edges)

	if len(res.Nodes) != 6 {
		t.Fatalf("node count = %d, want 6", len(res.Nodes))
	}
	if len(res.Edges) != 7 {
		t.Fatalf("edge count = %d, want 7", len(res.Edges))
	}

	// The bridge endpoints carry all cross-community shortest paths.
	for _, peripheral := range []string{"a", "b", "e", "f"} {
		if res.Nodes["c"].BetweennessCentrality <= res.Nodes[peripheral].BetweennessCentrality {
			t.Errorf("bridge node c should out-rank %s in betweenness", peripheral)
		}
	}

	// Triangle edges share a common neighbor; the bridge shares none and
	// scores exactly 1 + 0 + 3/3.
	for _, e := range res.Edges {
		isBridge := (e.Source == "c" && e.Target == "d") || (e.Source == "d" && e.Target == "c")
		if isBridge {
			if math.Abs(e.Weight-2) > 1e-9 {
				t.Errorf("bridge weight = %v, want 2", e.Weight)
			}
		} else if e.Weight <= 2 {
			t.Errorf("triangle edge %s-%s weight = %v, want > 2", e.Source, e.Target, e.Weight)
		}
	}

	// Greedy modularity should split the triangles apart.
	if res.Nodes["a"].ClusterID != res.Nodes["b"].ClusterID || res.Nodes["b"].ClusterID != res.Nodes["c"].ClusterID {
		t.Error("first triangle split across clusters")
	}
	if res.Nodes["d"].ClusterID != res.Nodes["e"].ClusterID || res.Nodes["e"].ClusterID != res.Nodes["f"].ClusterID {
		t.Error("second triangle split across clusters")
	}
	if res.Nodes["a"].ClusterID == res.Nodes["d"].ClusterID {
		t.Error("triangles should land in different clusters")
	}
	if res.Metrics.ClusterCount != 2 {
		t.Errorf("cluster count = %d, want 2", res.Metrics.ClusterCount)
	}
	if res.Metrics.Modularity <= 0 {
		t.Errorf("modularity = %v, want > 0 for a clustered graph", res.Metrics.Modularity)
	}

	wantDensity := 2.0 * 7 / (6 * 5)
	if math.Abs(res.Metrics.Density-wantDensity) > 1e-9 {
		t.Errorf("density = %v, want %v", res.Metrics.Density, wantDensity)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	nodes, edges := twoTriangles()
	first := Analyze(nodes, edges)
	second := Analyze(nodes, edges)

	for node, m := range first.Nodes {
		other := second.Nodes[node]
		if m.ClusterID != other.ClusterID || m.PageRank != other.PageRank || m.X != other.X || m.Y != other.Y {
			t.Fatalf("non-deterministic result for %s: %+v vs %+v", node, m, other)
		}
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Analyze(nodes, edges)

	sum := 0.0
	for _, m := range res.Nodes {
		if m.PageRank <= 0 {
			t.Fatalf("pagerank must be positive, got %v", m.PageRank)
		}
		sum += m.PageRank
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("pagerank sum = %v, want 1", sum)
	}
}

func TestAnalyzeEmptyAndSingleton(t *testing.T) {
	res := Analyze(nil, nil)
	if len(res.Nodes) != 0 || len(res.Edges) != 0 {
		t.Fatalf("empty graph should produce empty result, got %+v", res)
	}

	res = Analyze([]string{"only"}, nil)
	m := res.Nodes["only"]
	if m == nil {
		t.Fatal("singleton node missing from result")
	}
	if m.DegreeCentrality != 0 || m.BetweennessCentrality != 0 {
		t.Errorf("singleton centralities should be zero, got %+v", m)
	}
	if res.Metrics.ClusterCount != 1 {
		t.Errorf("singleton cluster count = %d, want 1", res.Metrics.ClusterCount)
	}
}

func TestClusterSummaries(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Analyze(nodes, edges)

	if len(res.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(res.Clusters))
	}
	for _, c := range res.Clusters {
		if c.Size != 3 {
			t.Errorf("cluster %d size = %d, want 3", c.ID, c.Size)
		}
		if len(c.TopMembers) != 3 {
			t.Errorf("cluster %d top members = %v, want 3 entries", c.ID, c.TopMembers)
		}
	}
}
