// Package graph computes structural metrics over a follow network:
// centralities, PageRank, community detection, and a spiral layout.
// All algorithms are deterministic given the same node and edge sets.
package graph

import (
	"math"
	"sort"
)

// Edge is an undirected weighted connection between two handles.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// NodeMetrics holds the per-node analysis output.
type NodeMetrics struct {
	ClusterID             int     `json:"cluster_id"`
	DegreeCentrality      float64 `json:"degree_centrality"`
	BetweennessCentrality float64 `json:"betweenness_centrality"`
	PageRank              float64 `json:"pagerank"`
	X                     float64 `json:"x"`
	Y                     float64 `json:"y"`
}

// ClusterSummary describes one detected community.
type ClusterSummary struct {
	ID         int      `json:"id"`
	Size       int      `json:"size"`
	TopMembers []string `json:"top_members"`
}

// Metrics aggregates whole-graph statistics.
type Metrics struct {
	Density           float64 `json:"density"`
	AverageClustering float64 `json:"average_clustering"`
	Modularity        float64 `json:"modularity"`
	TopDegree         string  `json:"top_degree"`
	TopPageRank       string  `json:"top_pagerank"`
	ClusterCount      int     `json:"cluster_count"`
}

// Result is the full analysis output. Edges carry the recomputed weights.
type Result struct {
	Nodes    map[string]*NodeMetrics `json:"nodes"`
	Edges    []Edge                  `json:"edges"`
	Clusters []ClusterSummary        `json:"clusters"`
	Metrics  Metrics                 `json:"metrics"`
}

// adjacency is the undirected view the algorithms run on. Neighbor slices
// are sorted for deterministic iteration.
type adjacency struct {
	order     []string
	neighbors map[string][]string
	weights   map[[2]string]float64
}

func buildAdjacency(nodes []string, edges []Edge) *adjacency {
	a := &adjacency{
		neighbors: make(map[string][]string, len(nodes)),
		weights:   make(map[[2]string]float64, len(edges)),
	}
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			a.order = append(a.order, n)
			a.neighbors[n] = nil
		}
	}
	sort.Strings(a.order)

	linked := map[[2]string]bool{}
	for _, e := range edges {
		if e.Source == e.Target || !seen[e.Source] || !seen[e.Target] {
			continue
		}
		key := edgeKey(e.Source, e.Target)
		if linked[key] {
			continue
		}
		linked[key] = true
		a.neighbors[e.Source] = append(a.neighbors[e.Source], e.Target)
		a.neighbors[e.Target] = append(a.neighbors[e.Target], e.Source)
	}
	for n := range a.neighbors {
		sort.Strings(a.neighbors[n])
	}
	return a
}

func edgeKey(u, v string) [2]string {
	if u > v {
		u, v = v, u
	}
	return [2]string{u, v}
}

func (a *adjacency) degree(n string) int { return len(a.neighbors[n]) }

func (a *adjacency) weight(u, v string) float64 { return a.weights[edgeKey(u, v)] }

func (a *adjacency) edgeCount() int {
	total := 0
	for _, ns := range a.neighbors {
		total += len(ns)
	}
	return total / 2
}

// Analyze runs the full pipeline: edge weighting, centralities, PageRank,
// community detection, layout, and aggregate metrics.
func Analyze(nodes []string, edges []Edge) *Result {
	a := buildAdjacency(nodes, edges)
	n := len(a.order)

	res := &Result{Nodes: make(map[string]*NodeMetrics, n)}
	for _, node := range a.order {
		res.Nodes[node] = &NodeMetrics{}
	}
	if n == 0 {
		return res
	}

	weightEdges(a)
	res.Edges = weightedEdgeList(a)

	for _, node := range a.order {
		if n > 1 {
			res.Nodes[node].DegreeCentrality = float64(a.degree(node)) / float64(n-1)
		}
	}
	for node, b := range betweenness(a) {
		res.Nodes[node].BetweennessCentrality = b
	}
	for node, pr := range pageRank(a) {
		res.Nodes[node].PageRank = pr
	}

	communities := detectCommunities(a)
	for node, id := range communities {
		res.Nodes[node].ClusterID = id
	}
	res.Clusters = summarizeClusters(communities, res.Nodes)
	applySpiralLayout(res)

	m := a.edgeCount()
	if n > 1 {
		res.Metrics.Density = 2 * float64(m) / float64(n*(n-1))
	}
	res.Metrics.AverageClustering = averageClustering(a)
	res.Metrics.Modularity = modularity(a, communities)
	res.Metrics.ClusterCount = len(res.Clusters)
	res.Metrics.TopDegree = argmax(a.order, func(n string) float64 { return res.Nodes[n].DegreeCentrality })
	res.Metrics.TopPageRank = argmax(a.order, func(n string) float64 { return res.Nodes[n].PageRank })
	return res
}

// weightEdges assigns each edge 1 + |common neighbors| + the degree ratio
// of its endpoints. Weights feed PageRank and modularity.
func weightEdges(a *adjacency) {
	for _, u := range a.order {
		for _, v := range a.neighbors[u] {
			if u > v {
				continue
			}
			w := 1 + float64(commonNeighbors(a, u, v))
			du, dv := a.degree(u), a.degree(v)
			if hi := max(du, dv); hi > 0 {
				w += float64(min(du, dv)) / float64(hi)
			}
			a.weights[edgeKey(u, v)] = w
		}
	}
}

func commonNeighbors(a *adjacency, u, v string) int {
	uns := a.neighbors[u]
	set := make(map[string]bool, len(uns))
	for _, n := range uns {
		set[n] = true
	}
	count := 0
	for _, n := range a.neighbors[v] {
		if set[n] {
			count++
		}
	}
	return count
}

func weightedEdgeList(a *adjacency) []Edge {
	edges := make([]Edge, 0, len(a.weights))
	for _, u := range a.order {
		for _, v := range a.neighbors[u] {
			if u < v {
				edges = append(edges, Edge{Source: u, Target: v, Weight: a.weight(u, v)})
			}
		}
	}
	return edges
}

// averageClustering is the mean local clustering coefficient.
func averageClustering(a *adjacency) float64 {
	if len(a.order) == 0 {
		return 0
	}
	total := 0.0
	for _, node := range a.order {
		k := a.degree(node)
		if k < 2 {
			continue
		}
		links := 0
		ns := a.neighbors[node]
		for i := 0; i < len(ns); i++ {
			for j := i + 1; j < len(ns); j++ {
				if hasEdge(a, ns[i], ns[j]) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(k*(k-1))
	}
	return total / float64(len(a.order))
}

func hasEdge(a *adjacency, u, v string) bool {
	ns := a.neighbors[u]
	i := sort.SearchStrings(ns, v)
	return i < len(ns) && ns[i] == v
}

func argmax(order []string, score func(string) float64) string {
	best, bestScore := "", math.Inf(-1)
	for _, n := range order {
		if s := score(n); s > bestScore {
			best, bestScore = n, s
		}
	}
	return best
}
