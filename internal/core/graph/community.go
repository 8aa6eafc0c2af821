package graph

import "sort"

// detectCommunities assigns each node a cluster id via greedy modularity
// optimization: repeated local moves over the sorted node list until no
// move improves modularity. The fixed visit order makes the result
// deterministic; cluster ids are renumbered by descending size.
func detectCommunities(a *adjacency) map[string]int {
	community := make(map[string]int, len(a.order))
	for i, node := range a.order {
		community[node] = i
	}

	totalWeight := 0.0
	for _, w := range a.weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return renumber(a, community)
	}

	weightSum := make(map[string]float64, len(a.order))
	for _, u := range a.order {
		for _, v := range a.neighbors[u] {
			weightSum[u] += a.weight(u, v)
		}
	}
	communityWeight := make(map[int]float64, len(a.order))
	for node, c := range community {
		communityWeight[c] += weightSum[node]
	}

	m2 := 2 * totalWeight
	for pass := 0; pass < 20; pass++ {
		moved := false
		for _, node := range a.order {
			current := community[node]

			// Weight from node into each adjacent community.
			into := map[int]float64{}
			for _, nb := range a.neighbors[node] {
				into[community[nb]] += a.weight(node, nb)
			}

			communityWeight[current] -= weightSum[node]
			bestCommunity, bestGain := current, 0.0
			candidates := make([]int, 0, len(into))
			for c := range into {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)
			for _, c := range candidates {
				gain := into[c] - weightSum[node]*communityWeight[c]/m2
				if gain > bestGain {
					bestCommunity, bestGain = c, gain
				}
			}
			communityWeight[bestCommunity] += weightSum[node]
			if bestCommunity != current {
				community[node] = bestCommunity
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return renumber(a, community)
}

// renumber maps raw community labels to dense ids ordered by descending
// size, ties broken by the smallest member handle.
func renumber(a *adjacency, community map[string]int) map[string]int {
	members := map[int][]string{}
	for _, node := range a.order {
		c := community[node]
		members[c] = append(members[c], node)
	}
	labels := make([]int, 0, len(members))
	for c := range members {
		labels = append(labels, c)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := members[labels[i]], members[labels[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a[0] < b[0]
	})

	dense := make(map[int]int, len(labels))
	for i, c := range labels {
		dense[c] = i
	}
	out := make(map[string]int, len(community))
	for node, c := range community {
		out[node] = dense[c]
	}
	return out
}

// modularity scores a partition against the weighted graph.
func modularity(a *adjacency, community map[string]int) float64 {
	totalWeight := 0.0
	for _, w := range a.weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	weightSum := make(map[string]float64, len(a.order))
	for _, u := range a.order {
		for _, v := range a.neighbors[u] {
			weightSum[u] += a.weight(u, v)
		}
	}

	m2 := 2 * totalWeight
	q := 0.0
	for key, w := range a.weights {
		if community[key[0]] == community[key[1]] {
			q += 2 * w / m2
		}
	}
	degreeTerm := map[int]float64{}
	for node, c := range community {
		degreeTerm[c] += weightSum[node]
	}
	for _, sum := range degreeTerm {
		q -= (sum / m2) * (sum / m2)
	}
	return q
}

// summarizeClusters produces per-cluster sizes and the three highest
// PageRank members.
func summarizeClusters(community map[string]int, nodes map[string]*NodeMetrics) []ClusterSummary {
	members := map[int][]string{}
	for node, c := range community {
		members[c] = append(members[c], node)
	}
	ids := make([]int, 0, len(members))
	for c := range members {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	summaries := make([]ClusterSummary, 0, len(ids))
	for _, c := range ids {
		ms := members[c]
		sort.Slice(ms, func(i, j int) bool {
			a, b := nodes[ms[i]].PageRank, nodes[ms[j]].PageRank
			if a != b {
				return a > b
			}
			return ms[i] < ms[j]
		})
		top := ms
		if len(top) > 3 {
			top = top[:3]
		}
		summaries = append(summaries, ClusterSummary{ID: c, Size: len(ms), TopMembers: append([]string(nil), top...)})
	}
	return summaries
}
