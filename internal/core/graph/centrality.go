package graph

// betweenness computes normalized betweenness centrality with Brandes'
// single-source accumulation over unweighted shortest paths.
func betweenness(a *adjacency) map[string]float64 {
	cb := make(map[string]float64, len(a.order))
	for _, n := range a.order {
		cb[n] = 0
	}

	for _, s := range a.order {
		stack := make([]string, 0, len(a.order))
		pred := make(map[string][]string, len(a.order))
		sigma := map[string]float64{s: 1}
		dist := map[string]int{s: 0}

		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range a.neighbors[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[string]float64, len(stack))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	// Undirected normalization: each pair was counted twice.
	n := len(a.order)
	if n > 2 {
		scale := 1 / (float64(n-1) * float64(n-2))
		for node := range cb {
			cb[node] *= scale
		}
	}
	return cb
}

const (
	pageRankDamping    = 0.85
	pageRankIterations = 100
	pageRankTolerance  = 1e-8
)

// pageRank runs weighted power iteration over the undirected graph.
// Iteration order follows the sorted node list so results are stable.
func pageRank(a *adjacency) map[string]float64 {
	n := len(a.order)
	if n == 0 {
		return nil
	}

	weightSum := make(map[string]float64, n)
	for _, u := range a.order {
		for _, v := range a.neighbors[u] {
			weightSum[u] += a.weight(u, v)
		}
	}

	rank := make(map[string]float64, n)
	for _, node := range a.order {
		rank[node] = 1 / float64(n)
	}

	base := (1 - pageRankDamping) / float64(n)
	for iter := 0; iter < pageRankIterations; iter++ {
		next := make(map[string]float64, n)
		dangling := 0.0
		for _, node := range a.order {
			if weightSum[node] == 0 {
				dangling += rank[node]
			}
		}
		danglingShare := pageRankDamping * dangling / float64(n)

		for _, u := range a.order {
			sum := 0.0
			for _, v := range a.neighbors[u] {
				sum += rank[v] * a.weight(u, v) / weightSum[v]
			}
			next[u] = base + danglingShare + pageRankDamping*sum
		}

		diff := 0.0
		for _, node := range a.order {
			d := next[node] - rank[node]
			if d < 0 {
				d = -d
			}
			diff += d
		}
		rank = next
		if diff < pageRankTolerance {
			break
		}
	}
	return rank
}
