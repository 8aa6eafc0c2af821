package graph

import (
	"math"
	"sort"
)

const (
	layoutBaseRadius  = 120.0
	layoutClusterStep = 40.0
	layoutRankStep    = 14.0
	layoutAngleStep   = 0.45
)

// applySpiralLayout places each cluster on a global circle and winds its
// members outward by descending PageRank.
func applySpiralLayout(res *Result) {
	members := map[int][]string{}
	for node, m := range res.Nodes {
		members[m.ClusterID] = append(members[m.ClusterID], node)
	}
	ids := make([]int, 0, len(members))
	for c := range members {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	for i, c := range ids {
		clusterAngle := 2 * math.Pi * float64(i) / float64(len(ids))
		ms := members[c]
		sort.Slice(ms, func(x, y int) bool {
			a, b := res.Nodes[ms[x]].PageRank, res.Nodes[ms[y]].PageRank
			if a != b {
				return a > b
			}
			return ms[x] < ms[y]
		})
		for rank, node := range ms {
			radius := layoutBaseRadius + float64(i)*layoutClusterStep + float64(rank)*layoutRankStep
			angle := clusterAngle + float64(rank)*layoutAngleStep
			res.Nodes[node].X = radius * math.Cos(angle)
			res.Nodes[node].Y = radius * math.Sin(angle)
		}
	}
}
