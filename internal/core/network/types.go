package network

import (
	"time"

	"Skymarshal/internal/core/graph"
)

// Mode controls how much of the orbit stage runs.
type Mode string

const (
	ModeFast     Mode = "fast"     // skip orbit interconnections
	ModeBalanced Mode = "balanced" // orbit for the top-ranked subset
	ModeDetailed Mode = "detailed" // orbit for every node
)

// Relationship classifies a node relative to the target account.
type Relationship string

const (
	RelTarget    Relationship = "target"
	RelMutual    Relationship = "mutual"
	RelFollowing Relationship = "following"
	RelFollower  Relationship = "follower"
	RelIndirect  Relationship = "indirect"
)

// Edge types within a snapshot.
const (
	EdgeFollows = "follows"
	EdgeOrbit   = "orbit_connection"
)

// Node is one account in the fetched network.
type Node struct {
	Handle         string `json:"handle"`
	DID            string `json:"did,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	PostsCount     int    `json:"posts_count"`

	IsTarget          bool         `json:"is_target"`
	YouFollow         bool         `json:"you_follow"`
	FollowsYou        bool         `json:"follows_you"`
	Relationship      Relationship `json:"relationship"`
	OrbitConnections  int          `json:"orbit_connections"`
	MutualConnections int          `json:"mutual_connections"`
	Tier              int          `json:"tier"`
	X                 float64      `json:"x"`
	Y                 float64      `json:"y"`

	ClusterID             int     `json:"cluster_id,omitempty"`
	DegreeCentrality      float64 `json:"degree_centrality,omitempty"`
	BetweennessCentrality float64 `json:"betweenness_centrality,omitempty"`
	PageRank              float64 `json:"pagerank,omitempty"`
}

// Edge is one directed connection in the snapshot.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
}

// Metadata describes the fetch and carries graph-level analytics.
type Metadata struct {
	Mode         Mode                   `json:"mode"`
	FetchedAt    time.Time              `json:"fetched_at"`
	Errors       []string               `json:"errors,omitempty"`
	GraphMetrics *graph.Metrics         `json:"graph_metrics,omitempty"`
	Clusters     []graph.ClusterSummary `json:"clusters,omitempty"`
}

// Snapshot is the complete fetch result. Nodes are keyed by handle;
// consumers must treat them as an unordered set.
type Snapshot struct {
	TargetHandle string           `json:"target_handle"`
	Nodes        map[string]*Node `json:"nodes"`
	Edges        []Edge           `json:"edges"`
	Metadata     Metadata         `json:"metadata"`
}
