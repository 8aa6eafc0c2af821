package network

import (
	"context"
	"testing"

	"Skymarshal/internal/config"
	"Skymarshal/internal/core/models"
)

type fakeClient struct {
	profiles  map[string]*models.Profile
	followers map[string][]*models.Profile
	follows   map[string][]*models.Profile
}

func (f *fakeClient) GetProfile(_ context.Context, actor string) (*models.Profile, error) {
	return f.profiles[actor], nil
}

func (f *fakeClient) GetProfiles(_ context.Context, actors []string) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, a := range actors {
		if p, ok := f.profiles[a]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeClient) GetFollowers(_ context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error) {
	return f.followers[actor], "", nil
}

func (f *fakeClient) GetFollows(_ context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error) {
	return f.follows[actor], "", nil
}

func profile(handle string, followers int) *models.Profile {
	return &models.Profile{DID: "did:plc:" + handle, Handle: handle, FollowersCount: followers}
}

// Target T follows {A, B}; followers {B, C}. B is mutual.
func mutualsFixture() *fakeClient {
	t := profile("target.bsky.social", 100)
	a := profile("alice.bsky.social", 10)
	b := profile("bob.bsky.social", 20)
	c := profile("carol.bsky.social", 30)
	return &fakeClient{
		profiles: map[string]*models.Profile{
			t.Handle: t, a.Handle: a, b.Handle: b, c.Handle: c,
		},
		followers: map[string][]*models.Profile{t.Handle: {b, c}},
		follows:   map[string][]*models.Profile{t.Handle: {a, b}},
	}
}

func TestFetchMutuals(t *testing.T) {
	f := New(mutualsFixture(), nil, config.Defaults())
	snap, err := f.Fetch(context.Background(), "target.bsky.social", Params{Mode: ModeFast}, nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(snap.Nodes) != 4 {
		t.Fatalf("node count = %d, want 4", len(snap.Nodes))
	}

	wantRel := map[string]Relationship{
		"target.bsky.social": RelTarget,
		"alice.bsky.social":  RelFollowing,
		"bob.bsky.social":    RelMutual,
		"carol.bsky.social":  RelFollower,
	}
	for handle, want := range wantRel {
		node := snap.Nodes[handle]
		if node == nil {
			t.Fatalf("missing node %s", handle)
		}
		if node.Relationship != want {
			t.Errorf("%s relationship = %s, want %s", handle, node.Relationship, want)
		}
	}

	targets := 0
	for _, node := range snap.Nodes {
		if node.IsTarget {
			targets++
		}
		if node.Tier < 0 || node.Tier > 2 {
			t.Errorf("%s tier = %d, want 0..2", node.Handle, node.Tier)
		}
		if !node.IsTarget {
			if mutual := node.YouFollow && node.FollowsYou; mutual != (node.Relationship == RelMutual) {
				t.Errorf("%s: mutual flags disagree with relationship %s", node.Handle, node.Relationship)
			}
		}
	}
	if targets != 1 {
		t.Errorf("is_target set on %d nodes, want exactly 1", targets)
	}

	for _, e := range snap.Edges {
		if snap.Nodes[e.Source] == nil || snap.Nodes[e.Target] == nil {
			t.Errorf("edge %s->%s references a missing node", e.Source, e.Target)
		}
	}

	if snap.Nodes["bob.bsky.social"].MutualConnections < 1 {
		t.Error("mutual node should count at least one mutual connection")
	}

	// Fast mode performs no orbit scans.
	for _, e := range snap.Edges {
		if e.Type == EdgeOrbit {
			t.Errorf("unexpected orbit edge in fast mode: %+v", e)
		}
	}
}

func TestFetchOrbitAndLayout(t *testing.T) {
	fc := mutualsFixture()
	// Alice follows Bob inside the network.
	fc.follows["alice.bsky.social"] = []*models.Profile{fc.profiles["bob.bsky.social"]}

	f := New(fc, nil, config.Defaults())
	snap, err := f.Fetch(context.Background(), "target.bsky.social", Params{Mode: ModeDetailed, IncludeAnalytics: true}, nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	orbitEdges := 0
	for _, e := range snap.Edges {
		if e.Type == EdgeOrbit {
			orbitEdges++
			if e.Source != "alice.bsky.social" || e.Target != "bob.bsky.social" {
				t.Errorf("unexpected orbit edge %+v", e)
			}
		}
	}
	if orbitEdges != 1 {
		t.Fatalf("orbit edges = %d, want 1", orbitEdges)
	}
	if snap.Nodes["alice.bsky.social"].OrbitConnections != 1 {
		t.Errorf("alice orbit connections = %d, want 1", snap.Nodes["alice.bsky.social"].OrbitConnections)
	}

	target := snap.Nodes["target.bsky.social"]
	if target.X != 0 || target.Y != 0 {
		t.Errorf("target position = (%v, %v), want origin", target.X, target.Y)
	}
	for _, node := range snap.Nodes {
		if !node.IsTarget && node.X == 0 && node.Y == 0 {
			t.Errorf("%s left at the origin", node.Handle)
		}
	}

	if snap.Metadata.GraphMetrics == nil {
		t.Fatal("analytics requested but graph metrics missing")
	}
	if snap.Nodes["target.bsky.social"].PageRank <= 0 {
		t.Error("analytics should assign a positive pagerank to the target")
	}
}

func TestOrbitSelectionRanksMutualsFirst(t *testing.T) {
	snap := &Snapshot{Nodes: map[string]*Node{
		"t": {Handle: "t", IsTarget: true},
		"m": {Handle: "m", Relationship: RelMutual, FollowersCount: 1},
		"big": {
			Handle: "big", Relationship: RelFollower, FollowersCount: 9999,
		},
		"small": {Handle: "small", Relationship: RelFollower, FollowersCount: 5},
	}}

	got := orbitSelection(snap, ModeBalanced, 2)
	if len(got) != 2 {
		t.Fatalf("selection size = %d, want 2", len(got))
	}
	if got[0] != "m" {
		t.Errorf("first pick = %s, want the mutual", got[0])
	}
	if got[1] != "big" {
		t.Errorf("second pick = %s, want the largest follower", got[1])
	}
}
