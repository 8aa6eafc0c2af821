// Package network builds a social-graph snapshot around one account:
// followers and follows, hydrated profiles, mutual detection, orbit
// interconnections, and a ring layout.
package network

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/config"
	"Skymarshal/internal/core/graph"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/progress"
	"Skymarshal/pkg/errors"
)

// orbitFollowsLimit caps how many follows are scanned per orbit handle.
const orbitFollowsLimit = 200

// Client is the wire surface the fetcher needs.
type Client interface {
	GetProfile(ctx context.Context, actor string) (*models.Profile, error)
	GetProfiles(ctx context.Context, actors []string) ([]*models.Profile, error)
	GetFollowers(ctx context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error)
	GetFollows(ctx context.Context, actor, cursor string, limit int) ([]*models.Profile, string, error)
}

// ProfileCache is the durable profile store consulted before hitting the
// wire during hydration. May be nil.
type ProfileCache interface {
	GetProfilesByHandle(ctx context.Context, handles []string, ttl time.Duration) (map[string]*models.Profile, error)
	UpsertProfiles(ctx context.Context, profiles []*models.Profile) error
}

// Params tunes one fetch. Zero values fall back to settings.
type Params struct {
	Mode             Mode
	MaxFollowers     int
	MaxFollowing     int
	IncludeAnalytics bool
}

// Fetcher assembles network snapshots.
type Fetcher struct {
	client   Client
	cache    ProfileCache
	settings config.Settings
}

// New creates a network fetcher. cache may be nil.
func New(c Client, cache ProfileCache, settings config.Settings) *Fetcher {
	return &Fetcher{client: c, cache: cache, settings: settings}
}

// Fetch runs the staged pipeline and returns the snapshot. Auth errors
// abort immediately; everything else degrades into metadata errors.
func (f *Fetcher) Fetch(ctx context.Context, handle string, params Params, rep progress.Reporter) (*Snapshot, error) {
	if rep == nil {
		rep = progress.Noop
	}
	if params.Mode == "" {
		params.Mode = ModeBalanced
	}
	if params.MaxFollowers <= 0 {
		params.MaxFollowers = f.settings.MaxFollowers
	}
	if params.MaxFollowing <= 0 {
		params.MaxFollowing = f.settings.MaxFollowing
	}

	rep.Report("target-profile", 0, 1)
	target, err := f.client.GetProfile(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("resolve target %s: %w", handle, err)
	}
	rep.Report("target-profile", 1, 1)

	snap := &Snapshot{
		TargetHandle: target.Handle,
		Nodes:        map[string]*Node{},
		Metadata:     Metadata{Mode: params.Mode, FetchedAt: time.Now().UTC()},
	}
	snap.Nodes[target.Handle] = &Node{
		Handle:       target.Handle,
		IsTarget:     true,
		Relationship: RelTarget,
	}
	applyProfile(snap.Nodes[target.Handle], target)

	followers, follows, err := f.fetchRelations(ctx, target.Handle, params, rep)
	if err != nil {
		return nil, err
	}
	addRelations(snap, target.Handle, followers, follows)

	if err := f.hydrate(ctx, snap, rep); err != nil {
		return nil, err
	}
	classifyRelationships(snap, target.Handle)

	if params.Mode != ModeFast {
		if err := f.fetchOrbit(ctx, snap, params.Mode, rep); err != nil {
			return nil, err
		}
	}

	countMutuals(snap)
	classifyTiers(snap)
	applyRingLayout(snap)

	if params.IncludeAnalytics {
		mergeAnalytics(snap)
	}
	return snap, nil
}

// fetchRelations pulls followers and follows concurrently.
func (f *Fetcher) fetchRelations(ctx context.Context, handle string, params Params, rep progress.Reporter) (followers, follows []*models.Profile, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		followers, err = client.Paginate(gctx, params.MaxFollowers, func(ctx context.Context, cursor string) ([]*models.Profile, string, error) {
			return f.client.GetFollowers(ctx, handle, cursor, client.MaxPageSize)
		})
		if err != nil {
			return fmt.Errorf("fetch followers: %w", err)
		}
		rep.Report("followers", len(followers), params.MaxFollowers)
		return nil
	})
	g.Go(func() error {
		var err error
		follows, err = client.Paginate(gctx, params.MaxFollowing, func(ctx context.Context, cursor string) ([]*models.Profile, string, error) {
			return f.client.GetFollows(ctx, handle, cursor, client.MaxPageSize)
		})
		if err != nil {
			return fmt.Errorf("fetch follows: %w", err)
		}
		rep.Report("follows", len(follows), params.MaxFollowing)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return followers, follows, nil
}

// addRelations inserts nodes and the primary follows edges.
func addRelations(snap *Snapshot, targetHandle string, followers, follows []*models.Profile) {
	ensure := func(p *models.Profile) *Node {
		node, ok := snap.Nodes[p.Handle]
		if !ok {
			node = &Node{Handle: p.Handle, Relationship: RelIndirect}
			snap.Nodes[p.Handle] = node
		}
		applyProfile(node, p)
		return node
	}
	for _, p := range followers {
		node := ensure(p)
		node.FollowsYou = true
		snap.Edges = append(snap.Edges, Edge{Source: node.Handle, Target: targetHandle, Type: EdgeFollows})
	}
	for _, p := range follows {
		node := ensure(p)
		node.YouFollow = true
		snap.Edges = append(snap.Edges, Edge{Source: targetHandle, Target: node.Handle, Type: EdgeFollows})
	}
}

// hydrate fills node profiles, preferring cached rows and batching the
// remainder over the wire. Missing profiles stay as minimal nodes.
func (f *Fetcher) hydrate(ctx context.Context, snap *Snapshot, rep progress.Reporter) error {
	handles := make([]string, 0, len(snap.Nodes))
	for h, node := range snap.Nodes {
		if node.DID == "" || node.FollowersCount == 0 {
			handles = append(handles, h)
		}
	}
	sort.Strings(handles)

	if f.cache != nil {
		ttl := time.Duration(f.settings.ProfileCacheTTLDays) * 24 * time.Hour
		cached, err := f.cache.GetProfilesByHandle(ctx, handles, ttl)
		if err != nil {
			log.Printf("[NETWORK] Profile cache read failed: %v", err)
		} else {
			remaining := handles[:0]
			for _, h := range handles {
				if p, ok := cached[h]; ok {
					applyProfile(snap.Nodes[h], p)
				} else {
					remaining = append(remaining, h)
				}
			}
			handles = remaining
		}
	}
	if len(handles) == 0 {
		return nil
	}

	var mu sync.Mutex
	var fetched []*models.Profile
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.settings.NetworkWorkers)
	for start := 0; start < len(handles); start += client.MaxProfileBatch {
		end := min(start+client.MaxProfileBatch, len(handles))
		batch := handles[start:end]
		g.Go(func() error {
			profiles, err := f.client.GetProfiles(gctx, batch)
			if err != nil {
				if errors.KindOf(err) == errors.Auth {
					return err
				}
				mu.Lock()
				snap.Metadata.Errors = append(snap.Metadata.Errors, fmt.Sprintf("hydrate batch at %d: %v", start, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range profiles {
				if node, ok := snap.Nodes[p.Handle]; ok {
					applyProfile(node, p)
					fetched = append(fetched, p)
				}
			}
			done += len(batch)
			rep.Report("hydrate-profiles", done, len(handles))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if f.cache != nil && len(fetched) > 0 {
		if err := f.cache.UpsertProfiles(ctx, fetched); err != nil {
			log.Printf("[NETWORK] Profile cache write failed: %v", err)
		}
	}
	return nil
}

// classifyRelationships derives the relationship label from the two
// follow flags.
func classifyRelationships(snap *Snapshot, targetHandle string) {
	for h, node := range snap.Nodes {
		if h == targetHandle {
			continue
		}
		switch {
		case node.YouFollow && node.FollowsYou:
			node.Relationship = RelMutual
		case node.YouFollow:
			node.Relationship = RelFollowing
		case node.FollowsYou:
			node.Relationship = RelFollower
		default:
			node.Relationship = RelIndirect
		}
	}
}

// fetchOrbit discovers connections between network members. Balanced mode
// scans only the highest-value subset; detailed mode scans everyone.
// Per-handle failures are logged and recorded, never fatal.
func (f *Fetcher) fetchOrbit(ctx context.Context, snap *Snapshot, mode Mode, rep progress.Reporter) error {
	selected := orbitSelection(snap, mode, f.settings.OrbitCap)

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.settings.NetworkWorkers)
	for _, handle := range selected {
		g.Go(func() error {
			follows, err := client.Paginate(gctx, orbitFollowsLimit, func(ctx context.Context, cursor string) ([]*models.Profile, string, error) {
				return f.client.GetFollows(ctx, handle, cursor, client.MaxPageSize)
			})

			mu.Lock()
			defer mu.Unlock()
			done++
			rep.Report("orbit", done, len(selected))
			if err != nil {
				if errors.KindOf(err) == errors.Auth {
					return err
				}
				log.Printf("[NETWORK] Orbit fetch for %s failed: %v", handle, err)
				snap.Metadata.Errors = append(snap.Metadata.Errors, fmt.Sprintf("orbit %s: %v", handle, err))
				return nil
			}
			for _, p := range follows {
				if p.Handle == handle {
					continue
				}
				if _, ok := snap.Nodes[p.Handle]; !ok {
					continue
				}
				snap.Edges = append(snap.Edges, Edge{Source: handle, Target: p.Handle, Type: EdgeOrbit})
				snap.Nodes[handle].OrbitConnections++
			}
			return nil
		})
	}
	return g.Wait()
}

// orbitSelection picks which handles get an orbit scan. Balanced mode
// ranks mutuals first, then by follower count.
func orbitSelection(snap *Snapshot, mode Mode, limit int) []string {
	handles := make([]string, 0, len(snap.Nodes))
	for h, node := range snap.Nodes {
		if !node.IsTarget {
			handles = append(handles, h)
		}
	}
	sort.Slice(handles, func(i, j int) bool {
		a, b := snap.Nodes[handles[i]], snap.Nodes[handles[j]]
		am, bm := a.Relationship == RelMutual, b.Relationship == RelMutual
		if am != bm {
			return am
		}
		if a.FollowersCount != b.FollowersCount {
			return a.FollowersCount > b.FollowersCount
		}
		return handles[i] < handles[j]
	})
	if mode == ModeBalanced && limit > 0 && len(handles) > limit {
		handles = handles[:limit]
	}
	return handles
}

// countMutuals tallies confirmed two-way relationships: the target link
// plus any orbit edge observed in both directions.
func countMutuals(snap *Snapshot) {
	orbit := map[[2]string]bool{}
	for _, e := range snap.Edges {
		if e.Type == EdgeOrbit {
			orbit[[2]string{e.Source, e.Target}] = true
		}
	}
	var targetMutuals int
	for _, node := range snap.Nodes {
		if node.Relationship == RelMutual {
			node.MutualConnections++
			targetMutuals++
		}
		for pair := range orbit {
			if pair[0] == node.Handle && orbit[[2]string{pair[1], pair[0]}] {
				node.MutualConnections++
			}
		}
	}
	for _, node := range snap.Nodes {
		if node.IsTarget {
			node.MutualConnections = targetMutuals
		}
	}
}

// classifyTiers buckets nodes by orbit connectivity.
func classifyTiers(snap *Snapshot) {
	for _, node := range snap.Nodes {
		switch {
		case node.IsTarget, node.OrbitConnections > 20:
			node.Tier = 0
		case node.OrbitConnections >= 5:
			node.Tier = 1
		default:
			node.Tier = 2
		}
	}
}

// applyRingLayout puts the target at the origin and spreads each tier on
// its own ring with equal angular steps.
func applyRingLayout(snap *Snapshot) {
	radii := [3]float64{200, 400, 600}
	rings := [3][]string{}
	for h, node := range snap.Nodes {
		if node.IsTarget {
			node.X, node.Y = 0, 0
			continue
		}
		rings[node.Tier] = append(rings[node.Tier], h)
	}
	for tier, handles := range rings {
		sort.Strings(handles)
		for i, h := range handles {
			angle := 2 * math.Pi * float64(i) / float64(len(handles))
			snap.Nodes[h].X = radii[tier] * math.Cos(angle)
			snap.Nodes[h].Y = radii[tier] * math.Sin(angle)
		}
	}
}

// mergeAnalytics runs the graph pipeline over the snapshot and folds the
// results back into nodes and metadata.
func mergeAnalytics(snap *Snapshot) {
	handles := make([]string, 0, len(snap.Nodes))
	for h := range snap.Nodes {
		handles = append(handles, h)
	}
	edges := make([]graph.Edge, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		edges = append(edges, graph.Edge{Source: e.Source, Target: e.Target})
	}

	res := graph.Analyze(handles, edges)
	for h, m := range res.Nodes {
		node := snap.Nodes[h]
		node.ClusterID = m.ClusterID
		node.DegreeCentrality = m.DegreeCentrality
		node.BetweennessCentrality = m.BetweennessCentrality
		node.PageRank = m.PageRank
	}
	weights := map[[2]string]float64{}
	for _, e := range res.Edges {
		weights[[2]string{e.Source, e.Target}] = e.Weight
		weights[[2]string{e.Target, e.Source}] = e.Weight
	}
	for i := range snap.Edges {
		snap.Edges[i].Weight = weights[[2]string{snap.Edges[i].Source, snap.Edges[i].Target}]
	}
	snap.Metadata.GraphMetrics = &res.Metrics
	snap.Metadata.Clusters = res.Clusters
}

func applyProfile(node *Node, p *models.Profile) {
	if p.DID != "" {
		node.DID = p.DID
	}
	if p.DisplayName != "" {
		node.DisplayName = p.DisplayName
	}
	if p.Avatar != "" {
		node.Avatar = p.Avatar
	}
	if p.FollowersCount > 0 {
		node.FollowersCount = p.FollowersCount
	}
	if p.FollowingCount > 0 {
		node.FollowingCount = p.FollowingCount
	}
	if p.PostsCount > 0 {
		node.PostsCount = p.PostsCount
	}
}
