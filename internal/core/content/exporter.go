package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/atproto/identity"
	"Skymarshal/internal/config"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/progress"
	"Skymarshal/pkg/errors"
)

// cacheReuseWindow is how fresh an existing export file must be to count
// as a usable fallback when the live export fails.
const cacheReuseWindow = 24 * time.Hour

// Exporter downloads the authenticated user's records and writes the
// normalized snapshot to <root>/json/<handle>.json. Three strategies are
// tried in order: live listRecords fan-out, reuse of a recent export file,
// and a full CAR backup import.
type Exporter struct {
	repo     RepoClient
	root     string
	settings config.Settings
	sf       singleflight.Group
}

// NewExporter creates an exporter writing under root.
func NewExporter(repo RepoClient, root string, settings config.Settings) *Exporter {
	return &Exporter{repo: repo, root: root, settings: settings}
}

// collectionsFor maps selected content types to record collections.
// Posts and replies share a collection; both select it.
func collectionsFor(categories []models.ContentType) []string {
	if len(categories) == 0 {
		return []string{identity.CollectionPost, identity.CollectionLike, identity.CollectionRepost}
	}
	seen := map[string]bool{}
	var cols []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, cat := range categories {
		switch cat {
		case models.TypePost, models.TypeReply:
			add(identity.CollectionPost)
		case models.TypeLike:
			add(identity.CollectionLike)
		case models.TypeRepost:
			add(identity.CollectionRepost)
		}
	}
	return cols
}

// Export produces the normalized items for one account, deduplicating
// concurrent exports of the same handle. limit caps records per category;
// limit <= 0 uses the configured download limit.
func (e *Exporter) Export(ctx context.Context, did, handle string, categories []models.ContentType, limit int, rep progress.Reporter) ([]*models.ContentItem, error) {
	if rep == nil {
		rep = progress.Noop
	}
	if limit <= 0 {
		limit = e.settings.DownloadLimit
	}

	v, err, _ := e.sf.Do(handle, func() (any, error) {
		return e.export(ctx, did, handle, categories, limit, rep)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.ContentItem), nil
}

func (e *Exporter) export(ctx context.Context, did, handle string, categories []models.ContentType, limit int, rep progress.Reporter) ([]*models.ContentItem, error) {
	items, liveErr := e.exportLive(ctx, did, categories, limit, rep)
	if liveErr == nil {
		e.sortItems(items)
		if err := e.writeSnapshot(handle, items); err != nil {
			log.Printf("[EXPORT] Failed to write snapshot for %s: %v", handle, err)
		}
		return items, nil
	}
	if errors.KindOf(liveErr) == errors.Auth {
		return nil, liveErr
	}
	log.Printf("[EXPORT] Live export for %s failed (%v); trying cached snapshot", handle, liveErr)

	if items, ok := e.reuseSnapshot(handle); ok {
		return items, nil
	}

	log.Printf("[EXPORT] No recent snapshot for %s; falling back to CAR backup", handle)
	items, carErr := e.exportFromCAR(ctx, did, handle, categories, limit, rep)
	if carErr != nil {
		return nil, fmt.Errorf("all export strategies failed: live: %w; car: %v", liveErr, carErr)
	}
	e.sortItems(items)
	if err := e.writeSnapshot(handle, items); err != nil {
		log.Printf("[EXPORT] Failed to write snapshot for %s: %v", handle, err)
	}
	return items, nil
}

// exportLive walks listRecords per collection in parallel, bounded by the
// configured category worker count.
func (e *Exporter) exportLive(ctx context.Context, did string, categories []models.ContentType, limit int, rep progress.Reporter) ([]*models.ContentItem, error) {
	cols := collectionsFor(categories)

	var mu sync.Mutex
	var all []*models.ContentItem
	fetched := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.CategoryWorkers)

	for _, collection := range cols {
		g.Go(func() error {
			records, err := client.Paginate(gctx, limit, func(ctx context.Context, cursor string) ([]client.Record, string, error) {
				return e.repo.ListRecords(ctx, did, collection, cursor, e.settings.RecordsPageSize)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, rec := range records {
				if item := itemFromRecord(rec); item != nil {
					all = append(all, item)
				}
			}
			fetched += len(records)
			rep.Report("export", fetched, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// reuseSnapshot returns the most recently modified export file matching
// <handle>.json or <handle>_*.json, if it is fresh enough.
func (e *Exporter) reuseSnapshot(handle string) ([]*models.ContentItem, bool) {
	dir, err := config.JSONDir(e.root)
	if err != nil {
		return nil, false
	}
	candidates, _ := filepath.Glob(filepath.Join(dir, handle+"_*.json"))
	candidates = append(candidates, filepath.Join(dir, handle+".json"))

	var newest string
	var newestMod time.Time
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
	}
	if newest == "" || time.Since(newestMod) > cacheReuseWindow {
		return nil, false
	}

	items, err := LoadSnapshot(newest)
	if err != nil {
		log.Printf("[EXPORT] Cached snapshot %s unreadable: %v", newest, err)
		return nil, false
	}
	log.Printf("[EXPORT] Reusing cached snapshot %s (%d items)", filepath.Base(newest), len(items))
	return items, true
}

// exportFromCAR downloads a full repo backup, imports the wanted
// collections, and removes the backup file afterwards.
func (e *Exporter) exportFromCAR(ctx context.Context, did, handle string, categories []models.ContentType, limit int, rep progress.Reporter) ([]*models.ContentItem, error) {
	rep.Report("car-backup", 0, 0)
	data, err := e.repo.GetRepo(ctx, did)
	if err != nil {
		return nil, err
	}

	carDir, err := config.CARDir(e.root)
	if err != nil {
		return nil, errors.Wrap(err, errors.Storage, "prepare CAR directory")
	}
	carPath := filepath.Join(carDir, fmt.Sprintf("%s-%d.car", handle, time.Now().Unix()))
	if err := os.WriteFile(carPath, data, 0o644); err != nil {
		return nil, errors.Wrap(err, errors.Storage, "write CAR backup")
	}

	wanted := map[string]bool{}
	for _, c := range collectionsFor(categories) {
		wanted[c] = true
	}
	records, err := recordsFromCAR(ctx, did, data, wanted)
	if err != nil {
		return nil, err
	}

	perCollection := map[string]int{}
	var items []*models.ContentItem
	for _, rec := range records {
		item := itemFromRecord(rec)
		if item == nil {
			continue
		}
		uri, _ := identity.ParseRecordURI(rec.URI)
		if perCollection[uri.Collection] >= limit {
			continue
		}
		perCollection[uri.Collection]++
		items = append(items, item)
	}
	rep.Report("car-import", len(items), len(items))

	// The backup served its purpose once the import succeeded.
	if err := os.Remove(carPath); err != nil {
		log.Printf("[EXPORT] Failed to remove CAR backup %s: %v", carPath, err)
	}
	return items, nil
}

// writeSnapshot rewrites the export file atomically (write-and-rename).
func (e *Exporter) writeSnapshot(handle string, items []*models.ContentItem) error {
	dir, err := config.JSONDir(e.root)
	if err != nil {
		return errors.Wrap(err, errors.Storage, "prepare export directory")
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.Storage, "marshal export")
	}
	final := filepath.Join(dir, handle+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.Storage, "write export")
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrap(err, errors.Storage, "rename export")
	}
	log.Printf("[EXPORT] Wrote %d items to %s", len(items), final)
	return nil
}

// LoadSnapshot reads a previously written export file. Engagement scores
// are recomputed rather than trusted.
func LoadSnapshot(path string) ([]*models.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Storage, "read export file")
	}
	var items []*models.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, errors.Storage, "parse export file")
	}
	for _, item := range items {
		item.RecomputeEngagement()
	}
	return items, nil
}

// sortItems applies the configured default fetch order.
func (e *Exporter) sortItems(items []*models.ContentItem) {
	newest := !strings.EqualFold(e.settings.FetchOrder, "oldest")
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].CreatedAt, items[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		case newest:
			return a.After(*b)
		default:
			return a.Before(*b)
		}
	})
}
