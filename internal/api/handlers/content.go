package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"Skymarshal/internal/api/events"
	"Skymarshal/internal/api/middleware"
	"Skymarshal/internal/core/auth"
	"Skymarshal/internal/core/content"
	"Skymarshal/internal/core/deletion"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/progress"
	"Skymarshal/internal/core/search"
	"Skymarshal/pkg/errors"
)

// SharedStore is the permalink persistence surface.
type SharedStore interface {
	SaveSharedPost(ctx context.Context, payload []byte) (string, error)
	GetSharedPost(ctx context.Context, id string) ([]byte, error)
}

// RepoDownloader provides the raw CAR stream for the export endpoint.
type RepoDownloader interface {
	GetRepo(ctx context.Context, did string) ([]byte, error)
}

// ContentHandler serves load, summary, search, delete, export, and share.
type ContentHandler struct {
	manager     *auth.Manager
	store       *content.Store
	engine      *search.Engine
	deleter     *deletion.Engine
	shared      SharedStore
	repo        RepoDownloader
	broadcaster *events.Broadcaster
}

// NewContentHandler wires the content endpoints.
func NewContentHandler(manager *auth.Manager, store *content.Store, engine *search.Engine, deleter *deletion.Engine, shared SharedStore, repo RepoDownloader, bc *events.Broadcaster) *ContentHandler {
	return &ContentHandler{
		manager:     manager,
		store:       store,
		engine:      engine,
		deleter:     deleter,
		shared:      shared,
		repo:        repo,
		broadcaster: bc,
	}
}

// reporter streams progress to connected clients as job:progress events.
func (h *ContentHandler) reporter(operation string) progress.Reporter {
	return progress.Func(func(op string, current, total int) {
		h.broadcaster.Publish("job:progress", map[string]any{
			"job_id": operation, "operation": op, "current": current, "total": total,
		})
	})
}

type loadRequest struct {
	Limit        int  `json:"limit"`
	ForceRefresh bool `json:"force_refresh"`
}

// Load handles POST /api/content/load.
func (h *ContentHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, err)
			return
		}
	}
	s := middleware.GetSession(r)

	var items []*models.ContentItem
	err := h.manager.CallWithReauth(r.Context(), func() error {
		var err error
		items, err = h.store.EnsureLoaded(r.Context(), s.DID, s.Handle, nil, req.Limit, req.ForceRefresh, h.reporter("load"))
		return err
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"loaded_count": len(items),
		"summary":      h.store.Summary(s.Handle),
	})
}

// Summary handles GET /api/content/summary.
func (h *ContentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r)
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": h.store.Summary(s.Handle),
	})
}

// Search handles POST /api/search.
func (h *ContentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var filter search.Filter
	if err := decodeBody(r, &filter); err != nil {
		WriteError(w, err)
		return
	}
	s := middleware.GetSession(r)

	items := h.store.Items(s.Handle)
	if items == nil {
		WriteError(w, errors.New(errors.Validation, "no content loaded; call /api/content/load first"))
		return
	}

	results, total, err := h.engine.Search(r.Context(), items, filter, h.reporter("search"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
		"total":   total,
		"summary": h.store.Summary(s.Handle),
	})
}

type deleteRequest struct {
	URIs []string `json:"uris"`
}

// Delete handles POST /api/delete.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if len(req.URIs) == 0 {
		WriteError(w, errors.New(errors.Validation, "uris is required"))
		return
	}
	s := middleware.GetSession(r)

	var deleted int
	var itemErrs []deletion.ItemError
	err := h.manager.CallWithReauth(r.Context(), func() error {
		deleted, itemErrs = h.deleter.Delete(r.Context(), s.DID, s.Handle, req.URIs)
		return nil
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
		"failed":  len(itemErrs),
		"errors":  itemErrs,
	})
}

// ExportCSV handles GET /api/export/csv, streaming the loaded set.
func (h *ContentHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r)
	items := h.store.Items(s.Handle)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.Handle+".csv"))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"uri", "type", "text", "created_at", "likes", "reposts", "replies", "engagement"})
	for _, item := range items {
		created := ""
		if item.CreatedAt != nil {
			created = item.CreatedAt.Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			item.URI,
			string(item.Type),
			item.Text,
			created,
			fmt.Sprint(item.LikeCount),
			fmt.Sprint(item.RepostCount),
			fmt.Sprint(item.ReplyCount),
			fmt.Sprintf("%.1f", item.EngagementScore),
		})
	}
	cw.Flush()
}

// ExportCAR handles GET /api/export/car, streaming a full repo backup.
func (h *ContentHandler) ExportCAR(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r)

	var data []byte
	err := h.manager.CallWithReauth(r.Context(), func() error {
		var err error
		data, err = h.repo.GetRepo(r.Context(), s.DID)
		return err
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.ipld.car")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.Handle+".car"))
	_, _ = w.Write(data)
}

// Share handles POST /api/share: persist one record snapshot and return
// its permalink id.
func (h *ContentHandler) Share(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := decodeBody(r, &payload); err != nil {
		WriteError(w, err)
		return
	}
	if len(payload) == 0 {
		WriteError(w, errors.New(errors.Validation, "empty share payload"))
		return
	}

	id, err := h.shared.SaveSharedPost(r.Context(), payload)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

// SharedPost handles GET /api/share/{id}.
func (h *ContentHandler) SharedPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payload, err := h.shared.GetSharedPost(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
