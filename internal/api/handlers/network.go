package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Skymarshal/internal/api/jobs"
	"Skymarshal/internal/core/network"
	"Skymarshal/internal/core/progress"
	"Skymarshal/pkg/errors"
)

// NetworkHandler runs graph fetches as background jobs.
type NetworkHandler struct {
	fetcher *network.Fetcher
	jobs    *jobs.Manager
}

// NewNetworkHandler creates a network handler.
func NewNetworkHandler(fetcher *network.Fetcher, manager *jobs.Manager) *NetworkHandler {
	return &NetworkHandler{fetcher: fetcher, jobs: manager}
}

type fetchRequest struct {
	Handle string `json:"handle"`
	Depth  string `json:"depth"` // fast | balanced | detailed
}

// StartFetch handles POST /api/network/fetch.
func (h *NetworkHandler) StartFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Handle == "" {
		WriteError(w, errors.New(errors.Validation, "handle is required"))
		return
	}
	mode := network.Mode(req.Depth)
	switch mode {
	case "", network.ModeFast, network.ModeBalanced, network.ModeDetailed:
	default:
		WriteError(w, errors.Newf(errors.Validation, "unknown depth %q", req.Depth))
		return
	}

	// The job outlives the HTTP request; it carries its own context.
	jobID := h.jobs.Start(context.Background(), func(ctx context.Context, report func(op string, current, total int)) (any, error) {
		snap, err := h.fetcher.Fetch(ctx, req.Handle, network.Params{Mode: mode, IncludeAnalytics: true}, progress.Func(report))
		if err != nil {
			return nil, err
		}
		return snap, nil
	})
	WriteJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": jobID})
}

// Status handles GET /api/network/status/{id}.
func (h *NetworkHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.jobs.Get(id)
	if !ok {
		WriteError(w, errors.Newf(errors.NotFound, "no job %s", id))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": job.Progress,
		"error":    job.Error,
	})
}

// Result handles GET /api/network/result/{id}.
func (h *NetworkHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.jobs.Get(id)
	if !ok {
		WriteError(w, errors.Newf(errors.NotFound, "no job %s", id))
		return
	}
	if job.Status != jobs.StatusCompleted {
		WriteError(w, errors.Newf(errors.Validation, "job %s is %s", id, job.Status))
		return
	}
	result, _ := h.jobs.Result(id)
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}
