package handlers

import (
	"net/http"

	"Skymarshal/internal/api/middleware"
	"Skymarshal/internal/core/analytics"
	"Skymarshal/internal/core/content"
	"Skymarshal/pkg/errors"
)

// AnalyticsHandler serves aggregate insights over the loaded content.
type AnalyticsHandler struct {
	store *content.Store
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(store *content.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

func (h *AnalyticsHandler) compute(r *http.Request) (*analytics.Insights, error) {
	s := middleware.GetSession(r)
	items := h.store.Items(s.Handle)
	if items == nil {
		return nil, errors.New(errors.Validation, "no content loaded; call /api/content/load first")
	}
	return analytics.Compute(items), nil
}

// Insights handles GET /api/analytics/insights.
func (h *AnalyticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ins, err := h.compute(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "insights": ins})
}

// Sentiment handles GET /api/analytics/sentiment.
func (h *AnalyticsHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	ins, err := h.compute(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "sentiment": ins.Sentiment})
}

// TimePatterns handles GET /api/analytics/time-patterns.
func (h *AnalyticsHandler) TimePatterns(w http.ResponseWriter, r *http.Request) {
	ins, err := h.compute(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "time_patterns": ins.TimePattern})
}

// Engagement handles GET /api/analytics/engagement.
func (h *AnalyticsHandler) Engagement(w http.ResponseWriter, r *http.Request) {
	ins, err := h.compute(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "engagement": ins.Engagement})
}

// Words handles GET /api/analytics/words.
func (h *AnalyticsHandler) Words(w http.ResponseWriter, r *http.Request) {
	ins, err := h.compute(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "top_words": ins.TopWords})
}
