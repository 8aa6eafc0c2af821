// Package routes assembles the HTTP API.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"Skymarshal/internal/api/handlers"
	"Skymarshal/internal/api/middleware"
)

// Deps carries the wired handlers.
type Deps struct {
	Auth      *handlers.AuthHandler
	Content   *handlers.ContentHandler
	Analytics *handlers.AnalyticsHandler
	Network   *handlers.NetworkHandler
	Events    *handlers.EventsHandler
	Sessions  *middleware.SessionManager
}

// New builds the router with logging, recovery, and per-IP rate limiting
// applied to every endpoint.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewRateLimiter(300, time.Minute).Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", d.Auth.Login)
		r.Get("/auth/session", d.Auth.Session)
		r.Post("/auth/logout", d.Auth.Logout)

		r.Get("/events", d.Events.Stream)
		r.Get("/firehose/recent", d.Events.FirehoseRecent)
		r.Get("/share/{id}", d.Content.SharedPost)

		// Everything below requires a live session.
		r.Group(func(r chi.Router) {
			r.Use(d.Sessions.RequireSession)

			r.Post("/content/load", d.Content.Load)
			r.Get("/content/summary", d.Content.Summary)
			r.Post("/search", d.Content.Search)
			r.Post("/delete", d.Content.Delete)
			r.Get("/export/csv", d.Content.ExportCSV)
			r.Get("/export/car", d.Content.ExportCAR)
			r.Post("/share", d.Content.Share)

			r.Get("/analytics/insights", d.Analytics.Insights)
			r.Get("/analytics/sentiment", d.Analytics.Sentiment)
			r.Get("/analytics/time-patterns", d.Analytics.TimePatterns)
			r.Get("/analytics/engagement", d.Analytics.Engagement)
			r.Get("/analytics/words", d.Analytics.Words)

			r.Post("/network/fetch", d.Network.StartFetch)
			r.Get("/network/status/{id}", d.Network.Status)
			r.Get("/network/result/{id}", d.Network.Result)
		})
	})
	return r
}
