package main

import (
	"context"
	"crypto/rand"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Skymarshal/internal/api/events"
	"Skymarshal/internal/api/handlers"
	"Skymarshal/internal/api/jobs"
	"Skymarshal/internal/api/middleware"
	"Skymarshal/internal/api/routes"
	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/atproto/firehose"
	"Skymarshal/internal/config"
	"Skymarshal/internal/core/auth"
	"Skymarshal/internal/core/content"
	"Skymarshal/internal/core/deletion"
	"Skymarshal/internal/core/network"
	"Skymarshal/internal/core/search"
	"Skymarshal/internal/core/sessions"
	"Skymarshal/internal/db/store"
)

func main() {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	root, err := config.Dir()
	if err != nil {
		log.Fatal("Failed to resolve storage directory:", err)
	}
	settings, err := config.Load(root)
	if err != nil {
		log.Fatal("Failed to load settings:", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = filepath.Join(root, "profile_cache.sqlite")
	}
	db, err := store.Open(dbURL)
	if err != nil {
		log.Fatal("Failed to open profile cache:", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Println("Profile cache ready")

	atc := client.New(settings.PDSHost, client.Options{
		Timeout:         time.Duration(settings.HTTPTimeoutSecs) * time.Second,
		RateLimitPoints: settings.RateLimitPoints,
		RateLimitWindow: time.Duration(settings.RateLimitWindowSecs) * time.Second,
	})
	manager := auth.NewManager(atc, root, nil)
	if manager.ResumeSession(context.Background()) {
		log.Printf("Resumed session for %s", manager.Handle())
	}

	exporter := content.NewExporter(atc, root, settings)
	contentStore := content.NewStore(exporter, atc, db, settings)
	searchEngine := search.NewEngine(atc, settings.UseSubjectEngagementForReposts)
	deleter := deletion.New(atc, contentStore)
	fetcher := network.New(atc, db, settings)

	registry := sessions.NewRegistry(time.Duration(settings.SessionTTLHours) * time.Hour)
	defer registry.Close()
	cookieMgr := middleware.NewSessionManager(sessionSecret(), registry)

	broadcaster := events.NewBroadcaster()
	jobManager := jobs.NewManager(broadcaster)

	relay := firehose.NewRelay(os.Getenv("JETSTREAM_URL"), broadcaster)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go func() {
		if err := relay.Start(relayCtx); err != nil && relayCtx.Err() == nil {
			log.Printf("Firehose relay stopped: %v", err)
		}
	}()

	router := routes.New(routes.Deps{
		Auth:      handlers.NewAuthHandler(manager, registry, cookieMgr),
		Content:   handlers.NewContentHandler(manager, contentStore, searchEngine, deleter, db, atc, broadcaster),
		Analytics: handlers.NewAnalyticsHandler(contentStore),
		Network:   handlers.NewNetworkHandler(fetcher, jobManager),
		Events:    handlers.NewEventsHandler(broadcaster, relay),
		Sessions:  cookieMgr,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	stopRelay()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// sessionSecret returns the cookie-signing key. Ephemeral when not
// configured: restarting the server logs everyone out.
func sessionSecret() []byte {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return []byte(s)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal("Failed to generate session secret:", err)
	}
	return buf
}
