// Package firehose relays the public Jetstream post feed to subscribers,
// tagging each post with derived sentiment and language metadata.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"Skymarshal/internal/core/analytics"
)

// DefaultURL subscribes to post commits only.
const DefaultURL = "wss://jetstream2.us-east.bsky.network/subscribe?wantedCollections=app.bsky.feed.post"

const (
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
	statsTick    = time.Second
	ringSize     = 50
)

// Publisher receives relayed events. The API's event broadcaster
// implements it.
type Publisher interface {
	Publish(event string, data any)
}

// Post is one relayed firehose post.
type Post struct {
	URI       string    `json:"uri"`
	DID       string    `json:"did"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"created_at,omitempty"`
	Language  string    `json:"language,omitempty"`
	Sentiment string    `json:"sentiment"`
	SeenAt    time.Time `json:"seen_at"`
}

// Stats is the periodic firehose summary.
type Stats struct {
	Running    bool    `json:"running"`
	TotalPosts int64   `json:"total_posts"`
	PerSecond  float64 `json:"per_second"`
	UptimeSecs int64   `json:"uptime_secs"`
}

type jetstreamEvent struct {
	DID    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	Kind   string `json:"kind"`
	Commit *struct {
		Operation  string          `json:"operation"`
		Collection string          `json:"collection"`
		RKey       string          `json:"rkey"`
		Record     json.RawMessage `json:"record"`
	} `json:"commit"`
}

type postRecord struct {
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs"`
}

// Relay consumes Jetstream and republishes posts plus 1s statistics. The
// reader and the stats broadcaster are cooperative loops sharing the
// running flag; the broadcaster exits when the reader clears it.
type Relay struct {
	wsURL     string
	publisher Publisher

	running    atomic.Bool
	totalPosts atomic.Int64
	startedAt  time.Time

	mu     sync.Mutex
	recent []Post // ring, newest last
}

// NewRelay creates a relay publishing to pub. An empty wsURL uses the
// default Jetstream endpoint.
func NewRelay(wsURL string, pub Publisher) *Relay {
	if wsURL == "" {
		wsURL = DefaultURL
	}
	return &Relay{wsURL: wsURL, publisher: pub}
}

// Running reports whether the reader loop is active.
func (r *Relay) Running() bool { return r.running.Load() }

// Recent returns a copy of the ring buffer, newest last.
func (r *Relay) Recent() []Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Post(nil), r.recent...)
}

// Stats snapshots the current counters.
func (r *Relay) Stats() Stats {
	total := r.totalPosts.Load()
	s := Stats{Running: r.running.Load(), TotalPosts: total}
	if r.running.Load() && !r.startedAt.IsZero() {
		up := time.Since(r.startedAt)
		s.UptimeSecs = int64(up.Seconds())
		if up > 0 {
			s.PerSecond = float64(total) / up.Seconds()
		}
	}
	return s
}

// Start runs the relay until ctx is cancelled, reconnecting on errors.
func (r *Relay) Start(ctx context.Context) error {
	log.Printf("[FIREHOSE] Starting relay: %s", r.wsURL)
	r.startedAt = time.Now()
	r.running.Store(true)
	defer r.running.Store(false)

	go r.statsLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[FIREHOSE] Relay shutting down")
			return ctx.Err()
		default:
			if err := r.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[FIREHOSE] Connection error: %v. Retrying in 5s...", err)
				time.Sleep(5 * time.Second)
			}
		}
	}
}

// statsLoop emits firehose:stats every second while the reader runs.
func (r *Relay) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.running.Load() {
				return
			}
			r.publisher.Publish("firehose:stats", r.Stats())
		}
	}
}

func (r *Relay) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Jetstream: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("[FIREHOSE] Failed to close WebSocket connection: %v", closeErr)
		}
	}()

	log.Println("[FIREHOSE] Connected to Jetstream")

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		log.Printf("[FIREHOSE] Failed to set read deadline: %v", err)
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			log.Printf("[FIREHOSE] Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					log.Printf("[FIREHOSE] Failed to send ping: %v", err)
					closeOnce.Do(func() { close(done) })
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return fmt.Errorf("connection closed by ping failure")
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			closeOnce.Do(func() { close(done) })
			return fmt.Errorf("read error: %w", err)
		}

		var event jetstreamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("[FIREHOSE] Failed to parse event: %v", err)
			continue
		}
		r.handleEvent(&event)
	}
}

// handleEvent converts a post-create commit into a tagged Post and
// publishes it.
func (r *Relay) handleEvent(event *jetstreamEvent) {
	if event.Kind != "commit" || event.Commit == nil {
		return
	}
	c := event.Commit
	if c.Operation != "create" || c.Collection != "app.bsky.feed.post" {
		return
	}

	var rec postRecord
	if err := json.Unmarshal(c.Record, &rec); err != nil {
		return
	}

	post := Post{
		URI:       fmt.Sprintf("at://%s/%s/%s", event.DID, c.Collection, c.RKey),
		DID:       event.DID,
		Text:      rec.Text,
		CreatedAt: rec.CreatedAt,
		Sentiment: analytics.ClassifySentiment(rec.Text),
		SeenAt:    time.Now().UTC(),
	}
	if len(rec.Langs) > 0 {
		post.Language = rec.Langs[0]
	}

	r.totalPosts.Add(1)
	r.mu.Lock()
	r.recent = append(r.recent, post)
	if len(r.recent) > ringSize {
		r.recent = r.recent[len(r.recent)-ringSize:]
	}
	r.mu.Unlock()

	r.publisher.Publish("firehose:post", post)
}
