package handlers

import (
	"fmt"
	"net/http"

	"Skymarshal/internal/api/events"
	"Skymarshal/internal/atproto/firehose"
)

// EventsHandler serves the SSE stream and firehose snapshots.
type EventsHandler struct {
	broadcaster *events.Broadcaster
	relay       *firehose.Relay
}

// NewEventsHandler creates the real-time endpoints handler.
func NewEventsHandler(bc *events.Broadcaster, relay *firehose.Relay) *EventsHandler {
	return &EventsHandler{broadcaster: bc, relay: relay}
}

// Stream handles GET /api/events as server-sent events. The first frame
// is a connected event; afterwards every published event is relayed
// until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.broadcaster.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: connected\ndata: {\"connected\":true}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, e.Data)
			flusher.Flush()
		}
	}
}

// FirehoseRecent handles GET /api/firehose/recent.
func (h *EventsHandler) FirehoseRecent(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   h.relay.Stats(),
		"recent":  h.relay.Recent(),
	})
}
