package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

const (
	// Idle proxies and load balancers drop quiet connections; the
	// heartbeat keeps them open without involving the store.
	heartbeatPeriod = 25 * time.Second

	// Update frames buffered per connection before drops. A client that
	// falls behind reconnects and catches up via the ready frame.
	eventBuffer = 16
)

// HandleEvents serves the server-sent-events stream: one ready frame on
// connect, an update frame per store mutation, heartbeat comments between.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := make(chan domain.StateInfo, eventBuffer)
	unsubscribe := h.broker.Subscribe(func(info domain.StateInfo) {
		select {
		case events <- info:
		default:
		}
	})
	defer unsubscribe()

	// Immediate ready frame so a fresh client doesn't wait for the next
	// mutation to learn current state.
	writeSSE(w, "ready", h.store.Info())
	flusher.Flush()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case info := <-events:
			writeSSE(w, "update", info)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
