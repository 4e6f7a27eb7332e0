package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arya-gaj/veri/internal/models"
)

// BlockFeed provides new-block subscriptions. The returned unsubscribe
// function must stop delivery and close the channel.
type BlockFeed interface {
	WatchBlocks(ctx context.Context) (<-chan models.BlockEvent, func())
}

// handleStream pushes chain events over SSE. One subscription per connection;
// when the client goes away the subscription is torn down and no further
// events are written.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		s.writeError(w, http.StatusServiceUnavailable, "The Emerald City's signal tower is offline.")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errMsgInternal)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	events, unsubscribe := s.feed.WatchBlocks(ctx)
	defer unsubscribe()

	s.writeStreamEvent(w, flusher, models.StreamEvent{
		Type:      models.StreamEventInit,
		Message:   "Connected to the Emerald City block stream",
		Timestamp: time.Now().Unix(),
	})

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, open := <-events:
			if !open {
				return
			}
			s.writeStreamEvent(w, flusher, models.StreamEvent{
				Type:         models.StreamEventNewBlock,
				Timestamp:    time.Now().Unix(),
				BlockNumber:  event.Number,
				Transactions: event.Transactions,
				GasUsed:      event.GasUsed,
				Hash:         event.Hash,
			})

		case <-ticker.C:
			s.writeStreamEvent(w, flusher, models.StreamEvent{
				Type:      models.StreamEventPing,
				Timestamp: time.Now().Unix(),
			})
		}
	}
}

// writeStreamEvent frames one event. Data-only framing: each message is a
// single data line followed by a blank line.
func (s *Server) writeStreamEvent(w http.ResponseWriter, flusher http.Flusher, event models.StreamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("stream event encode failed")
		return
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return
	}
	flusher.Flush()
}
