package lp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/user-admin-client/infra/server/httpsrv/interceptors"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	lpmarshaller "github.com/webitel/user-admin-client/internal/handler/marshaller/lp"
	"github.com/webitel/user-admin-client/internal/service"
)

const (
	DefaultPollTimeout = 30 * time.Second
	maxBatch           = 16
)

type LPHandler struct {
	deliverer service.Deliverer
	tracker   registry.Tracker
	logger    *slog.Logger
	timeout   time.Duration
}

func NewLPHandler(deliverer service.Deliverer, tracker registry.Tracker, logger *slog.Logger) *LPHandler {
	return &LPHandler{
		deliverer: deliverer,
		tracker:   tracker,
		logger:    logger,
		timeout:   DefaultPollTimeout,
	}
}

// WithTimeout returns a copy of the handler with a different hold time.
func (h *LPHandler) WithTimeout(d time.Duration) *LPHandler {
	cp := *h
	cp.timeout = d
	return &cp
}

// Poll handles the long-polling request for one consumer.
// Pending events newer than the "after" cursor are returned at once; otherwise
// the request is held until a live event arrives or the timeout elapses.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Extract consumer identity.
	consumer := chi.URLParam(r, "consumer")
	if consumer == "" {
		consumer, _ = interceptors.GetConsumer(r.Context())
	}
	if consumer == "" {
		http.Error(w, "consumer is required", http.StatusBadRequest)
		return
	}

	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid after cursor", http.StatusBadRequest)
			return
		}
		after = v
	}

	// 2. Subscribe before reading the backlog so nothing recorded in between is lost.
	conn, err := h.deliverer.Subscribe(r.Context(), consumer)
	if err != nil {
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	// Ensure cleanup: remove from registry when request finishes.
	defer h.deliverer.Unsubscribe(consumer, conn.GetID())

	// 3. Backlog.
	events := newer(h.tracker.Consumer(consumer).Unprocessed(), after)
	if len(events) > maxBatch {
		events = events[:maxBatch]
	}

	// 4. Wait for data or timeout.
	if len(events) == 0 {
		select {
		case <-r.Context().Done():
			// Client disconnected.
			return

		case <-time.After(h.timeout):
			// Standard Long-Polling timeout to prevent hanging connections.
			w.WriteHeader(http.StatusNoContent)
			return

		case ev, ok := <-conn.Recv():
			if !ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			events = append(events, ev)

			// Drain remaining events from buffer to provide batching.
		drainLoop:
			for len(events) < maxBatch {
				select {
				case nextEv, ok := <-conn.Recv():
					if !ok {
						break drainLoop
					}
					events = append(events, nextEv)
				default:
					break drainLoop
				}
			}
		}
	}

	// 5. Final transmission.
	data, err := lpmarshaller.MarshallEvents(consumer, events, conn.Dropped())
	if err != nil {
		h.logger.Error("LP_MARSHAL_FAILED", "consumer", consumer, "err", err)
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// newer keeps events above the cursor, oldest first.
func newer(evs []event.InboundEvent, after uint64) []event.InboundEvent {
	out := make([]event.InboundEvent, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].ID > after {
			out = append(out, evs[i])
		}
	}
	return out
}
