// Package api exposes the client's state and the user directory over a local
// HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/notify"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
	"github.com/webitel/user-admin-client/internal/service"
)

// SocketController is the part of the connection manager the API drives.
type SocketController interface {
	URL() string
	State() model.ConnectionState
	Attempts() int
	Err() error
	Reconnect() error
	Send(payload any) error
}

type HealthChecker interface {
	Health(ctx context.Context) (map[string]any, error)
}

type Handler struct {
	socket    SocketController
	queue     *notify.Queue
	tracker   registry.Tracker
	directory service.Directory
	health    HealthChecker
	logger    *slog.Logger
}

func NewHandler(
	socket SocketController,
	queue *notify.Queue,
	tracker registry.Tracker,
	directory service.Directory,
	health HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		socket:    socket,
		queue:     queue,
		tracker:   tracker,
		directory: directory,
		health:    health,
		logger:    logger,
	}
}

// Routes mounts every endpoint under r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.Status)
	r.Get("/health", h.Health)

	r.Route("/socket", func(r chi.Router) {
		r.Post("/reconnect", h.Reconnect)
		r.Post("/send", h.Send)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Get("/visible", h.VisibleNotifications)
		r.Delete("/", h.ClearNotifications)
		r.Delete("/{id}", h.DismissNotification)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/stats", h.EventStats)
		r.Get("/{consumer}/pending", h.PendingEvents)
		r.Post("/{consumer}/{id}/ack", h.AckEvent)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.SearchUsers)
		r.Post("/", h.CreateUser)
		r.Post("/resolve", h.ResolveUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	URL      string           `json:"url"`
	State    int32            `json:"state"`
	View     model.StatusView `json:"view"`
	Attempts int              `json:"attempts"`
	Error    string           `json:"error,omitempty"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.socket.State()
	resp := StatusResponse{
		URL:      h.socket.URL(),
		State:    int32(state),
		View:     model.Project(state),
		Attempts: h.socket.Attempts(),
	}
	if err := h.socket.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body, err := h.health.Health(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.socket.Reconnect(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.socket.Send(payload); err != nil {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.List())
}

func (h *Handler) VisibleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Visible())
}

func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if !h.queue.Dismiss(id) {
		writeMessage(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.queue.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, marshaller.MarshallDeliveryEvents(h.tracker.Events()))
}

func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Stats())
}

func (h *Handler) PendingEvents(w http.ResponseWriter, r *http.Request) {
	c := h.tracker.Consumer(chi.URLParam(r, "consumer"))
	writeJSON(w, http.StatusOK, marshaller.MarshallDeliveryEvents(c.Unprocessed()))
}

func (h *Handler) AckEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid event id")
		return
	}
	// acknowledging an unknown or already processed id is a no-op
	h.tracker.Consumer(chi.URLParam(r, "consumer")).MarkProcessed(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			writeMessage(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = p
	}

	res, err := h.directory.Search(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.directory.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type resolveRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) ResolveUsers(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	list, err := h.directory.ResolveMany(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Email == nil || in.Username == nil || in.Password == nil || strings.TrimSpace(*in.Email) == "" {
		writeMessage(w, http.StatusBadRequest, "email, username and password are required")
		return
	}
	u, err := h.directory.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var in model.UserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := h.directory.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.directory.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Kind    users.Kind `json:"kind,omitempty"`
	Message string     `json:"message"`
}

// writeError maps client failures onto their HTTP status with the operator
// facing message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *users.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.HTTPStatus(), errorResponse{Kind: apiErr.Kind, Message: users.Classify(err)})
		return
	}
	h.logger.Error("API_REQUEST_FAILED", "err", err)
	writeMessage(w, http.StatusInternalServerError, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
