package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/adapter/socket"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/notify"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
	"github.com/webitel/user-admin-client/internal/service"
)

type fakeSocket struct {
	state      model.ConnectionState
	err        error
	sent       []any
	reconnects int
}

func (f *fakeSocket) URL() string                  { return "ws://test/ws/users" }
func (f *fakeSocket) State() model.ConnectionState { return f.state }
func (f *fakeSocket) Attempts() int                { return 2 }
func (f *fakeSocket) Err() error                   { return f.err }
func (f *fakeSocket) Reconnect() error             { f.reconnects++; return nil }

func (f *fakeSocket) Send(payload any) error {
	if f.state != model.Open {
		return socket.ErrNotConnected
	}
	f.sent = append(f.sent, payload)
	return nil
}

type fakeDirectory struct {
	users map[int64]model.User
	err   error
}

var _ service.Directory = (*fakeDirectory)(nil)

func (f *fakeDirectory) Search(_ context.Context, q string, page int) (service.Page, error) {
	if f.err != nil {
		return service.Page{}, f.err
	}
	list := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		list = append(list, u)
	}
	return service.Paginate(service.Filter(list, q), page), nil
}

func (f *fakeDirectory) GetByID(_ context.Context, id int64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, &users.APIError{Kind: users.KindNotFound, Status: http.StatusNotFound, Message: "missing"}
	}
	return u, nil
}

func (f *fakeDirectory) ResolveMany(ctx context.Context, ids []int64) ([]model.User, error) {
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := f.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeDirectory) Create(_ context.Context, in model.UserInput) (model.User, error) {
	u := model.User{ID: int64(len(f.users) + 1), Email: *in.Email, Username: *in.Username}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeDirectory) Update(_ context.Context, id int64, in model.UserInput) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, &users.APIError{Kind: users.KindNotFound, Status: http.StatusNotFound}
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeDirectory) Delete(_ context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

func (f *fakeDirectory) Sync(registry.Consumer) int { return 0 }

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"status": "ok"}, nil
}

type fixture struct {
	srv     *httptest.Server
	socket  *fakeSocket
	queue   *notify.Queue
	tracker *registry.Distributor
	dir     *fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		socket:  &fakeSocket{state: model.Open},
		queue:   notify.NewQueue(),
		tracker: registry.NewDistributor(),
		dir: &fakeDirectory{users: map[int64]model.User{
			1: {ID: 1, Email: "ana@example.com", Username: "ana", IsActive: true},
			2: {ID: 2, Email: "bob@example.com", Username: "bob"},
		}},
	}
	t.Cleanup(f.tracker.Shutdown)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(f.socket, f.queue, f.tracker, f.dir, fakeHealth{}, logger)

	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatus_ProjectsState(t *testing.T) {
	f := newFixture(t)
	f.socket.state = model.Closed
	f.socket.err = socket.ErrMaxAttempts

	resp := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := decode[StatusResponse](t, resp)
	require.Equal(t, int32(model.Closed), st.State)
	require.Equal(t, "Disconnected", st.View.Label)
	require.Equal(t, "red", st.View.Color)
	require.Equal(t, "Max reconnection attempts reached", st.Error)
	require.Equal(t, 2, st.Attempts)
}

func TestSocket_ReconnectAndSend(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/socket/reconnect", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, f.socket.reconnects)

	resp = f.do(t, http.MethodPost, "/api/socket/send", `{"ping":1}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.socket.sent, 1)

	f.socket.state = model.Connecting
	resp = f.do(t, http.MethodPost, "/api/socket/send", `{"ping":2}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Cannot send message: WebSocket is not connected", decode[errorResponse](t, resp).Message)

	resp = f.do(t, http.MethodPost, "/api/socket/send", `{`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifications_ListDismissClear(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.queue.Push(model.Notification{Severity: model.SeverityInfo, Title: "n", AutoHide: true})
	}

	all := decode[[]model.Notification](t, f.do(t, http.MethodGet, "/api/notifications", ""))
	require.Len(t, all, 7)

	visible := decode[[]model.Notification](t, f.do(t, http.MethodGet, "/api/notifications/visible", ""))
	require.Len(t, visible, notify.VisibleLimit)
	require.Equal(t, all[6].ID, visible[0].ID)

	resp := f.do(t, http.MethodDelete, "/api/notifications/"+strconv.FormatUint(all[0].ID, 10), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 6, f.queue.Len())

	resp = f.do(t, http.MethodDelete, "/api/notifications/"+strconv.FormatUint(all[0].ID, 10), "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/notifications/", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Zero(t, f.queue.Len())
}

func TestEvents_PendingAndAck(t *testing.T) {
	f := newFixture(t)
	f.tracker.RecordEvent(event.Decode([]byte(`{"event":"user_created","user":{"id":9,"username":"zed"}}`)))
	f.tracker.RecordEvent(event.Decode([]byte(`{"event":"error","message":"boom"}`)))

	pending := decode[[]marshaller.EventView](t, f.do(t, http.MethodGet, "/api/events/default/pending", ""))
	require.Len(t, pending, 2)
	require.Equal(t, uint64(2), pending[0].ID)

	resp := f.do(t, http.MethodPost, "/api/events/default/1/ack", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	// acking twice is harmless
	resp = f.do(t, http.MethodPost, "/api/events/default/1/ack", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	pending = decode[[]marshaller.EventView](t, f.do(t, http.MethodGet, "/api/events/default/pending", ""))
	require.Len(t, pending, 1)
	require.Equal(t, "error", pending[0].Event)

	// other consumers keep their own view
	other := decode[[]marshaller.EventView](t, f.do(t, http.MethodGet, "/api/events/audit/pending", ""))
	require.Len(t, other, 2)

	all := decode[[]marshaller.EventView](t, f.do(t, http.MethodGet, "/api/events", ""))
	require.Len(t, all, 2)

	stats := decode[registry.Stats](t, f.do(t, http.MethodGet, "/api/events/stats", ""))
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Unprocessed[registry.DefaultConsumer])

	resp = f.do(t, http.MethodPost, "/api/events/default/abc/ack", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsers_CRUD(t *testing.T) {
	f := newFixture(t)

	page := decode[service.Page](t, f.do(t, http.MethodGet, "/api/users?q=ana", ""))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "ana", page.Users[0].Username)

	resp := f.do(t, http.MethodGet, "/api/users?page=0", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	u := decode[model.User](t, f.do(t, http.MethodGet, "/api/users/2", ""))
	require.Equal(t, "bob", u.Username)

	resp = f.do(t, http.MethodPost, "/api/users", `{"email":"cy@example.com","username":"cy","password":"pw"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, int64(3), decode[model.User](t, resp).ID)

	resp = f.do(t, http.MethodPost, "/api/users", `{"email":"cy@example.com"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	u = decode[model.User](t, f.do(t, http.MethodPut, "/api/users/2", `{"is_active":true}`))
	require.True(t, u.IsActive)

	list := decode[[]model.User](t, f.do(t, http.MethodPost, "/api/users/resolve", `{"ids":[2,1]}`))
	require.Equal(t, []int64{2, 1}, []int64{list[0].ID, list[1].ID})

	resp = f.do(t, http.MethodDelete, "/api/users/1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/users/1", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	require.Equal(t, users.KindNotFound, body.Kind)
	require.Equal(t, "User not found", body.Message)
}

func TestUsers_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		err    error
		status int
	}{
		{&users.APIError{Kind: users.KindUnauthorized, Status: 401}, http.StatusUnauthorized},
		{&users.APIError{Kind: users.KindUnavailable}, http.StatusServiceUnavailable},
		{&users.APIError{Kind: users.KindNetwork}, http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f.dir.err = tc.err
		resp := f.do(t, http.MethodGet, "/api/users", "")
		require.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[map[string]any](t, resp)["status"])
}
