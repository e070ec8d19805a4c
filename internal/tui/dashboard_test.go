package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webitel/user-admin-client/infra/server/httpsrv/interceptors"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/handler/api"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
)

type fakeLocalAPI struct {
	mu       sync.Mutex
	acked    []string
	consumer string
}

func (f *fakeLocalAPI) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, api.StatusResponse{URL: "ws://x", State: int32(model.Open), View: model.Project(model.Open)})
	})
	mux.HandleFunc("GET /api/notifications/visible", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []model.Notification{{ID: 1, Severity: model.SeveritySuccess, Title: "New user created", Message: "ana"}})
	})
	mux.HandleFunc("GET /api/events/dashboard/pending", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.consumer = r.Header.Get(interceptors.ConsumerHeader)
		f.mu.Unlock()
		writeJSON(w, []marshaller.EventView{{ID: 2, Event: "error", Message: "boom"}, {ID: 1, Event: "user_created", User: &model.User{Username: "ana"}}})
	})
	mux.HandleFunc("POST /api/events/dashboard/{id}/ack", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.acked = append(f.acked, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestAPISource_FetchAndAck(t *testing.T) {
	fake := &fakeLocalAPI{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	src := NewAPISource(srv.URL+"/", "dashboard", srv.Client())
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Connected", snap.Status.View.Label)
	require.Len(t, snap.Notifications, 1)
	require.Len(t, snap.Events, 2)
	require.Equal(t, "dashboard", fake.consumer)

	require.NoError(t, src.AckAll(context.Background(), snap.Events))
	sort.Strings(fake.acked)
	require.Equal(t, []string{"1", "2"}, fake.acked)
}

func TestAPISource_FetchFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := NewAPISource(srv.URL, "default", srv.Client()).Fetch(context.Background())
	require.Error(t, err)
}

func TestRows(t *testing.T) {
	snap := Snapshot{Status: api.StatusResponse{
		URL:   "ws://x",
		View:  model.Project(model.Connecting),
		Error: "WebSocket connection error",
	}}
	text := StatusText(snap)
	require.Contains(t, text, "[Connecting...](fg:yellow)")
	require.Contains(t, text, "WebSocket connection error")

	now := time.Now()
	rows := NotificationRows([]model.Notification{{Title: "Error", Message: "boom", Severity: model.SeverityError, CreatedAt: now.Add(-3 * time.Second)}}, now)
	require.Equal(t, []string{"[Error](fg:red) boom (3s ago)"}, rows)

	evRows := EventRows([]marshaller.EventView{{ID: 4, Event: "user_created", User: &model.User{Username: "ana"}}, {ID: 5, Kind: "unrecognized", Text: "hello"}})
	require.Equal(t, []string{"#4 user_created ana", "#5 unrecognized hello"}, evRows)
}
