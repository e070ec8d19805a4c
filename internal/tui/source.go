package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/user-admin-client/infra/server/httpsrv/interceptors"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/handler/api"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
)

// Snapshot is everything one dashboard frame shows.
type Snapshot struct {
	Status        api.StatusResponse
	Notifications []model.Notification
	Events        []marshaller.EventView
}

// APISource reads the local API of a running watch process.
type APISource struct {
	base     string
	consumer string
	hc       *http.Client
}

func NewAPISource(baseURL, consumer string, hc *http.Client) *APISource {
	return &APISource{base: strings.TrimRight(baseURL, "/"), consumer: consumer, hc: hc}
}

// Fetch loads the three panels concurrently.
func (s *APISource) Fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.get(ctx, "/api/status", &snap.Status) })
	g.Go(func() error { return s.get(ctx, "/api/notifications/visible", &snap.Notifications) })
	g.Go(func() error { return s.get(ctx, "/api/events/"+s.consumer+"/pending", &snap.Events) })
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *APISource) Reconnect(ctx context.Context) error {
	return s.post(ctx, http.MethodPost, "/api/socket/reconnect")
}

func (s *APISource) ClearNotifications(ctx context.Context) error {
	return s.post(ctx, http.MethodDelete, "/api/notifications")
}

// AckAll marks every event in evs as processed for the dashboard consumer.
func (s *APISource) AckAll(ctx context.Context, evs []marshaller.EventView) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ev := range evs {
		g.Go(func() error {
			return s.post(ctx, http.MethodPost, fmt.Sprintf("/api/events/%s/%d/ack", s.consumer, ev.ID))
		})
	}
	return g.Wait()
}

func (s *APISource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(interceptors.ConsumerHeader, s.consumer)

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *APISource) post(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(interceptors.ConsumerHeader, s.consumer)

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}
