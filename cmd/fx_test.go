package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/infra/telemetry"
)

type captureLogs struct {
	mu     sync.Mutex
	bodies []string
}

func (c *captureLogs) Export(_ context.Context, records []sdklog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range records {
		c.bodies = append(c.bodies, records[i].Body().AsString())
	}
	return nil
}

func (c *captureLogs) Shutdown(context.Context) error   { return nil }
func (c *captureLogs) ForceFlush(context.Context) error { return nil }

func TestProvideLogger_OtelBridgeExports(t *testing.T) {
	logs := &captureLogs{}
	tel, err := telemetry.New(context.Background(), config.OtelConfig{Exporter: config.ExporterNone},
		telemetry.Resource(ServiceName, ServiceNamespace, version),
		telemetry.WithLogExporter(logs),
		telemetry.WithSyncExport(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := &config.Config{Log: config.LogConfig{Level: "info", Otel: true}}
	logger := ProvideLogger(cfg, ProvideLevel(cfg), tel)

	require.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	require.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))

	logger.Error("WS_RETRY_EXHAUSTED", "attempts", 5)

	logs.mu.Lock()
	defer logs.mu.Unlock()
	require.Equal(t, []string{"WS_RETRY_EXHAUSTED"}, logs.bodies)
}

func TestProvideWatermillLogger_DemotesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	wl := ProvideWatermillLogger(logger)

	wl.Info("No subscribers to send message", watermill.LogFields{"topic": "user-admin.socket.status"})
	require.Empty(t, buf.String())

	wl.Error("Publish failed", nil, nil)
	require.Contains(t, buf.String(), "Publish failed")
}
