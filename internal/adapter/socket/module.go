package socket

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/user-admin-client/config"
)

// NewFromConfig builds the single application Manager.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, l Listener) *Manager {
	return New(cfg.WSURL, Config{
		ReconnectInterval:    cfg.ReconnectInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Debug:                cfg.Debug,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
	},
		WithLogger(logger.With("component", "socket")),
		WithListener(l),
	)
}

var Module = fx.Module("socket",
	fx.Provide(NewFromConfig),

	// [LIFECYCLE] connect on start, close with 1000 on stop
	fx.Invoke(func(lc fx.Lifecycle, m *Manager, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				logger.Info("WS_MANAGER_STARTING", "url", m.URL())
				return m.Connect(ctx)
			},
			OnStop: func(context.Context) error {
				return m.Close()
			},
		})
	}),
)
