package httpsrv

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/webitel/user-admin-client/config"
)

var Module = fx.Module("http_server",
	fx.Provide(
		NewRouter,
		func(cfg *config.Config, r chi.Router, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP.Addr, r, logger.With("component", "http"))
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return s.Start()
			},
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
