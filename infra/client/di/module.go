package clientdi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/infra/client/users"
)

var Module = fx.Module(
	"rest_clients",

	fx.Provide(
		func() *http.Client { return &http.Client{Timeout: 15 * time.Second} },
		func(cfg *config.Config) *users.FileStore { return users.NewFileStore(cfg.Auth.TokenFile) },

		// [CONSTRUCTOR] Provides the resilient user resource client
		fx.Annotate(
			func(cfg *config.Config, hc *http.Client, tokens *users.FileStore, logger *slog.Logger) *users.Client {
				return users.New(cfg.APIURL,
					users.WithHTTPClient(hc),
					users.WithTokenSource(tokens),
					users.WithBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
					users.WithLogger(logger.With("component", "users-api")),
				)
			},
			fx.As(new(users.API)),
		),
		func(cfg *config.Config, hc *http.Client) *users.AuthClient {
			return users.NewAuthClient(cfg.AuthURL, hc)
		},
	),

	// [LIFECYCLE] Release pooled keep-alive connections on app shutdown
	fx.Invoke(func(lc fx.Lifecycle, hc *http.Client) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				hc.CloseIdleConnections()
				return nil
			},
		})
	}),
)
