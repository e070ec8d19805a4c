package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/adapter/socket"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			func(api users.API, cfg *config.Config) (*UserDirectory, error) {
				return NewUserDirectory(api, cfg.Cache.Size)
			},
			fx.As(new(Directory)),
		),
		NewRelay,
		func(r *Relay) socket.Listener { return r },
	),

	// [DECORATION_LAYER] Intercept Directory to add cross-cutting concerns
	fx.Decorate(func(orig Directory, logger *slog.Logger) Directory {
		return NewDirectoryMiddleware(orig, logger.With("component", "directory"))
	}),
)
