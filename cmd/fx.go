package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/webitel/user-admin-client/config"
	clientdi "github.com/webitel/user-admin-client/infra/client/di"
	"github.com/webitel/user-admin-client/infra/server/httpsrv"
	"github.com/webitel/user-admin-client/infra/telemetry"
	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/adapter/socket"
	"github.com/webitel/user-admin-client/internal/domain/notify"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	"github.com/webitel/user-admin-client/internal/handler/api"
	"github.com/webitel/user-admin-client/internal/handler/bus"
	"github.com/webitel/user-admin-client/internal/service"
)

func NewApp(cfg *config.Config, loader *config.Loader) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLevel,
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTelemetry,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		pubsub.Module,
		registry.Module,
		notify.Module,
		clientdi.Module,
		service.Module,
		socket.Module,
		bus.Module,
		api.Module,
		httpsrv.Module,

		// [HOT_RELOAD] log level and socket verbosity follow the config file
		fx.Invoke(func(level *slog.LevelVar, m *socket.Manager, logger *slog.Logger) {
			if loader == nil {
				return
			}
			loader.Watch(logger, func(_, next *config.Config) {
				level.Set(next.Log.SlogLevel())
				m.SetDebug(next.Debug)
			})
		}),
	)
}

// ProvideLevel exposes the mutable level so config reloads can change it.
func ProvideLevel(cfg *config.Config) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	return level
}

func ProvideLogger(cfg *config.Config, level *slog.LevelVar, tel *telemetry.Providers) *slog.Logger {
	var handler slog.Handler
	switch {
	case cfg.Log.Otel:
		handler = telemetry.Leveled(tel.LogHandler(ServiceName, version), level)
	case cfg.Log.Format == "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With("service", ServiceName, "version", version)
	slog.SetDefault(logger)
	return logger
}

// ProvideWatermillLogger demotes watermill's chatty info output (such as
// publishing to a topic nobody listens on) to debug.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLoggerWithLevelMapping(logger.With("component", "watermill"), map[slog.Level]slog.Level{
		slog.LevelInfo: slog.LevelDebug,
	})
}

// ProvideTelemetry installs the global trace and log providers picked up by
// the socket dialer, the REST client and the slog bridge.
func ProvideTelemetry(lc fx.Lifecycle, cfg *config.Config) (*telemetry.Providers, error) {
	tel, err := telemetry.New(context.Background(), cfg.Otel, telemetry.Resource(ServiceName, ServiceNamespace, version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	tel.Install()

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tel.Shutdown(ctx)
		},
	})
	return tel, nil
}
