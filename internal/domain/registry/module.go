package registry

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Distributor using Functional Options
		func(logger *slog.Logger) *Distributor {
			return NewDistributor(
				WithLogger(logger),
				WithEvictionInterval(time.Minute),
				WithIdleTimeout(10*time.Minute),
				WithMailboxSize(512),
			)
		},
		fx.Annotate(
			func(d *Distributor) Recorder { return d },
			fx.As(new(Recorder)),
		),
		fx.Annotate(
			func(d *Distributor) Tracker { return d },
			fx.As(new(Tracker)),
		),
		fx.Annotate(
			func(d *Distributor) Subscriber { return d },
			fx.As(new(Subscriber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, d *Distributor) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				d.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all consumer cells
				return nil
			},
		})
	}),
)
