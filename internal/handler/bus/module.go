package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module("bus-handler",
	fx.Provide(
		NewHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *Handler, router *message.Router, sub message.Subscriber) error {
		return h.RegisterHandlers(router, sub)
	}),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("BUS_ROUTER_STOPPED", "err", err)
					}
				}()

				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return fmt.Errorf("bus router start: %w", ctx.Err())
				}
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
	}),
)
