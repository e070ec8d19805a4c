package notify

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("notify",
	fx.Provide(func() *Queue { return NewQueue() }),

	// [LIFECYCLE] The sweep ticker lives exactly as long as the app.
	fx.Invoke(func(lc fx.Lifecycle, q *Queue) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				q.Start(context.Background())
				return nil
			},
			OnStop: func(context.Context) error {
				q.Stop()
				return nil
			},
		})
	}),
)
