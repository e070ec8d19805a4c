package telemetry

import (
	"context"
	"log/slog"
)

// leveled gates a handler that has no level of its own, such as the otel
// bridge, behind a (possibly mutable) minimum level.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func Leveled(h slog.Handler, level slog.Leveler) slog.Handler {
	return &leveled{Handler: h, level: level}
}

func (h *leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
