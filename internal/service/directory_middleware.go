package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/registry"
)

// DirectoryMiddleware implements [DECORATOR_PATTERN] to add observability
// to directory calls without touching business logic.
type DirectoryMiddleware struct {
	Next   Directory
	Logger *slog.Logger
}

func NewDirectoryMiddleware(next Directory, logger *slog.Logger) Directory {
	return &DirectoryMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *DirectoryMiddleware) observe(op string, start time.Time, err error, args ...any) {
	duration := time.Since(start).Milliseconds()
	if err != nil {
		m.Logger.Warn("DIRECTORY_CALL_FAILED",
			append([]any{"op", op, "err", err, "reason", users.Classify(err), "duration_ms", duration}, args...)...,
		)
		return
	}
	m.Logger.Debug("DIRECTORY_CALL_COMPLETED",
		append([]any{"op", op, "duration_ms", duration}, args...)...,
	)
}

func (m *DirectoryMiddleware) Search(ctx context.Context, query string, page int) (Page, error) {
	start := time.Now()
	p, err := m.Next.Search(ctx, query, page)
	m.observe("search", start, err, "query", query, "page", page, "total", p.Total)
	return p, err
}

func (m *DirectoryMiddleware) GetByID(ctx context.Context, id int64) (model.User, error) {
	start := time.Now()
	u, err := m.Next.GetByID(ctx, id)
	m.observe("get", start, err, "user_id", id)
	return u, err
}

// ResolveMany wraps the concurrent resolution with execution timing and outcome logging.
func (m *DirectoryMiddleware) ResolveMany(ctx context.Context, ids []int64) ([]model.User, error) {
	start := time.Now()
	res, err := m.Next.ResolveMany(ctx, ids)
	m.observe("resolve_many", start, err, "count", len(ids))
	return res, err
}

func (m *DirectoryMiddleware) Create(ctx context.Context, in model.UserInput) (model.User, error) {
	start := time.Now()
	u, err := m.Next.Create(ctx, in)
	m.observe("create", start, err, "user_id", u.ID)
	return u, err
}

func (m *DirectoryMiddleware) Update(ctx context.Context, id int64, in model.UserInput) (model.User, error) {
	start := time.Now()
	u, err := m.Next.Update(ctx, id, in)
	m.observe("update", start, err, "user_id", id)
	return u, err
}

func (m *DirectoryMiddleware) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := m.Next.Delete(ctx, id)
	m.observe("delete", start, err, "user_id", id)
	return err
}

func (m *DirectoryMiddleware) Sync(c registry.Consumer) int {
	n := m.Next.Sync(c)
	if n > 0 {
		m.Logger.Debug("DIRECTORY_SEEDED", "consumer", c.Name(), "users", n)
	}
	return n
}
