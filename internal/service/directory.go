package service

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/registry"
)

const (
	// PageSize is the number of users per listing page.
	PageSize = 10
	// ConsumerDirectory is the distributor consumer that feeds the cache.
	ConsumerDirectory = "directory"

	resolveConcurrency = 8
)

// Directory is the high-level contract for user lookups and mutations.
type Directory interface {
	Search(ctx context.Context, query string, page int) (Page, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	// ResolveMany performs concurrent lookups, preserving input order.
	ResolveMany(ctx context.Context, ids []int64) ([]model.User, error)
	Create(ctx context.Context, in model.UserInput) (model.User, error)
	Update(ctx context.Context, id int64, in model.UserInput) (model.User, error)
	Delete(ctx context.Context, id int64) error
	// Sync seeds the cache from user_created events the consumer has not seen.
	Sync(c registry.Consumer) int
}

// Page is one slice of a filtered listing. Page numbers start at 1.
type Page struct {
	Users      []model.User `json:"users"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
}

type UserDirectory struct {
	api   users.API
	cache *lru.Cache[int64, model.User]
}

// NewUserDirectory provides a thread-safe directory with an internal LRU cache.
func NewUserDirectory(api users.API, cacheSize int) (*UserDirectory, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	// [MEMORY_MANAGEMENT] bounded cache of "hot" users
	cache, err := lru.New[int64, model.User](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("user cache: %w", err)
	}
	return &UserDirectory{api: api, cache: cache}, nil
}

// Search fetches the full listing and applies a case-insensitive filter over
// id, email, username and the active/inactive label.
func (d *UserDirectory) Search(ctx context.Context, query string, page int) (Page, error) {
	all, err := d.api.List(ctx)
	if err != nil {
		return Page{}, err
	}

	for _, u := range all {
		d.cache.Add(u.ID, u)
	}

	return Paginate(Filter(all, query), page), nil
}

// Filter keeps users where any searchable field contains query.
func Filter(list []model.User, query string) []model.User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}

	out := make([]model.User, 0, len(list))
	for _, u := range list {
		if strings.Contains(u.IDString(), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(u.ActivityLabel(), q) {
			out = append(out, u)
		}
	}
	return out
}

// Paginate clamps page to at least 1; a page past the end is empty.
func Paginate(list []model.User, page int) Page {
	if page < 1 {
		page = 1
	}
	total := len(list)
	p := Page{
		Page:       page,
		Total:      total,
		TotalPages: (total + PageSize - 1) / PageSize,
		Users:      []model.User{},
	}

	start := (page - 1) * PageSize
	if start >= total {
		return p
	}
	end := min(start+PageSize, total)
	p.Users = list[start:end]
	return p
}

// GetByID orchestrates the cache-aside strategy.
func (d *UserDirectory) GetByID(ctx context.Context, id int64) (model.User, error) {
	// [HOT_PATH]
	if u, ok := d.cache.Get(id); ok {
		return u, nil
	}

	u, err := d.api.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	d.cache.Add(id, u)
	return u, nil
}

// ResolveMany uses errgroup so that all lookups complete or fail together.
func (d *UserDirectory) ResolveMany(ctx context.Context, ids []int64) ([]model.User, error) {
	out := make([]model.User, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			u, err := d.GetByID(gCtx, id)
			if err != nil {
				return fmt.Errorf("resolve user %d: %w", id, err)
			}
			out[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel resolution failed: %w", err)
	}
	return out, nil
}

func (d *UserDirectory) Create(ctx context.Context, in model.UserInput) (model.User, error) {
	u, err := d.api.Create(ctx, in)
	if err != nil {
		return model.User{}, err
	}
	d.cache.Add(u.ID, u)
	return u, nil
}

func (d *UserDirectory) Update(ctx context.Context, id int64, in model.UserInput) (model.User, error) {
	d.cache.Remove(id)

	u, err := d.api.Update(ctx, id, in)
	if err != nil {
		return model.User{}, err
	}
	d.cache.Add(u.ID, u)
	return u, nil
}

func (d *UserDirectory) Delete(ctx context.Context, id int64) error {
	d.cache.Remove(id)
	return d.api.Delete(ctx, id)
}

// Sync acks every pending event of c and caches the users carried by
// user_created frames. It returns the number of users seeded.
func (d *UserDirectory) Sync(c registry.Consumer) int {
	seeded := 0
	for _, ev := range c.Unprocessed() {
		if ev.Kind == event.UserCreated && ev.Frame.User != nil {
			d.cache.Add(ev.Frame.User.ID, *ev.Frame.User)
			seeded++
		}
		c.MarkProcessed(ev.ID)
	}
	return seeded
}

// Cached reports whether id is in the cache without touching recency.
func (d *UserDirectory) Cached(id int64) bool {
	return d.cache.Contains(id)
}
