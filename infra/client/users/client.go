// Package users is the REST collaborator: the user resource and the login endpoint.
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webitel/user-admin-client/internal/domain/model"
)

// TokenSource yields the bearer token for a call. An empty token sends no
// Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// API is the user resource as seen by the rest of the client.
type API interface {
	List(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	Create(ctx context.Context, in model.UserInput) (model.User, error)
	Update(ctx context.Context, id int64, in model.UserInput) (model.User, error)
	Delete(ctx context.Context, id int64) error
	Health(ctx context.Context) (map[string]any, error)
}

// Interface guard
var _ API = (*Client)(nil)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger

	maxFailures    uint32
	breakerTimeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithBreaker sets the trip threshold (consecutive failures) and the open-state timeout.
func WithBreaker(maxFailures uint32, timeout time.Duration) Option {
	return func(c *Client) {
		c.maxFailures = maxFailures
		c.breakerTimeout = timeout
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/webitel/user-admin-client/infra/client/users"),

		maxFailures:    5,
		breakerTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.maxFailures, c.breakerTimeout, c.logger)
	return c
}

func newBreaker(maxFailures uint32, timeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "users-api",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("CIRCUIT_BREAKER_STATE_CHANGED", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func (c *Client) List(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, "users.list", http.MethodGet, "/users", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetByID(ctx context.Context, id int64) (model.User, error) {
	var out model.User
	err := c.do(ctx, "users.get", http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil, &out, true)
	return out, err
}

func (c *Client) Create(ctx context.Context, in model.UserInput) (model.User, error) {
	var out model.User
	err := c.do(ctx, "users.create", http.MethodPost, "/users", in, &out, true)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int64, in model.UserInput) (model.User, error) {
	var out model.User
	err := c.do(ctx, "users.update", http.MethodPut, "/users/"+strconv.FormatInt(id, 10), in, &out, true)
	return out, err
}

// Delete accepts both 204 and a JSON confirmation body.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "users.delete", http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), nil, nil, true)
}

// Health probes the backend without credentials.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, "users.health", http.MethodGet, "/health", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, auth bool) error {
	ctx, span := c.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, auth)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &APIError{Kind: KindUnavailable, Message: "circuit open", Err: err}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("USERS_API_CALL_FAILED", "op", op, "method", method, "path", path, "err", err)
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorFromResponse prefers the server's "detail" or "message" field over
// the bare status line.
func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}

	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &payload) == nil {
		switch d := payload.Detail.(type) {
		case string:
			if d != "" {
				apiErr.Message = d
			}
		case nil:
			if payload.Message != "" {
				apiErr.Message = payload.Message
			}
		default:
			// validation detail lists
			if b, err := json.Marshal(d); err == nil {
				apiErr.Message = string(b)
			}
		}
	}
	return apiErr
}
