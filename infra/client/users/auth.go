package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrEmptyToken = errors.New("login: server returned no access_token")

// AuthClient talks to the login endpoint.
type AuthClient struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func NewAuthClient(baseURL string, hc *http.Client) *AuthClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		tracer:  otel.Tracer("github.com/webitel/user-admin-client/infra/client/users"),
	}
}

// Login exchanges credentials for an access token using a form-encoded POST.
func (a *AuthClient) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "auth.login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	tok, err := a.login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return tok, err
}

func (a *AuthClient) login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", &APIError{Kind: KindNetwork, Message: "Login failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := errorFromResponse(resp)
		return "", apiErr
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return body.AccessToken, nil
}
