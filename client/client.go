// Package client is a Go client for the authentication API. Session tokens
// are attached by a per-client TokenTransport; nothing global is modified.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/princinho/authgate/dto"
)

// TokenHeader is the request header the server reads the session token from.
const TokenHeader = "x-auth-token"

// TokenStore holds the current session token.
type TokenStore interface {
	Token() string
	SetToken(token string)
	Clear()
}

type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() { s.SetToken("") }

// TokenTransport adds the session header to outgoing requests when the store
// holds a token. Requests that already carry the header are left alone.
type TokenTransport struct {
	Base  http.RoundTripper
	Store TokenStore
}

func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	token := t.Store.Token()
	if token == "" || req.Header.Get(TokenHeader) != "" {
		return base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(TokenHeader, token)
	return base.RoundTrip(r)
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Msg    string
	Fields []dto.FieldErrorResponse
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Msg)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

type Option func(*options)

type options struct {
	transport http.RoundTripper
	tokens    TokenStore
	timeout   time.Duration
}

func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func WithTokenStore(s TokenStore) Option {
	return func(o *options) { o.tokens = s }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	o := options{timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokens == nil {
		o.tokens = &MemoryTokenStore{}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: &TokenTransport{Base: o.transport, Store: o.tokens},
		},
		tokens: o.tokens,
	}, nil
}

func (c *Client) Tokens() TokenStore { return c.tokens }

func (c *Client) Authenticated() bool { return c.tokens.Token() != "" }

func (c *Client) Logout() { c.tokens.Clear() }

// Register creates an account and keeps the returned session token.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	var out dto.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", dto.RegisterDTO{
		Username: username, Email: email, Password: password,
	}, &out)
	if err != nil {
		return err
	}
	c.tokens.SetToken(out.Token)
	return nil
}

// Login keeps the returned session token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", dto.LoginDTO{Email: email, Password: password}, &out); err != nil {
		return err
	}
	c.tokens.SetToken(out.Token)
	return nil
}

func (c *Client) Me(ctx context.Context) (*dto.UserResponse, error) {
	var out dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Users(ctx context.Context) ([]dto.UserResponse, error) {
	var out []dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ToggleAdmin(ctx context.Context, userID string) (*dto.UserResponse, error) {
	var out dto.UserResponse
	path := "/api/auth/users/" + url.PathEscape(userID) + "/admin"
	if err := c.do(ctx, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword returns the server's confirmation message.
func (c *Client) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) (string, error) {
	var out dto.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/reset-password", dto.ResetPasswordDTO{
		Email: email, OldPassword: oldPassword, NewPassword: newPassword,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Msg, nil
}

func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var out dto.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e dto.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&e); err == nil {
			apiErr.Msg = e.Msg
			apiErr.Fields = e.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
