// Package sdk is the Go client of the Taskify backend. It covers the four
// capability groups a task client needs: auth, query, mutate and the
// change feed.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/example/taskify/domain/user"
	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Client is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *fasthttp.Client
	dialer   *websocket.Dialer
	sessions SessionStore
	logger   *slog.Logger
	now      func() time.Time

	// refreshes collapses concurrent token refreshes into one request.
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the fasthttp client used for REST calls.
func WithHTTPClient(client *fasthttp.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithDialer replaces the websocket dialer used by Subscribe.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// WithSessionStore sets where the signed-in session is kept. The default
// keeps it in memory.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) {
		c.sessions = store
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the backend at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be an absolute http or https URL", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL: u,
		http: &fasthttp.Client{
			Name:         "taskify-sdk",
			ReadTimeout:  defaultTimeout,
			WriteTimeout: defaultTimeout,
		},
		dialer:   &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		sessions: NewMemorySessionStore(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do performs one JSON round trip. A non-empty token is sent as a bearer
// credential; out may be nil when the reply body is not needed.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL.String() + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return decodeError(status, resp.Body())
	}
	if out == nil || status == fasthttp.StatusNoContent || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// doAuthorized is do with the stored session. A 401 means the access token
// has expired, so the session is refreshed and the request is sent once more
// with the new token. That is re-authentication, not a retry: any other
// failure, and a 401 after the refresh, is returned as is.
func (c *Client) doAuthorized(ctx context.Context, method, path string, in, out any) error {
	session, err := c.currentSession(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, session.AccessToken, in, out)
	if !IsUnauthorized(err) {
		return err
	}

	session, err = c.refreshSession(ctx, session.AccessToken)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, session.AccessToken, in, out)
}

// currentSession loads the stored session, refreshing it first when the
// access token has already expired.
func (c *Client) currentSession(ctx context.Context) (user.Session, error) {
	session, ok, err := c.sessions.Load()
	if err != nil {
		return user.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return user.Session{}, ErrNoSession
	}
	if session.Expired(c.now()) {
		return c.refreshSession(ctx, session.AccessToken)
	}
	return session, nil
}

// refreshSession renews the session whose access token was stale. If another
// caller already replaced that token the stored session is returned as is.
func (c *Client) refreshSession(ctx context.Context, stale string) (user.Session, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		current, ok, err := c.sessions.Load()
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if !ok {
			return nil, ErrNoSession
		}
		if current.AccessToken != stale && !current.Expired(c.now()) {
			return current, nil
		}

		var resp sessionResponse
		err = c.do(ctx, fasthttp.MethodPost, "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: current.RefreshToken}, &resp)
		if err != nil {
			c.logger.Warn("Token refresh failed", "error", err)
			if IsUnauthorized(err) {
				if clearErr := c.sessions.Clear(); clearErr != nil {
					c.logger.Warn("Failed to clear expired session", "error", clearErr)
				}
				return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
			}
			return nil, fmt.Errorf("refresh session: %w", err)
		}

		session := resp.toSession(c.now())
		if err := c.sessions.Save(session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		c.logger.Debug("Session refreshed", "user_id", session.User.ID)
		return session, nil
	})
	if err != nil {
		return user.Session{}, err
	}
	return v.(user.Session), nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	}
	return apiErr
}
