// Package apiclient issues API calls with the session's bearer credential attached and
// recovers from expired credentials by refreshing them once and replaying the blocked calls.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Mode tells the client where it runs, which decides how unrecoverable 401s end.
type Mode int

const (
	// ModeTab runs inside a UI tab: hard authorization failures sign the user out everywhere.
	ModeTab Mode = iota
	// ModeServer runs while rendering one inbound request: hard failures surface as ErrAuthenticationRequired.
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "tab"
}

// SignOuter performs the global logout of a tab.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Client is the authenticated API client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      sessions.Store
	mode       Mode
	signOut    SignOuter
	refresher  Refresher
	timeout    time.Duration
	log        zerolog.Logger
	metrics    *metrics.Metrics
	refresh    *RefreshCoordinator
	listeners  []func(tok *oauth2.Token)

	mu           sync.RWMutex
	defaultToken string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMode(mode Mode) Option {
	return func(c *Client) { c.mode = mode }
}

// WithSignOut sets who performs the logout when running in ModeTab.
func WithSignOut(s SignOuter) Option {
	return func(c *Client) { c.signOut = s }
}

// WithRefresher replaces the default refresh endpoint caller.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRefreshListener is told about every token pair obtained by a refresh.
func WithRefreshListener(fn func(tok *oauth2.Token)) Option {
	return func(c *Client) { c.listeners = append(c.listeners, fn) }
}

// New creates a client for baseURL. The default bearer header is initialised from the
// access token persisted in store, if any.
func New(ctx context.Context, baseURL string, store sessions.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[apiclient New] invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		store:      store,
		log:        log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refresher == nil {
		c.refresher = &EndpointRefresher{BaseURL: baseURL, HTTPClient: c.httpClient}
	}

	c.refresh = NewRefreshCoordinator(c.refresher, store,
		CoordinatorMode(c.mode),
		RefreshTimeout(c.timeout),
		CoordinatorLogger(c.log),
		CoordinatorMetrics(c.metrics),
		OnRefreshed(c.refreshed),
		OnRefreshFailure(c.refreshFailed),
	)
	c.defaultToken = sessions.AccessToken(ctx, store)
	return c, nil
}

func (c *Client) Mode() Mode {
	return c.mode
}

// Coordinator exposes the client's refresh state machine.
func (c *Client) Coordinator() *RefreshCoordinator {
	return c.refresh
}

// AccessToken returns the token sent with independent calls.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultToken
}

// SetAccessToken installs the token of a new or restored session (empty after sign out)
// for every later call. The refresh history of the previous session is dropped.
func (c *Client) SetAccessToken(accessToken string) {
	c.setDefaultToken(accessToken)
	c.refresh.Reset()
}

func (c *Client) setDefaultToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultToken = accessToken
}

// NewRequest builds a request for path relative to the base URL with in encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("[Client NewRequest] encoding body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("[Client NewRequest] %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req with the current bearer token. Relative URLs resolve against the base URL.
//
// Responses other than 401 are returned untouched and the caller owns their body.
// A 401 carrying the token.expired code waits for a refresh and returns the replayed response.
// Any other 401 returns ErrAuthorizationDenied after signing out (ModeTab) or
// ErrAuthenticationRequired (ModeServer).
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, fmt.Errorf("[Client Do] buffering body: %w", err)
	}
	return c.send(ctx, req, c.AccessToken(), false)
}

func (c *Client) send(ctx context.Context, req *http.Request, accessToken string, replayed bool) (*http.Response, error) {
	out, err := c.prepare(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	code := errorCode(resp)
	resp.Body.Close()

	if code == CodeTokenExpired && !replayed {
		return c.refresh.Retry(ctx, accessToken, func(ctx context.Context, newToken string) (*http.Response, error) {
			return c.send(ctx, req, newToken, true)
		})
	}

	c.log.Warn().Str("path", out.URL.Path).Str("code", code).Bool("replayed", replayed).Msg("Request unauthorized")
	return nil, c.denied(ctx)
}

// denied ends a request whose 401 cannot be recovered by a refresh.
func (c *Client) denied(ctx context.Context) error {
	if c.mode == ModeServer {
		return ErrAuthenticationRequired
	}
	if c.signOut != nil {
		if err := c.signOut.SignOut(ctx); err != nil {
			c.log.Err(err).Msg("Sign out after unauthorized response failed")
		}
	}
	return ErrAuthorizationDenied
}

func (c *Client) refreshed(tok *oauth2.Token) {
	c.setDefaultToken(tok.AccessToken)
	for _, fn := range c.listeners {
		fn(tok)
	}
}

func (c *Client) refreshFailed(ctx context.Context, _ error) {
	if c.mode != ModeTab || c.signOut == nil {
		return
	}
	if err := c.signOut.SignOut(ctx); err != nil {
		c.log.Err(err).Msg("Sign out after failed refresh failed")
	}
}

func (c *Client) prepare(ctx context.Context, req *http.Request, accessToken string) (*http.Request, error) {
	out := req.Clone(ctx)
	if !out.URL.IsAbs() {
		out.URL = c.baseURL.ResolveReference(out.URL)
		out.Host = ""
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("[Client Do] reading body: %w", err)
		}
		out.Body = body
	}
	if accessToken != "" {
		sessions.NewToken(accessToken, "").SetAuthHeader(out)
	}
	return out, nil
}

// GetJSON sends a GET to path and decodes a 2xx body into out. Other statuses yield a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON sends in as JSON to path and decodes a 2xx body into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return newStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("[Client %s %s] decoding response: %w", method, path, err)
	}
	return nil
}

// bufferBody makes req's body re-readable so a replay can send it again.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	b, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func errorCode(resp *http.Response) string {
	var payload ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Code
}
