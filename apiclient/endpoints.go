package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/sessions"
	"golang.org/x/oauth2"
)

// API routes and the expiry marker of the backend contract
const (
	PathSessions = "/sessions"
	PathRefresh  = "/refresh"
	PathMe       = "/me"

	// CodeTokenExpired marks a 401 that can be recovered by refreshing the access token
	CodeTokenExpired = "token.expired"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
	Roles        []string `json:"roles"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// ErrorResponse is the body of every API error; Code carries the expiry marker.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

var _ Refresher = (*EndpointRefresher)(nil)

// EndpointRefresher calls the refresh endpoint through a bare client, bypassing
// the bearer header and the expiry handling of Client.
type EndpointRefresher struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (r *EndpointRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var out RefreshResponse
	if err := postBare(ctx, r.HTTPClient, r.BaseURL+PathRefresh, RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, fmt.Errorf("[EndpointRefresher Refresh] %w", err)
	}
	return sessions.NewToken(out.Token, out.RefreshToken), nil
}

// Login posts the credentials to the sessions endpoint. The login call carries no bearer token
// and is not subject to expiry handling.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var out LoginResponse
	if err := postBare(ctx, c.httpClient, c.baseURL.String()+PathSessions, creds, &out); err != nil {
		return nil, fmt.Errorf("[Client Login] %w", err)
	}
	return &out, nil
}

// Me loads the current user with the session's access token.
func (c *Client) Me(ctx context.Context) (*sessions.User, error) {
	var user sessions.User
	if err := c.GetJSON(ctx, PathMe, &user); err != nil {
		return nil, fmt.Errorf("[Client Me] %w", err)
	}
	return &user, nil
}

func postBare(ctx context.Context, hc *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return newStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
