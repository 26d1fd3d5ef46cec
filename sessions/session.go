package sessions

import (
	"slices"

	"golang.org/x/oauth2"
)

// User is the authenticated principal as seen by the UI: who they are and what they were granted.
type User struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

func (u *User) HasPermission(permission string) bool {
	return u != nil && slices.Contains(u.Permissions, permission)
}

func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// Session is the in-memory copy of the credentials for one tab or one server-rendering request.
// The persisted copy lives in a Store; both encode the same access token once SetToken returns.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// NewToken builds the bearer token pair persisted by a Store.
func NewToken(accessToken, refreshToken string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
}

// FromToken builds the in-memory session for a persisted token pair.
func FromToken(tok *oauth2.Token, user *User) *Session {
	if tok == nil {
		return nil
	}
	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		User:         user,
	}
}

// Token returns the session's credentials as a bearer token pair.
func (s *Session) Token() *oauth2.Token {
	if s == nil {
		return nil
	}
	return NewToken(s.AccessToken, s.RefreshToken)
}
