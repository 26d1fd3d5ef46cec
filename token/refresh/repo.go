package refresh

import "time"

// StoredRefreshToken is the server-side record behind an opaque refresh token.
// The client only ever receives Token.
type StoredRefreshToken struct {
	Token    string    `json:"token"`
	UserID   string    `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Repo keeps at most one live refresh token per user. Lookups of unknown tokens
// or users return errors.ErrNotFound.
type Repo interface {
	Save(rt *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	ForUser(userID string) (*StoredRefreshToken, error)
}
