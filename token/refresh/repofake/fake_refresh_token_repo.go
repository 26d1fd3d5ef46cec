package refreshrepofake

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo keeps records in memory for a single API instance and for tests.
type FakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]refresh.StoredRefreshToken
	latest map[string]string
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]refresh.StoredRefreshToken),
		latest: make(map[string]string),
	}
}

// Save stores rt as its user's live token.
func (r *FakeRefreshTokenRepo) Save(rt *refresh.StoredRefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[rt.Token] = *rt
	r.latest[rt.UserID] = rt.Token
	return nil
}

func (r *FakeRefreshTokenRepo) Delete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "[FakeRefreshTokenRepo Delete]")
	}
	delete(r.tokens, token)
	if r.latest[rt.UserID] == token {
		delete(r.latest, rt.UserID)
	}
	return nil
}

func (r *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(token)
}

func (r *FakeRefreshTokenRepo) ForUser(userID string) (*refresh.StoredRefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.latest[userID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "[FakeRefreshTokenRepo ForUser] user %s", userID)
	}
	return r.get(token)
}

func (r *FakeRefreshTokenRepo) get(token string) (*refresh.StoredRefreshToken, error) {
	rt, ok := r.tokens[token]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "[FakeRefreshTokenRepo Get]")
	}
	return &rt, nil
}
