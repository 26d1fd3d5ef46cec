// Package refresh issues, checks and rotates the opaque refresh tokens of the reference API.
package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	length int
	expiry time.Duration

	// serialises rotations so a token is only ever redeemed once
	mu sync.Mutex
}

// NewManager creates a manager issuing tokens of length random bytes that expire after expiry.
func NewManager(repo Repo, length int, expiry time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		length: length,
		expiry: expiry,
	}
}

// Create issues a refresh token for userID, replacing the one it held (one refresh token per user).
func (m *Manager) Create(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(userID)
}

// Rotate redeems token and returns the record it belonged to together with its replacement.
// Unknown, already redeemed or expired tokens yield ErrInvalidRefreshToken.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.repo.Get(token)
	if err != nil {
		return nil, "", errors.ErrInvalidRefreshToken
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, "", fmt.Errorf("[Manager Rotate] failed to delete refresh token: %w", err)
	}
	if m.IsExpired(stored) {
		return nil, "", errors.Wrapf(errors.ErrInvalidRefreshToken, "[Manager Rotate] expired")
	}

	next, err := m.create(stored.UserID)
	if err != nil {
		return nil, "", err
	}
	return stored, next, nil
}

// Delete revokes token.
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(token)
}

// IsExpired reports whether rt is older than the configured expiry. Zero never expires.
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.expiry > 0 && NowTimeFunc().Sub(rt.IssuedAt) > m.expiry
}

func (m *Manager) create(userID string) (string, error) {
	if existing, err := m.repo.ForUser(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Save(&StoredRefreshToken{
		Token:    tokenStr,
		UserID:   userID,
		IssuedAt: NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}
