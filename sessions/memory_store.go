package sessions

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a cookie-jar-like Store shared by every tab of one browsing context.
// Entries expire after maxAge.
type MemoryStore struct {
	mu              sync.RWMutex
	maxAge          time.Duration
	tokenKey        string
	refreshTokenKey string
	entries         map[string]memoryEntry
}

func NewMemoryStore(tokenKey, refreshTokenKey string, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxAge:          maxAge,
		tokenKey:        tokenKey,
		refreshTokenKey: refreshTokenKey,
		entries:         make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Token(_ context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return noSession(NewToken(s.get(s.tokenKey), s.get(s.refreshTokenKey)))
}

func (s *MemoryStore) SetToken(_ context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := NowTimeFunc().Add(s.maxAge)
	s.entries[s.tokenKey] = memoryEntry{value: tok.AccessToken, expiresAt: expiresAt}
	s.entries[s.refreshTokenKey] = memoryEntry{value: tok.RefreshToken, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, s.tokenKey)
	delete(s.entries, s.refreshTokenKey)
	return nil
}

func (s *MemoryStore) get(key string) string {
	e, ok := s.entries[key]
	if !ok || !NowTimeFunc().Before(e.expiresAt) {
		return ""
	}
	return e.value
}
