package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var _ Store = (*RedisStore)(nil)

// RedisStore persists the credentials of one browsing context under a session key in Redis,
// so tabs running in different processes read the same pair.
type RedisStore struct {
	rdb             redis.UniversalClient
	sessionKey      string
	tokenKey        string
	refreshTokenKey string
	maxAge          time.Duration
}

// NewRedisStore stores keys as "<sessionKey>:<tokenKey>" with a maxAge TTL.
func NewRedisStore(rdb redis.UniversalClient, sessionKey, tokenKey, refreshTokenKey string, maxAge time.Duration) *RedisStore {
	return &RedisStore{
		rdb:             rdb,
		sessionKey:      sessionKey,
		tokenKey:        tokenKey,
		refreshTokenKey: refreshTokenKey,
		maxAge:          maxAge,
	}
}

func (s *RedisStore) key(name string) string {
	return s.sessionKey + ":" + name
}

func (s *RedisStore) Token(ctx context.Context) (*oauth2.Token, error) {
	vals, err := s.rdb.MGet(ctx, s.key(s.tokenKey), s.key(s.refreshTokenKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("[RedisStore Token] mget: %w", err)
	}
	access, _ := vals[0].(string)
	refresh, _ := vals[1].(string)
	return noSession(NewToken(access, refresh))
}

func (s *RedisStore) SetToken(ctx context.Context, tok *oauth2.Token) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(s.tokenKey), tok.AccessToken, s.maxAge)
		pipe.Set(ctx, s.key(s.refreshTokenKey), tok.RefreshToken, s.maxAge)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[RedisStore SetToken] %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key(s.tokenKey), s.key(s.refreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("[RedisStore Clear] %w", err)
	}
	return nil
}
