// Package redisrepo keeps refresh token records in Redis so several API instances share them.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/redis/go-redis/v9"
)

var _ refresh.Repo = (*RedisRefreshTokenRepo)(nil)

const opTimeout = 3 * time.Second

type RedisRefreshTokenRepo struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New stores records under prefix. Records expire after ttl; zero keeps them until deleted.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisRefreshTokenRepo {
	return &RedisRefreshTokenRepo{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisRefreshTokenRepo) tokenKey(token string) string {
	return r.prefix + ":token:" + token
}

func (r *RedisRefreshTokenRepo) userKey(userID string) string {
	return r.prefix + ":user:" + userID
}

func (r *RedisRefreshTokenRepo) Save(rt *refresh.StoredRefreshToken) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	b, err := json.Marshal(rt)
	if err != nil {
		return fmt.Errorf("[RedisRefreshTokenRepo Save] %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(rt.Token), b, r.ttl)
		pipe.Set(ctx, r.userKey(rt.UserID), rt.Token, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[RedisRefreshTokenRepo Save] %w", err)
	}
	return nil
}

func (r *RedisRefreshTokenRepo) Delete(token string) error {
	rt, err := r.Get(token)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	current, err := r.rdb.Get(ctx, r.userKey(rt.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("[RedisRefreshTokenRepo Delete] %w", err)
	}
	keys := []string{r.tokenKey(token)}
	if current == token {
		keys = append(keys, r.userKey(rt.UserID))
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("[RedisRefreshTokenRepo Delete] %w", err)
	}
	return nil
}

func (r *RedisRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	b, err := r.rdb.Get(ctx, r.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisRefreshTokenRepo Get] %w", err)
	}

	var rt refresh.StoredRefreshToken
	if err := json.Unmarshal(b, &rt); err != nil {
		return nil, fmt.Errorf("[RedisRefreshTokenRepo Get] corrupt record: %w", err)
	}
	return &rt, nil
}

func (r *RedisRefreshTokenRepo) ForUser(userID string) (*refresh.StoredRefreshToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	token, err := r.rdb.Get(ctx, r.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisRefreshTokenRepo ForUser] %w", err)
	}
	return r.Get(token)
}
