package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ Opener = (*RedisOpener)(nil)

// RedisOpener opens endpoints backed by Redis PUBLISH/SUBSCRIBE, for tabs living in
// different processes. Every endpoint tags its messages with its own origin id and
// ignores messages carrying that id.
type RedisOpener struct {
	rdb redis.UniversalClient
	log zerolog.Logger
}

func NewRedisOpener(rdb redis.UniversalClient) *RedisOpener {
	return &RedisOpener{rdb: rdb, log: log.Logger}
}

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Open subscribes before returning, so every message published afterwards is seen.
func (o *RedisOpener) Open(ctx context.Context, name string) (Channel, error) {
	ps := o.rdb.Subscribe(ctx, name)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("[RedisOpener Open] subscribe %s: %w", name, err)
	}

	ch := &redisChannel{
		rdb:    o.rdb,
		ps:     ps,
		name:   name,
		origin: uuid.New().String(),
		log:    o.log,
	}
	go ch.dispatch(ps.Channel())
	return ch, nil
}

type redisChannel struct {
	rdb    redis.UniversalClient
	ps     *redis.PubSub
	name   string
	origin string
	log    zerolog.Logger

	mu      sync.RWMutex
	handler func(Event)
	closed  bool
}

func (c *redisChannel) Name() string {
	return c.name
}

func (c *redisChannel) Post(ctx context.Context, ev Event) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(envelope{Origin: c.origin, Event: ev})
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, c.name, payload).Err(); err != nil {
		return fmt.Errorf("[redisChannel Post] %w", err)
	}
	return nil
}

func (c *redisChannel) Listen(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *redisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.ps.Close()
}

func (c *redisChannel) dispatch(msgs <-chan *redis.Message) {
	for msg := range msgs {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			c.log.Err(err).Str("channel", c.name).Msg("Broadcast: malformed message")
			continue
		}
		if env.Origin == c.origin {
			continue
		}

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(env.Event)
		}
	}
}
