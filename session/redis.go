package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chemfalcon/chembot/core"
)

const redisKeyPrefix = "chembot:session:"

// RedisStore persists sessions as JSON documents in Redis. The key TTL
// doubles as the inactivity sweep: every Save refreshes it, so a session
// untouched for the TTL simply disappears.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Interface compliance (compile-time assertion)
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store. A non-positive ttl
// falls back to the default one-day TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads and decodes a session. A missing key maps to ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var sess core.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	return &sess, nil
}

// Save encodes the session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *core.Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	if err := s.client.Set(ctx, s.key(sess.ID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sess.ID, err)
	}

	return nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}
