// Package session holds live sessions in Redis. Each session is one
// keyed JSON payload plus membership in a per-user set, so a single user
// can be revoked everywhere without scanning the keyspace.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaultra/cardbank/internal/auth/domain"
)

var ErrNotFound = errors.New("session not found")

// Sessions is the session lifecycle used by the auth service.
type Sessions interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	// DeleteAll revokes every session of the user and returns how many
	// were removed.
	DeleteAll(ctx context.Context, userID string) (int, error)
}

// RedisStore implements Sessions on Redis.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string     { return "session:" + id }
func userSetKey(userID string) string { return "user-session:" + userID }

// Create writes the session payload, registers it in the owner's set and
// refreshes the set's TTL, all in one pipelined round trip. The set must
// never outlive its longest session, hence the expire alongside every
// write.
func (s *RedisStore) Create(ctx context.Context, sess domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), payload, s.ttl)
	pipe.SAdd(ctx, userSetKey(sess.UserID), sess.ID)
	pipe.Expire(ctx, userSetKey(sess.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	payload, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, userSetKey(sess.UserID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, userSetKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return len(ids), nil
}

var _ Sessions = (*RedisStore)(nil)
