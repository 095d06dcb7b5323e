package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore provides a Redis-backed implementation of the Store interface.
// Records are stored as JSON entries in per-session lists, so append order
// is preserved and reads return the list as written. Suitable for
// distributed systems and production deployments.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for session record lists.
// After this duration, a session's records are automatically deleted.
// Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "voicebridge".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed record store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTLHours * time.Hour,
		prefix: "voicebridge",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// AppendExecution appends a tool execution record to the session's list.
// Uses a pipeline to batch the RPUSH and TTL refresh into one round-trip.
func (s *RedisStore) AppendExecution(ctx context.Context, rec *ExecutionRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if rec.SessionID == "" {
		return ErrInvalidSession
	}
	return s.appendJSON(ctx, s.executionKey(rec.SessionID), rec)
}

// AppendTurn appends a finalized conversation turn to the session's list.
func (s *RedisStore) AppendTurn(ctx context.Context, rec *TurnRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if rec.SessionID == "" {
		return ErrInvalidSession
	}
	return s.appendJSON(ctx, s.turnKey(rec.SessionID), rec)
}

// Executions returns all execution records for a session in append order.
func (s *RedisStore) Executions(ctx context.Context, sessionID string) ([]ExecutionRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	entries, err := s.client.LRange(ctx, s.executionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	recs := make([]ExecutionRecord, 0, len(entries))
	for _, entry := range entries {
		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Turns returns all turn records for a session in append order.
func (s *RedisStore) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	entries, err := s.client.LRange(ctx, s.turnKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	recs := make([]TurnRecord, 0, len(entries))
	for _, entry := range entries {
		var rec TurnRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) appendJSON(ctx context.Context, key string, rec interface{}) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (s *RedisStore) executionKey(sessionID string) string {
	return fmt.Sprintf("%s:exec:%s", s.prefix, sessionID)
}

func (s *RedisStore) turnKey(sessionID string) string {
	return fmt.Sprintf("%s:turn:%s", s.prefix, sessionID)
}
