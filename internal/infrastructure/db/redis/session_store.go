package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

const sessionKeyPrefix = "session:"

// SessionStore persists session records in Redis, one key per token. The key
// TTL matches the record's expiry, so Redis reaps sessions the resolver
// never revisits; the resolver still checks expiry itself, the TTL is a
// backstop, not the authority.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Find loads a session record by token.
func (s *SessionStore) Find(ctx context.Context, token string) (*domain.SessionRecord, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("session find: %w", err)
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		// An undecodable record is as good as absent; drop it.
		_ = s.client.Del(ctx, s.key(token)).Err()
		return nil, domain.ErrSessionNotFound
	}
	return &record, nil
}

// Insert stores a new record with a TTL matching its expiry. SET NX makes a
// token collision fail loudly instead of silently rebinding a live session.
func (s *SessionStore) Insert(ctx context.Context, record *domain.SessionRecord) error {
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session insert: record already expired")
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session insert: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(record.Token), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("session insert: %w", err)
	}
	if !ok {
		return fmt.Errorf("session insert: token already exists")
	}
	return nil
}

// Delete removes a record; deleting an absent token is a no-op.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *SessionStore) key(token string) string {
	return sessionKeyPrefix + token
}
