package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/salesforge-io/salesforge/internal/onboarding"
)

const defaultKeyPrefix = "onboarding-session:"

// RedisStore persists snapshots in redis with the session TTL on the key.
// The SavedAt check on restore guards against a server whose keys outlive
// their intended expiry (e.g. restored from a backup).
type RedisStore struct {
	redis     *redis.Client
	keyPrefix string
	now       func() time.Time
}

var _ onboarding.SessionStore = &RedisStore{}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		redis:     client,
		keyPrefix: defaultKeyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStore) key(userID uuid.UUID) string {
	return s.keyPrefix + userID.String()
}

func (s *RedisStore) Save(ctx context.Context, userID uuid.UUID, session *onboarding.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.key(userID), data, onboarding.SessionTTL).Err()
}

func (s *RedisStore) Restore(ctx context.Context, userID uuid.UUID) (*onboarding.Session, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session onboarding.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil
	}
	if s.now().Sub(session.SavedAt) > onboarding.SessionTTL {
		_ = s.redis.Del(ctx, s.key(userID)).Err()
		return nil, nil
	}
	return &session, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.redis.Del(ctx, s.key(userID)).Err()
}
