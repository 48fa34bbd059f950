package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "finance:session:"

// RedisConfig holds Redis session store configuration.
type RedisConfig struct {
	// Client is an existing Redis client. If provided, Addr, Password and DB are ignored.
	Client redis.UniversalClient

	Addr     string
	Password string
	DB       int
}

// RedisStore keeps sessions as JSON values whose key TTL tracks the idle
// lifetime. Resolve rewrites the value and resets the TTL.
type RedisStore struct {
	client redis.UniversalClient
	maxAge time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(cfg *RedisConfig, opts ...Option) *RedisStore {
	client := cfg.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	o := buildOptions(opts)
	return &RedisStore{client: client, maxAge: o.maxAge, now: o.now}
}

// Ping verifies the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Create(ctx context.Context, user models.UserView) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	data, err := json.Marshal(&models.Session{
		Token:          token,
		User:           user,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, keyPrefix+token, data, s.maxAge).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (*models.UserView, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	key := keyPrefix + token

	sess, err := s.get(ctx, key)
	if err != nil || sess == nil {
		return nil, false, err
	}
	now := s.now()
	if sess.Expired(now, s.maxAge) {
		s.client.Del(ctx, key)
		return nil, false, nil
	}

	sess.LastAccessedAt = now
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, false, err
	}
	// SetXX so a concurrent logout is not undone.
	stored, err := s.client.SetXX(ctx, key, data, s.maxAge).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to refresh session: %w", err)
	}
	if !stored {
		return nil, false, nil
	}
	return &sess.User, true, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// SweepExpired catches sessions whose TTL outlived maxAge, for example after
// the configured max age was shortened.
func (s *RedisStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now()
	removed := 0
	err := s.scan(ctx, func(key string) error {
		sess, err := s.get(ctx, key)
		if err != nil || sess == nil {
			return err
		}
		if !sess.Expired(now, maxAge) {
			return nil
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		return nil
	})
	return removed, err
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.scan(ctx, func(string) error {
		count++
		return nil
	})
	return count, err
}

func (s *RedisStore) get(ctx context.Context, key string) (*models.Session, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}
