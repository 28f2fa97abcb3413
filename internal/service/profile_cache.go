package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheSessionMismatch is returned when a profile for a different user is
// written into a session's cache.
var ErrCacheSessionMismatch = errors.New("profile does not belong to the session user")

const (
	sessionUserKeyFmt    = "session:%s:user_id"
	sessionProfileKeyFmt = "session:%s:profile"
)

// RedisProfileCache keeps one profile per login session in Redis.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) ForSession(sessionID string) domainRepo.SessionProfileStore {
	return &redisSessionStore{
		client:     c.client,
		ttl:        c.ttl,
		userKey:    fmt.Sprintf(sessionUserKeyFmt, sessionID),
		profileKey: fmt.Sprintf(sessionProfileKeyFmt, sessionID),
	}
}

type redisSessionStore struct {
	client     *redis.Client
	ttl        time.Duration
	userKey    string
	profileKey string
}

func (s *redisSessionStore) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, s.userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// A corrupt binding is treated as no binding; the next Bind replaces it.
		return uuid.Nil, nil
	}
	return id, nil
}

func (s *redisSessionStore) Bind(ctx context.Context, userID uuid.UUID) error {
	return s.client.Set(ctx, s.userKey, userID.String(), s.ttl).Err()
}

func (s *redisSessionStore) Load(ctx context.Context) (*entity.UserProfile, error) {
	raw, err := s.client.Get(ctx, s.profileKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var profile entity.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		// Undecodable cache entries are dropped, not surfaced.
		_ = s.client.Del(ctx, s.profileKey).Err()
		return nil, nil
	}
	return &profile, nil
}

func (s *redisSessionStore) Store(ctx context.Context, profile *entity.UserProfile) error {
	bound, err := s.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	if bound != profile.ID {
		return ErrCacheSessionMismatch
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.client.Set(ctx, s.profileKey, raw, s.ttl).Err()
}

// UpdateFavorites rewrites only the favorite set of the cached profile.
func (s *redisSessionStore) UpdateFavorites(ctx context.Context, favorites []uuid.UUID) error {
	profile, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		return nil
	}
	profile.FavoriteDoctorIDs = favorites
	return s.Store(ctx, profile)
}

func (s *redisSessionStore) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.userKey, s.profileKey).Err()
}
