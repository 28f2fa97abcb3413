package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const invitationKeyPrefix = "invitation:"

// RedisInvitationStore records issued doctor invitations by token id.
type RedisInvitationStore struct {
	client *redis.Client
}

func NewRedisInvitationStore(client *redis.Client) *RedisInvitationStore {
	return &RedisInvitationStore{client: client}
}

func (s *RedisInvitationStore) Save(ctx context.Context, tokenID string, doctorID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, invitationKeyPrefix+tokenID, doctorID.String(), ttl).Err()
}

// Consume uses GETDEL so two redemptions of one code cannot both succeed.
func (s *RedisInvitationStore) Consume(ctx context.Context, tokenID string) (uuid.UUID, bool, error) {
	raw, err := s.client.GetDel(ctx, invitationKeyPrefix+tokenID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return doctorID, true, nil
}
