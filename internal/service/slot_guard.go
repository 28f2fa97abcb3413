package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const RedisSlotKeyPrefix = "appointment:slot:"

// RedisSlotGuard claims doctor slots with SETNX so concurrent bookings of the
// same slot are turned away before reaching the database.
type RedisSlotGuard struct {
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisSlotGuard(redisClient *redis.Client, log *logrus.Logger) *RedisSlotGuard {
	return &RedisSlotGuard{redisClient: redisClient, log: log}
}

func slotKey(doctorID uuid.UUID, slotAt time.Time) string {
	return fmt.Sprintf("%s%s:%d", RedisSlotKeyPrefix, doctorID, slotAt.UTC().Unix())
}

// Reserve returns false when the slot is already claimed.
func (g *RedisSlotGuard) Reserve(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) (bool, error) {
	ok, err := g.redisClient.SetNX(ctx, slotKey(doctorID, slotAt), 1, calculateTTL(slotAt)).Result()
	if err != nil {
		g.log.Warnf("Failed to reserve slot for doctor %s: %+v", doctorID, err)
		return false, fmt.Errorf("reserve slot for doctor %s: %w", doctorID, err)
	}
	return ok, nil
}

func (g *RedisSlotGuard) Release(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) error {
	if err := g.redisClient.Del(ctx, slotKey(doctorID, slotAt)).Err(); err != nil {
		g.log.Warnf("Failed to release slot for doctor %s: %+v", doctorID, err)
		return fmt.Errorf("release slot for doctor %s: %w", doctorID, err)
	}
	return nil
}

// calculateTTL returns TTL: 24 hours after the slot
func calculateTTL(slotAt time.Time) time.Duration {
	ttl := time.Until(slotAt.Add(24 * time.Hour))
	if ttl <= 0 {
		// Past slot - short TTL for cleanup
		return 1 * time.Minute
	}
	return ttl
}
