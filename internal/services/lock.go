package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booking-engine/internal/status"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes operations on one booking across admin sessions.
type Locker interface {
	Acquire(ctx context.Context, bookingID string) (release func(), err error)
}

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type RedisLocker struct {
	Redis    *redis.Client
	TTL      time.Duration
	newToken func() string
}

func NewRedisLocker(redisClient *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{Redis: redisClient, TTL: ttl, newToken: uuid.NewString}
}

func lockKey(bookingID string) string {
	return fmt.Sprintf("booking:lock:%s", bookingID)
}

// Acquire fails fast with status.ErrBookingBusy when another session owns
// the lock. The returned release only deletes the key if it still carries
// this session's token.
func (l *RedisLocker) Acquire(ctx context.Context, bookingID string) (func(), error) {
	key := lockKey(bookingID)
	token := l.newToken()

	ok, err := l.Redis.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		slog.Error("Failed to acquire booking lock", "error", err, "booking_id", bookingID)
		return nil, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return nil, status.ErrBookingBusy
	}

	return func() {
		if err := l.Redis.Eval(context.WithoutCancel(ctx), unlockScript, []string{key}, token).Err(); err != nil {
			slog.Error("Failed to release booking lock", "error", err, "booking_id", bookingID)
		}
	}, nil
}
