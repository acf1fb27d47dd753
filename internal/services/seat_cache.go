package services

import (
	"context"
	"fmt"
	"log/slog"

	"booking-engine/models"

	"github.com/redis/go-redis/v9"
)

// SeatCache is the Redis seat-map mirror read by the public booking pages.
// Each held unit is a hash at seat:{kind}:{scope}:{unit} whose booking_id
// field names the holder.
type SeatCache struct {
	Redis *redis.Client
}

func NewSeatCache(redisClient *redis.Client) *SeatCache {
	return &SeatCache{Redis: redisClient}
}

const clearSeatScript = `
if redis.call("HGET", KEYS[1], "booking_id") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

func seatKey(kind models.Kind, scope, unitID string) string {
	return fmt.Sprintf("seat:%s:%s:%s", kind, scope, unitID)
}

// ClearUnits drops the mirror entries still owned by bookingID. Entries
// re-held by another booking in the meantime are left alone.
func (s *SeatCache) ClearUnits(ctx context.Context, kind models.Kind, scope, bookingID string, units []string) error {
	var firstErr error
	for _, unit := range units {
		err := s.Redis.Eval(ctx, clearSeatScript, []string{seatKey(kind, scope, unit)}, bookingID).Err()
		if err != nil && err != redis.Nil {
			slog.Error("Failed to clear seat", "error", err, "seat_id", unit, "booking_id", bookingID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Availability reports "available" or the mirrored status of each unit.
func (s *SeatCache) Availability(ctx context.Context, kind models.Kind, scope string, units []string) (map[string]string, error) {
	availability := make(map[string]string, len(units))

	for _, unit := range units {
		st, err := s.Redis.HGet(ctx, seatKey(kind, scope, unit), "status").Result()
		if err == redis.Nil {
			availability[unit] = "available"
		} else if err != nil {
			return nil, err
		} else {
			availability[unit] = st
		}
	}

	return availability, nil
}
