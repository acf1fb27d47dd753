package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDownstream = errors.New("broker unreachable")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail() (any, error)    { return nil, errDownstream }
func succeed() (any, error) { return "ok", nil }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreakerWithSettings("test", Settings{
		MaxRequests:  2,
		MinRequests:  4,
		Interval:     time.Minute,
		Timeout:      10 * time.Second,
		FailureRatio: 0.5,
	})
	cb.now = clock.now
	cb.expiry = clock.t.Add(time.Minute)
	return cb
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("rabbitmq:booking.lifecycle")

	assert.Equal(t, "rabbitmq:booking.lifecycle", cb.name)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0.6, cb.settings.FailureRatio)
}

func TestCircuitBreaker_ExecuteCounts(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Now()})
	ctx := context.Background()

	result, err := cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	_, err = cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errDownstream)

	counts := cb.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	// Below MinRequests the breaker stays closed regardless of ratio.
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(ctx, fail)
	}
	assert.Equal(t, StateClosed, cb.State())

	_, _ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrOpenState)

	clock.advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(ctx, fail)
	}
	clock.advance(11 * time.Second)

	_, err := cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errDownstream)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IntervalResetsCounts(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(ctx, fail)
	}
	clock.advance(2 * time.Minute)

	_, _ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().Requests)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.Execute(ctx, func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint32(0), cb.Counts().Requests)
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Now()})

	assert.Panics(t, func() {
		_, _ = cb.Execute(context.Background(), func() (any, error) {
			panic("boom")
		})
	})
	assert.Equal(t, uint32(1), cb.Counts().TotalFailures)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cb.Execute(ctx, succeed)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(50), cb.Counts().TotalSuccesses)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}

func TestRedisHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, RedisHealthCheck(context.Background(), db))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	err := RedisHealthCheck(context.Background(), db)
	assert.ErrorContains(t, err, "redis health check failed")
	assert.ErrorContains(t, err, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}
