package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 10*time.Second)
	locker.newToken = func() string { return "token-1" }

	mock.ExpectSetNX("booking:lock:b1", "token-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(unlockScript, []string{"booking:lock:b1"}, "token-1").SetVal(int64(1))

	release, err := locker.Acquire(context.Background(), "b1")
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Busy(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 10*time.Second)
	locker.newToken = func() string { return "token-2" }

	mock.ExpectSetNX("booking:lock:b1", "token-2", 10*time.Second).SetVal(false)

	_, err := locker.Acquire(context.Background(), "b1")
	assert.ErrorIs(t, err, status.ErrBookingBusy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, time.Second)
	locker.newToken = func() string { return "token-3" }

	mock.ExpectSetNX("booking:lock:b1", "token-3", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.Acquire(context.Background(), "b1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, status.ErrBookingBusy)
}

func TestLifecycle_BusyBookingIsRejected(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 10*time.Second)
	locker.newToken = func() string { return "token-4" }

	store := newMemStore()
	store.addBooking(newBooking("b1", models.KindShow, models.StatusPending))
	deps := Deps{Store: store, Locker: locker, Now: fixedNow}
	lifecycle := NewLifecycleController(deps, NewInventoryLedger(store, nil, nil, nil), NewAttendanceTracker(deps))

	mock.ExpectSetNX("booking:lock:b1", "token-4", 10*time.Second).SetVal(false)

	_, err := lifecycle.Confirm(context.Background(), "b1", admin)
	assert.ErrorIs(t, err, status.ErrBookingBusy)
	assert.Equal(t, models.StatusPending, store.booking("b1").Status)
}

func TestSeatCache_ClearUnits(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewSeatCache(db)

	mock.ExpectEval(clearSeatScript, []string{"seat:show:show-1:A1"}, "b1").SetVal(int64(1))
	mock.ExpectEval(clearSeatScript, []string{"seat:show:show-1:A2"}, "b1").SetVal(int64(0))

	err := cache.ClearUnits(context.Background(), models.KindShow, "show-1", "b1", []string{"A1", "A2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatCache_ClearUnitsKeepsGoingAfterError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewSeatCache(db)

	mock.ExpectEval(clearSeatScript, []string{"seat:stall:expo:S1"}, "b1").SetErr(errors.New("timeout"))
	mock.ExpectEval(clearSeatScript, []string{"seat:stall:expo:S2"}, "b1").SetVal(int64(1))

	err := cache.ClearUnits(context.Background(), models.KindStall, "expo", "b1", []string{"S1", "S2"})
	assert.EqualError(t, err, "timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatCache_Availability(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewSeatCache(db)

	mock.ExpectHGet("seat:havan:2026-03-15:A1", "status").SetVal("held")
	mock.ExpectHGet("seat:havan:2026-03-15:A2", "status").RedisNil()

	got, err := cache.Availability(context.Background(), models.KindHavan, "2026-03-15", []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": "held", "A2": "available"}, got)
}
