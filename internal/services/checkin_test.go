package services

import (
	"context"
	"testing"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIn_PromotesWhenLastUnitArrives(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.addBooking(newBooking("b1", models.KindHavan, models.StatusConfirmed, "A1", "A2", "A3"))
	_, err := e.attendance.EnsureInitialized(ctx, "b1", models.KindHavan, nil)
	require.NoError(t, err)

	for _, unit := range []string{"A1", "A2"} {
		res, err := e.checkin.SetUnit(ctx, "b1", models.KindHavan, unit, models.AttendancePresent, "", admin)
		require.NoError(t, err)
		assert.False(t, res.Promoted)
		assert.False(t, res.Summary.AllPresent)
	}

	res, err := e.checkin.SetUnit(ctx, "b1", models.KindHavan, "A3", models.AttendancePresent, "", admin)
	require.NoError(t, err)

	assert.True(t, res.Summary.AllPresent)
	assert.True(t, res.Promoted)
	assert.True(t, res.Participated)
	assert.True(t, e.store.booking("b1").Participated)
	assert.Equal(t, "Asha", e.store.booking("b1").ParticipatedBy)
}

func TestCheckIn_BulkPromotion(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.addBooking(newBooking("b1", models.KindStall, models.StatusConfirmed, "S1", "S2"))

	res, err := e.checkin.SetMany(ctx, "b1", models.KindStall, []models.UnitUpdate{
		{UnitID: "S1", Status: models.AttendancePresent},
		{UnitID: "S2", Status: models.AttendancePresent},
	}, admin)
	require.NoError(t, err)

	assert.True(t, res.Promoted)
	assert.Equal(t, []models.AuditAction{models.ActionAttendanceBulk, models.ActionMarkParticipated}, e.store.auditActions())
}

func TestCheckIn_NoPromotionWhenAlreadyParticipated(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.addBooking(newBooking("b1", models.KindShow, models.StatusConfirmed, "A1"))
	_, err := e.lifecycle.MarkParticipated(ctx, "b1", admin)
	require.NoError(t, err)

	res, err := e.checkin.SetUnit(ctx, "b1", models.KindShow, "A1", models.AttendancePresent, "re-scan", admin)
	require.NoError(t, err)

	assert.False(t, res.Promoted)
	assert.True(t, res.Participated)
}

func TestCheckIn_RejectedPromotionIsAWarning(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.addBooking(newBooking("b1", models.KindShow, models.StatusPending, "A1"))

	res, err := e.checkin.SetUnit(ctx, "b1", models.KindShow, "A1", models.AttendancePresent, "", admin)
	require.NoError(t, err)

	assert.False(t, res.Promoted)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], status.ErrPartialFailure)
	assert.ErrorIs(t, res.Warnings[0], status.ErrInvalidTransition)
	assert.Equal(t, models.AttendancePresent, e.store.unitStatus("b1", "A1"))
}
