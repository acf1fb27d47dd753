package services

import (
	"context"
	"errors"
	"testing"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLedger_ReleaseOwnHolds(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.hold(models.KindShow, "show-1", "A1", "b1")
	e.store.hold(models.KindShow, "show-1", "A2", "b1")

	res, err := e.ledger.Release(ctx, models.KindShow, "show-1", []string{"A1", "A2"}, "b1")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Released)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, e.store.holder(models.KindShow, "show-1", "A1"))
	assert.Empty(t, e.store.holder(models.KindShow, "show-1", "A2"))
	assert.Equal(t, []string{"A1", "A2"}, e.mirror.cleared)
}

func TestInventoryLedger_SecondReleaseSkips(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.store.hold(models.KindHavan, "2026-03-15/morning", "A1", "bookingX")

	first, err := e.ledger.Release(ctx, models.KindHavan, "2026-03-15/morning", []string{"A1"}, "bookingX")
	require.NoError(t, err)
	second, err := e.ledger.Release(ctx, models.KindHavan, "2026-03-15/morning", []string{"A1"}, "bookingX")
	require.NoError(t, err)

	assert.Equal(t, ReleaseResult{Released: 1, ReleasedUnits: []string{"A1"}}, first)
	assert.Equal(t, ReleaseResult{Released: 0, Skipped: 1}, second)
}

func TestInventoryLedger_LeavesOtherHoldersAlone(t *testing.T) {
	e := newEngine()
	e.store.hold(models.KindStall, "expo", "S1", "b1")
	e.store.hold(models.KindStall, "expo", "S2", "b2")

	res, err := e.ledger.Release(context.Background(), models.KindStall, "expo", []string{"S1", "S2"}, "b1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Released)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "b2", e.store.holder(models.KindStall, "expo", "S2"))
}

func TestInventoryLedger_ScopeIsPartOfTheHold(t *testing.T) {
	e := newEngine()
	e.store.hold(models.KindHavan, "2026-03-15/morning", "A1", "b1")

	res, err := e.ledger.Release(context.Background(), models.KindHavan, "2026-03-15/evening", []string{"A1"}, "b1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "b1", e.store.holder(models.KindHavan, "2026-03-15/morning", "A1"))
}

func TestInventoryLedger_DelegateHasNoInventory(t *testing.T) {
	e := newEngine()

	_, err := e.ledger.Release(context.Background(), models.KindDelegate, "conf", []string{"D1"}, "b1")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestInventoryLedger_MirrorFailureIsNotAnError(t *testing.T) {
	e := newEngine()
	e.mirror.err = errors.New("redis down")
	e.store.hold(models.KindShow, "show-1", "A1", "b1")

	res, err := e.ledger.Release(context.Background(), models.KindShow, "show-1", []string{"A1"}, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Released)
}

func TestInventoryLedger_LookupFailureRollsBack(t *testing.T) {
	e := newEngine()
	e.store.hold(models.KindShow, "show-1", "A1", "b1")
	e.store.failHold = errors.New("query failed")

	_, err := e.ledger.Release(context.Background(), models.KindShow, "show-1", []string{"A1"}, "b1")
	assert.Error(t, err)

	e.store.failHold = nil
	assert.Equal(t, "b1", e.store.holder(models.KindShow, "show-1", "A1"))
	assert.Empty(t, e.mirror.cleared)
}
