package services

import (
	"context"
	"fmt"
	"log/slog"

	"booking-engine/internal/status"
	"booking-engine/models"
	"booking-engine/monitoring"
)

type ReleaseResult struct {
	Released      int      `json:"released"`
	Skipped       int      `json:"skipped"`
	ReleasedUnits []string `json:"released_units,omitempty"`
}

// SeatMirror is the public seat-map cache that shadows the hold ledger.
type SeatMirror interface {
	ClearUnits(ctx context.Context, kind models.Kind, scope, bookingID string, units []string) error
}

// InventoryLedger releases unit holds. Reservation belongs to the public
// booking flow; the ledger only ever removes holds owned by the caller's
// booking, so exactly one holder per unit is preserved.
type InventoryLedger struct {
	store   Store
	mirror  SeatMirror
	monitor *monitoring.Monitor
	log     *slog.Logger
}

func NewInventoryLedger(store Store, mirror SeatMirror, monitor *monitoring.Monitor, logger *slog.Logger) *InventoryLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryLedger{store: store, mirror: mirror, monitor: monitor, log: logger}
}

// Release frees every unit currently held by bookingID in its own
// transaction. Units that are free or held by another booking are skipped.
func (l *InventoryLedger) Release(ctx context.Context, kind models.Kind, scope string, units []string, bookingID string) (ReleaseResult, error) {
	var res ReleaseResult
	err := l.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		res, err = l.ReleaseTx(tx, kind, scope, units, bookingID)
		return err
	})
	if err != nil {
		return ReleaseResult{}, err
	}

	l.AfterRelease(ctx, kind, scope, bookingID, res)
	return res, nil
}

// ReleaseTx is Release inside a caller-owned transaction. The caller must
// invoke AfterRelease once the transaction commits.
func (l *InventoryLedger) ReleaseTx(tx Tx, kind models.Kind, scope string, units []string, bookingID string) (ReleaseResult, error) {
	if !kind.HoldsInventory() {
		return ReleaseResult{}, status.Validation("%s bookings do not hold inventory", kind)
	}

	var res ReleaseResult
	for _, unit := range units {
		holder, err := tx.HoldOf(kind, scope, unit)
		if err != nil {
			return ReleaseResult{}, fmt.Errorf("lookup hold %s: %w", unit, err)
		}
		if holder != bookingID {
			res.Skipped++
			continue
		}
		if err := tx.DeleteHold(kind, scope, unit); err != nil {
			return ReleaseResult{}, fmt.Errorf("release hold %s: %w", unit, err)
		}
		res.Released++
		res.ReleasedUnits = append(res.ReleasedUnits, unit)
	}
	return res, nil
}

// AfterRelease runs the post-commit side effects of a release. Mirror
// failures are logged only; the ledger is the source of truth.
func (l *InventoryLedger) AfterRelease(ctx context.Context, kind models.Kind, scope, bookingID string, res ReleaseResult) {
	l.monitor.TrackInventory(string(kind), "released", res.Released)
	l.monitor.TrackInventory(string(kind), "skipped", res.Skipped)

	if res.Skipped > 0 {
		l.log.Info("Skipped units not held by booking", "booking_id", bookingID, "kind", kind, "skipped", res.Skipped)
	}
	if l.mirror == nil || len(res.ReleasedUnits) == 0 {
		return
	}
	if err := l.mirror.ClearUnits(ctx, kind, scope, bookingID, res.ReleasedUnits); err != nil {
		l.log.Error("Failed to clear seat mirror", "error", err, "booking_id", bookingID, "kind", kind)
	}
}
