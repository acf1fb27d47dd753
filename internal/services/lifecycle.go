package services

import (
	"context"
	"strings"
	"time"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a lifecycle operation. Warnings carry best-effort
// sub-steps that failed without aborting the operation; each wraps
// status.ErrPartialFailure.
type Result struct {
	Booking  *models.Booking `json:"booking"`
	Release  *ReleaseResult  `json:"release,omitempty"`
	Warnings []error         `json:"-"`
}

// LifecycleController validates and applies booking status transitions.
type LifecycleController struct {
	Deps
	ledger     *InventoryLedger
	attendance *AttendanceTracker
}

func NewLifecycleController(deps Deps, ledger *InventoryLedger, attendance *AttendanceTracker) *LifecycleController {
	return &LifecycleController{Deps: deps.withDefaults(), ledger: ledger, attendance: attendance}
}

func (c *LifecycleController) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	var b *models.Booking
	err := c.Store.RunInTx(ctx, func(tx Tx) error {
		var err error
		b, err = tx.GetBooking(bookingID)
		return err
	})
	return b, err
}

func (c *LifecycleController) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, status.Validation("from must not be after to")
	}
	if filter.Limit < 0 {
		return nil, status.Validation("limit must not be negative")
	}
	return c.Store.ListBookings(ctx, filter)
}

func (c *LifecycleController) Confirm(ctx context.Context, bookingID string, actor models.Actor) (*Result, error) {
	return c.mutate(ctx, "confirm", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status != models.StatusPending {
			return nil, status.InvalidTransition("cannot confirm a %s booking", b.Status)
		}
		b.Status = models.StatusConfirmed
		b.UpdatedAt = c.Now().UTC()

		entry := c.audit(actor, models.ActionConfirm, b, nil, "confirmed booking %s", b.ID)
		return &entry, nil
	})
}

// Cancel releases the booking's holds (when asked to) and marks it cancelled
// in the same transaction; a failed release leaves the booking unchanged.
func (c *LifecycleController) Cancel(ctx context.Context, bookingID, reason string, actor models.Actor, releaseUnits bool) (*Result, error) {
	return c.mutate(ctx, "cancel", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		switch b.Status {
		case models.StatusPending, models.StatusConfirmed, models.StatusCancellationRequested:
		default:
			return nil, status.InvalidTransition("cannot cancel a %s booking", b.Status)
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, status.Validation("cancellation reason is required")
		}

		wasRequested := b.Status == models.StatusCancellationRequested
		if err := c.cancelTx(tx, b, reason, actor, releaseUnits, res); err != nil {
			return nil, err
		}
		if wasRequested {
			b.CancellationStatus = models.CancellationApproved
			b.CancellationReviewedAt = b.CancellationDate
		}

		entry := c.audit(actor, models.ActionCancel, b, releaseMetadata(res.Release, reason),
			"cancelled booking %s: %s", b.ID, reason)
		return &entry, nil
	})
}

func (c *LifecycleController) RequestCancellation(ctx context.Context, bookingID, reason string, actor models.Actor) (*Result, error) {
	return c.mutate(ctx, "cancellation_request", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status != models.StatusConfirmed {
			return nil, status.InvalidTransition("cannot request cancellation of a %s booking", b.Status)
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, status.Validation("cancellation reason is required")
		}

		now := c.Now().UTC()
		b.Status = models.StatusCancellationRequested
		b.CancellationStatus = models.CancellationRequested
		b.CancellationReason = reason
		b.CancellationRequestedAt = &now
		b.CancellationReviewedAt = nil
		b.UpdatedAt = now

		entry := c.audit(actor, models.ActionCancellationRequest, b, map[string]any{"reason": reason},
			"cancellation requested for booking %s", b.ID)
		return &entry, nil
	})
}

// ApproveCancellation cancels a requested booking and always releases its units.
func (c *LifecycleController) ApproveCancellation(ctx context.Context, bookingID string, actor models.Actor) (*Result, error) {
	return c.mutate(ctx, "cancellation_approve", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status != models.StatusCancellationRequested {
			return nil, status.InvalidTransition("no pending cancellation request on a %s booking", b.Status)
		}
		reason := b.CancellationReason
		if reason == "" {
			reason = "cancellation request approved"
		}
		if err := c.cancelTx(tx, b, reason, actor, true, res); err != nil {
			return nil, err
		}
		b.CancellationStatus = models.CancellationApproved
		b.CancellationReviewedAt = b.CancellationDate

		entry := c.audit(actor, models.ActionCancellationApprove, b, releaseMetadata(res.Release, reason),
			"approved cancellation of booking %s", b.ID)
		return &entry, nil
	})
}

// RejectCancellation restores the booking to confirmed and clears the request.
func (c *LifecycleController) RejectCancellation(ctx context.Context, bookingID, note string, actor models.Actor) (*Result, error) {
	return c.mutate(ctx, "cancellation_reject", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status != models.StatusCancellationRequested {
			return nil, status.InvalidTransition("no pending cancellation request on a %s booking", b.Status)
		}

		now := c.Now().UTC()
		requested := b.CancellationReason
		b.Status = models.StatusConfirmed
		b.CancellationStatus = models.CancellationNone
		b.CancellationReason = ""
		b.CancellationReviewedAt = &now
		b.UpdatedAt = now

		entry := c.audit(actor, models.ActionCancellationReject, b,
			map[string]any{"requested_reason": requested, "note": strings.TrimSpace(note)},
			"rejected cancellation request for booking %s", b.ID)
		return &entry, nil
	})
}

// AdjustPrice overrides the charged amount. OriginalAmount is captured on the
// first adjustment only, so later adjustments still compare to it. When
// discountPercent is absent it is derived from the original amount.
func (c *LifecycleController) AdjustPrice(ctx context.Context, bookingID string, newAmount decimal.Decimal, discountPercent decimal.NullDecimal, reason string, actor models.Actor) (*Result, error) {
	if !newAmount.IsPositive() {
		return nil, status.Validation("new amount must be greater than zero")
	}
	if discountPercent.Valid && (discountPercent.Decimal.IsNegative() || discountPercent.Decimal.GreaterThan(hundred)) {
		return nil, status.Validation("discount percent must be between 0 and 100")
	}
	reason = strings.TrimSpace(reason)

	return c.mutate(ctx, "adjust_price", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status.Terminal() {
			return nil, status.InvalidTransition("cannot adjust the price of a %s booking", b.Status)
		}

		oldAmount := b.Amount
		if !b.OriginalAmount.Valid {
			b.OriginalAmount = decimal.NewNullDecimal(b.Amount)
		}
		b.Amount = newAmount
		b.PriceAdjusted = true
		b.PriceAdjustmentReason = reason
		switch {
		case discountPercent.Valid:
			b.DiscountPercent = discountPercent
		case b.OriginalAmount.Decimal.IsPositive():
			off := b.OriginalAmount.Decimal.Sub(newAmount).Div(b.OriginalAmount.Decimal).Mul(hundred).Round(2)
			b.DiscountPercent = decimal.NewNullDecimal(off)
		}
		b.UpdatedAt = c.Now().UTC()

		entry := c.audit(actor, models.ActionAdjustPrice, b, map[string]any{
			"old_amount":      oldAmount.String(),
			"new_amount":      newAmount.String(),
			"original_amount": b.OriginalAmount.Decimal.String(),
			"reason":          reason,
		}, "adjusted price of booking %s from %s to %s", b.ID, oldAmount, newAmount)
		return &entry, nil
	})
}

// MarkParticipated sets every unit present on a best-effort basis, then
// flags the booking. A failed attendance step is returned as a warning and
// does not block the flag. Calling it on a participated booking is a no-op.
func (c *LifecycleController) MarkParticipated(ctx context.Context, bookingID string, actor models.Actor) (*Result, error) {
	release, err := c.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()
	defer c.Monitor.TrackDuration("mark_participated", time.Now())

	var current *models.Booking
	err = c.Store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(bookingID)
		current = b
		return err
	})
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusConfirmed {
		c.Monitor.TrackTransition(string(current.Kind), "mark_participated", "error")
		return nil, status.InvalidTransition("cannot mark a %s booking as participated", current.Status)
	}
	if current.Participated {
		return &Result{Booking: current}, nil
	}

	res := &Result{}
	if len(current.Units) > 0 {
		err := c.Store.RunInTx(ctx, func(tx Tx) error {
			_, err := c.attendance.setAllTx(tx, current, models.AttendancePresent, actor)
			return err
		})
		if err != nil {
			warning := status.PartialFailure("set attendance present", err)
			c.Logger.Warn("Attendance pre-set failed, marking participated anyway", "error", err, "booking_id", bookingID)
			c.Monitor.TrackPartialFailure("mark_participated")
			res.Warnings = append(res.Warnings, warning)
		} else {
			c.Monitor.TrackAttendance(string(current.Kind), string(models.AttendancePresent), len(current.Units))
		}
	}

	var entry models.AuditEntry
	err = c.Store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusConfirmed {
			return status.InvalidTransition("cannot mark a %s booking as participated", b.Status)
		}
		if b.Participated {
			res.Booking = b
			return nil
		}

		now := c.Now().UTC()
		b.Participated = true
		b.ParticipatedAt = &now
		b.ParticipatedBy = actor.Label()
		b.UpdatedAt = now
		if err := tx.SaveBooking(b); err != nil {
			return err
		}
		res.Booking = b

		meta := map[string]any{"units": len(b.Units)}
		if len(res.Warnings) > 0 {
			meta["warning"] = res.Warnings[0].Error()
		}
		entry = c.audit(actor, models.ActionMarkParticipated, b, meta, "marked booking %s as participated", b.ID)
		return tx.AppendAudit(entry)
	})
	c.Monitor.TrackTransition(string(current.Kind), "mark_participated", resultLabel(err))
	if err != nil {
		return nil, err
	}
	if entry.ID != "" {
		c.published(ctx, entry)
	}
	return res, nil
}

// UndoParticipation resets every unit to pending and clears the flag in one
// transaction.
func (c *LifecycleController) UndoParticipation(ctx context.Context, bookingID string, actor models.Actor) (*Result, error) {
	if !actor.Can(models.CapabilityUndoParticipation) {
		return nil, status.PermissionDenied("undoing participation requires %s", models.CapabilityUndoParticipation)
	}

	return c.mutate(ctx, "undo_participation", bookingID, func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error) {
		if b.Status.Terminal() {
			return nil, status.InvalidTransition("booking %s is %s", b.ID, b.Status)
		}
		if !b.Participated {
			return nil, status.InvalidTransition("booking %s is not marked as participated", b.ID)
		}
		if _, err := c.attendance.setAllTx(tx, b, models.AttendancePending, actor); err != nil {
			return nil, err
		}
		previous := b.ParticipatedBy
		clearParticipation(b, c.Now())

		entry := c.audit(actor, models.ActionUndoParticipation, b,
			map[string]any{"units": len(b.Units), "previously_marked_by": previous},
			"undid participation of booking %s", b.ID)
		return &entry, nil
	})
}

// HardDelete removes a show booking outright, bypassing the status machine.
// Holds, attendance and the booking go in one transaction.
func (c *LifecycleController) HardDelete(ctx context.Context, bookingID string, actor models.Actor) (*Result, error) {
	if !actor.Can(models.CapabilityHardDelete) {
		return nil, status.PermissionDenied("hard delete requires %s", models.CapabilityHardDelete)
	}

	release, err := c.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()
	defer c.Monitor.TrackDuration("hard_delete", time.Now())

	var (
		res   = &Result{}
		entry models.AuditEntry
	)
	err = c.Store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		if b.Kind != models.KindShow {
			return status.InvalidTransition("hard delete is only available for show bookings, not %s", b.Kind)
		}
		res.Booking = b

		if len(b.Units) > 0 {
			rel, err := c.ledger.ReleaseTx(tx, b.Kind, b.Scope, b.Units, b.ID)
			if err != nil {
				return err
			}
			res.Release = &rel
		}
		if err := tx.DeleteAttendance(b.ID); err != nil {
			return err
		}
		if err := tx.DeleteBooking(b.ID); err != nil {
			return err
		}

		entry = c.audit(actor, models.ActionHardDelete, b, releaseMetadata(res.Release, ""),
			"hard deleted %s booking %s", b.Status, b.ID)
		return tx.AppendAudit(entry)
	})
	c.Monitor.TrackTransition(string(models.KindShow), "hard_delete", resultLabel(err))
	if err != nil {
		return nil, err
	}

	if res.Release != nil {
		c.ledger.AfterRelease(ctx, res.Booking.Kind, res.Booking.Scope, res.Booking.ID, *res.Release)
	}
	c.published(ctx, entry)
	return res, nil
}

// cancelTx applies the shared cancel effects: release first, then status.
func (c *LifecycleController) cancelTx(tx Tx, b *models.Booking, reason string, actor models.Actor, releaseUnits bool, res *Result) error {
	if releaseUnits && len(b.Units) > 0 && b.Kind.HoldsInventory() {
		rel, err := c.ledger.ReleaseTx(tx, b.Kind, b.Scope, b.Units, b.ID)
		if err != nil {
			return err
		}
		res.Release = &rel
	}

	now := c.Now().UTC()
	b.Status = models.StatusCancelled
	b.CancellationReason = reason
	b.CancellationDate = &now
	b.CancelledBy = actor.Label()
	b.UpdatedAt = now
	return nil
}

type mutation func(tx Tx, b *models.Booking, res *Result) (*models.AuditEntry, error)

// mutate runs fn against a copy of the booking under the booking lock and in
// one transaction, then persists the booking and its audit entry together.
func (c *LifecycleController) mutate(ctx context.Context, op, bookingID string, fn mutation) (*Result, error) {
	release, err := c.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()
	defer c.Monitor.TrackDuration(op, time.Now())

	var (
		res   = &Result{}
		kind  models.Kind
		entry *models.AuditEntry
	)
	err = c.Store.RunInTx(ctx, func(tx Tx) error {
		current, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		kind = current.Kind

		b := current.Clone()
		entry, err = fn(tx, b, res)
		if err != nil {
			return err
		}
		if err := tx.SaveBooking(b); err != nil {
			return err
		}
		res.Booking = b
		return tx.AppendAudit(*entry)
	})
	c.Monitor.TrackTransition(string(kind), op, resultLabel(err))
	if err != nil {
		c.Logger.Debug("Booking operation rejected", "operation", op, "booking_id", bookingID, "error", err)
		return nil, err
	}

	if res.Release != nil {
		c.ledger.AfterRelease(ctx, res.Booking.Kind, res.Booking.Scope, res.Booking.ID, *res.Release)
	}
	c.published(ctx, *entry)
	return res, nil
}

func releaseMetadata(rel *ReleaseResult, reason string) map[string]any {
	meta := map[string]any{}
	if reason != "" {
		meta["reason"] = reason
	}
	if rel != nil {
		meta["released"] = rel.Released
		meta["skipped"] = rel.Skipped
	}
	return meta
}
