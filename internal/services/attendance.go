package services

import (
	"context"
	"fmt"
	"time"

	"booking-engine/internal/status"
	"booking-engine/models"
)

const systemActor = "system"

// AttendanceResult is what every attendance write returns: the records as
// stored after the write and the aggregate callers use for auto-promotion.
type AttendanceResult struct {
	Records              []models.AttendanceRecord `json:"records"`
	Summary              models.AttendanceSummary  `json:"summary"`
	Participated         bool                      `json:"participated"`
	ParticipationCleared bool                      `json:"participation_cleared"`
}

// AttendanceTracker owns per-unit check-in state. It never calls back into
// the lifecycle controller.
type AttendanceTracker struct {
	Deps
}

func NewAttendanceTracker(deps Deps) *AttendanceTracker {
	return &AttendanceTracker{Deps: deps.withDefaults()}
}

// EnsureInitialized creates one pending record per unit when the booking has
// none yet. Existing records are returned unchanged.
func (a *AttendanceTracker) EnsureInitialized(ctx context.Context, bookingID string, kind models.Kind, units []string) ([]models.AttendanceRecord, error) {
	var (
		records []models.AttendanceRecord
		entry   *models.AuditEntry
	)
	err := a.Store.RunInTx(ctx, func(tx Tx) error {
		b, err := loadBooking(tx, bookingID, kind)
		if err != nil {
			return err
		}
		if units == nil {
			units = b.Units
		}
		var created bool
		records, created, err = a.ensureTx(tx, b, units)
		if err != nil || !created {
			return err
		}
		e := a.audit(models.Actor{ID: systemActor}, models.ActionAttendanceInitialize, b,
			map[string]any{"units": len(units)}, "initialized attendance for %d units", len(units))
		entry = &e
		return tx.AppendAudit(e)
	})
	if err != nil {
		return nil, err
	}
	if entry != nil {
		a.published(ctx, *entry)
	}
	return records, nil
}

// SetUnit records one unit's status and returns the new aggregate.
func (a *AttendanceTracker) SetUnit(ctx context.Context, bookingID string, kind models.Kind, unitID string, st models.AttendanceStatus, notes string, actor models.Actor) (*AttendanceResult, error) {
	return a.write(ctx, bookingID, kind, []models.UnitUpdate{{UnitID: unitID, Status: st, Notes: notes}}, actor, models.ActionAttendanceUnit)
}

// SetMany applies every update or none of them.
func (a *AttendanceTracker) SetMany(ctx context.Context, bookingID string, kind models.Kind, updates []models.UnitUpdate, actor models.Actor) (*AttendanceResult, error) {
	if len(updates) == 0 {
		return nil, status.Validation("no attendance updates given")
	}
	return a.write(ctx, bookingID, kind, updates, actor, models.ActionAttendanceBulk)
}

// ResetAll moves every unit back to pending and clears participation.
func (a *AttendanceTracker) ResetAll(ctx context.Context, bookingID string, kind models.Kind, actor models.Actor) (*AttendanceResult, error) {
	if !actor.Can(models.CapabilityUndoParticipation) {
		return nil, status.PermissionDenied("resetting attendance requires %s", models.CapabilityUndoParticipation)
	}

	release, err := a.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res   AttendanceResult
		entry models.AuditEntry
		b     *models.Booking
	)
	err = a.Store.RunInTx(ctx, func(tx Tx) error {
		booking, err := loadBooking(tx, bookingID, kind)
		if err != nil {
			return err
		}
		b = booking
		if b.Status.Terminal() {
			return status.InvalidTransition("booking %s is %s", b.ID, b.Status)
		}
		if res.Records, err = a.setAllTx(tx, b, models.AttendancePending, actor); err != nil {
			return err
		}
		if b.Participated {
			clearParticipation(b, a.Now())
			if err := tx.SaveBooking(b); err != nil {
				return err
			}
			res.ParticipationCleared = true
		}
		entry = a.audit(actor, models.ActionAttendanceReset, b,
			map[string]any{"units": len(b.Units), "participation_cleared": res.ParticipationCleared},
			"reset attendance for %d units", len(b.Units))
		return tx.AppendAudit(entry)
	})
	a.Monitor.TrackTransition(string(kind), "attendance_reset", resultLabel(err))
	if err != nil {
		return nil, err
	}

	a.Monitor.TrackAttendance(string(kind), string(models.AttendancePending), len(res.Records))
	res.Summary = summarizeUnits(b.Units, res.Records)
	res.Participated = b.Participated
	a.published(ctx, entry)
	return &res, nil
}

// Summary aggregates attendance over the booking's units; units without a
// record count as pending.
func (a *AttendanceTracker) Summary(ctx context.Context, bookingID string) (models.AttendanceSummary, error) {
	var summary models.AttendanceSummary
	err := a.Store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(bookingID)
		if err != nil {
			return err
		}
		records, err := tx.ListAttendance(bookingID)
		if err != nil {
			return err
		}
		summary = summarizeUnits(b.Units, records)
		return nil
	})
	return summary, err
}

func (a *AttendanceTracker) write(ctx context.Context, bookingID string, kind models.Kind, updates []models.UnitUpdate, actor models.Actor, action models.AuditAction) (*AttendanceResult, error) {
	for _, u := range updates {
		if _, err := models.ParseAttendanceStatus(string(u.Status)); err != nil {
			return nil, status.Validation("unit %s: %v", u.UnitID, err)
		}
	}

	release, err := a.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res   AttendanceResult
		entry models.AuditEntry
		b     *models.Booking
	)
	err = a.Store.RunInTx(ctx, func(tx Tx) error {
		booking, err := loadBooking(tx, bookingID, kind)
		if err != nil {
			return err
		}
		b = booking
		if b.Status.Terminal() {
			return status.InvalidTransition("booking %s is %s", b.ID, b.Status)
		}
		for _, u := range updates {
			if !b.HasUnit(u.UnitID) {
				return status.NotFound("unit %s is not part of booking %s", u.UnitID, b.ID)
			}
		}

		records, _, err := a.ensureTx(tx, b, b.Units)
		if err != nil {
			return err
		}
		current := indexRecords(records)

		leavesPresent := false
		for _, u := range updates {
			if current[u.UnitID].Status == models.AttendancePresent && u.Status != models.AttendancePresent {
				leavesPresent = true
			}
		}
		if leavesPresent && b.Participated && !actor.Can(models.CapabilityUndoParticipation) {
			return status.PermissionDenied("moving a unit of participated booking %s away from present requires %s", b.ID, models.CapabilityUndoParticipation)
		}

		now := a.Now().UTC()
		for _, u := range updates {
			rec := models.AttendanceRecord{
				BookingID: b.ID,
				UnitID:    u.UnitID,
				Status:    u.Status,
				UpdatedAt: now,
				UpdatedBy: actor.Label(),
				Notes:     u.Notes,
			}
			if err := tx.SaveAttendance(rec); err != nil {
				return err
			}
			current[u.UnitID] = rec
		}

		res.Records = orderedRecords(b.Units, current)

		// A participated booking must have every unit present. This also
		// catches a flag left behind when marking participation could not
		// pre-set attendance.
		if b.Participated && !summarizeUnits(b.Units, res.Records).AllPresent {
			clearParticipation(b, now)
			if err := tx.SaveBooking(b); err != nil {
				return err
			}
			res.ParticipationCleared = true
		}

		entry = a.audit(actor, action, b, updateMetadata(updates, res.ParticipationCleared), "%s", describeUpdates(updates))
		return tx.AppendAudit(entry)
	})
	a.Monitor.TrackTransition(string(kind), string(action), resultLabel(err))
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		a.Monitor.TrackAttendance(string(kind), string(u.Status), 1)
	}
	res.Summary = summarizeUnits(b.Units, res.Records)
	res.Participated = b.Participated
	a.published(ctx, entry)
	return &res, nil
}

// ensureTx creates the missing per-unit records only when none exist.
func (a *AttendanceTracker) ensureTx(tx Tx, b *models.Booking, units []string) ([]models.AttendanceRecord, bool, error) {
	records, err := tx.ListAttendance(b.ID)
	if err != nil {
		return nil, false, err
	}
	if len(records) > 0 {
		return records, false, nil
	}

	now := a.Now().UTC()
	records = make([]models.AttendanceRecord, 0, len(units))
	for _, unit := range units {
		rec := models.AttendanceRecord{
			BookingID: b.ID,
			UnitID:    unit,
			Status:    models.AttendancePending,
			UpdatedAt: now,
			UpdatedBy: systemActor,
		}
		if err := tx.SaveAttendance(rec); err != nil {
			return nil, false, err
		}
		records = append(records, rec)
	}
	return records, len(records) > 0, nil
}

// setAllTx writes st for every unit of b and returns the records in unit order.
func (a *AttendanceTracker) setAllTx(tx Tx, b *models.Booking, st models.AttendanceStatus, actor models.Actor) ([]models.AttendanceRecord, error) {
	records, err := tx.ListAttendance(b.ID)
	if err != nil {
		return nil, err
	}
	current := indexRecords(records)

	now := a.Now().UTC()
	for _, unit := range b.Units {
		rec := current[unit]
		rec.BookingID = b.ID
		rec.UnitID = unit
		rec.Status = st
		rec.UpdatedAt = now
		rec.UpdatedBy = actor.Label()
		if err := tx.SaveAttendance(rec); err != nil {
			return nil, err
		}
		current[unit] = rec
	}
	return orderedRecords(b.Units, current), nil
}

func loadBooking(tx Tx, bookingID string, kind models.Kind) (*models.Booking, error) {
	b, err := tx.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if kind != "" && b.Kind != kind {
		return nil, status.Validation("booking %s is a %s booking, not %s", b.ID, b.Kind, kind)
	}
	return b, nil
}

func clearParticipation(b *models.Booking, now time.Time) {
	b.Participated = false
	b.ParticipatedAt = nil
	b.ParticipatedBy = ""
	b.UpdatedAt = now.UTC()
}

func indexRecords(records []models.AttendanceRecord) map[string]models.AttendanceRecord {
	idx := make(map[string]models.AttendanceRecord, len(records))
	for _, r := range records {
		idx[r.UnitID] = r
	}
	return idx
}

func orderedRecords(units []string, idx map[string]models.AttendanceRecord) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(units))
	for _, unit := range units {
		if r, ok := idx[unit]; ok {
			out = append(out, r)
		}
	}
	return out
}

func summarizeUnits(units []string, records []models.AttendanceRecord) models.AttendanceSummary {
	idx := indexRecords(records)
	perUnit := make([]models.AttendanceRecord, 0, len(units))
	for _, unit := range units {
		r, ok := idx[unit]
		if !ok {
			r = models.AttendanceRecord{UnitID: unit, Status: models.AttendancePending}
		}
		perUnit = append(perUnit, r)
	}
	return models.Summarize(perUnit)
}

func updateMetadata(updates []models.UnitUpdate, cleared bool) map[string]any {
	changes := make(map[string]string, len(updates))
	for _, u := range updates {
		changes[u.UnitID] = string(u.Status)
	}
	return map[string]any{"changes": changes, "participation_cleared": cleared}
}

func describeUpdates(updates []models.UnitUpdate) string {
	if len(updates) == 1 {
		return "unit " + updates[0].UnitID + " marked " + string(updates[0].Status)
	}
	counts := map[models.AttendanceStatus]int{}
	for _, u := range updates {
		counts[u.Status]++
	}
	return fmt.Sprintf("bulk attendance update of %d units (present %d, absent %d, pending %d)",
		len(updates), counts[models.AttendancePresent], counts[models.AttendanceAbsent], counts[models.AttendancePending])
}
