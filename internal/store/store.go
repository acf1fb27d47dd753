package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-engine/internal/services"
	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Store persists bookings, holds, attendance and the activity log in
// PocketBase collections.
type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

var _ services.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn func(tx services.Tx) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&tx{app: txApp})
	})
}

func (s *Store) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	expr, params := bookingFilter(filter)
	records, err := s.app.FindRecordsByFilter(BookingsCollection, expr, "event_date,-created", filter.Limit, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	out := make([]*models.Booking, 0, len(records))
	for _, rec := range records {
		b, err := recordToBooking(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func bookingFilter(f models.BookingFilter) (string, dbx.Params) {
	parts := []string{"id != ''"}
	params := dbx.Params{}
	if f.Kind != "" {
		parts = append(parts, "kind = {:kind}")
		params["kind"] = string(f.Kind)
	}
	if f.Status != "" {
		parts = append(parts, "status = {:status}")
		params["status"] = string(f.Status)
	}
	if !f.From.IsZero() {
		parts = append(parts, "event_date >= {:from}")
		params["from"] = f.From.UTC().Format(types.DefaultDateLayout)
	}
	if !f.To.IsZero() {
		parts = append(parts, "event_date <= {:to}")
		params["to"] = f.To.UTC().Format(types.DefaultDateLayout)
	}
	return strings.Join(parts, " && "), params
}

type tx struct {
	app core.App
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.NotFound(format, args...)
	}
	return err
}

func (t *tx) GetBooking(id string) (*models.Booking, error) {
	rec, err := t.app.FindRecordById(BookingsCollection, id)
	if err != nil {
		return nil, notFound(err, "booking %s", id)
	}
	return recordToBooking(rec)
}

func (t *tx) SaveBooking(b *models.Booking) error {
	rec, err := t.app.FindRecordById(BookingsCollection, b.ID)
	if errors.Is(err, sql.ErrNoRows) {
		collection, cerr := t.app.FindCollectionByNameOrId(BookingsCollection)
		if cerr != nil {
			return cerr
		}
		rec = core.NewRecord(collection)
		rec.Id = b.ID
	} else if err != nil {
		return err
	}

	applyBooking(rec, b)
	if err := t.app.Save(rec); err != nil {
		return fmt.Errorf("save booking %s: %w", b.ID, err)
	}
	return nil
}

func (t *tx) DeleteBooking(id string) error {
	rec, err := t.app.FindRecordById(BookingsCollection, id)
	if err != nil {
		return notFound(err, "booking %s", id)
	}
	return t.app.Delete(rec)
}

func (t *tx) findHold(kind models.Kind, scope, unitID string) (*core.Record, error) {
	return t.app.FindFirstRecordByFilter(HoldsCollection,
		"kind = {:kind} && scope = {:scope} && unit = {:unit}",
		dbx.Params{"kind": string(kind), "scope": scope, "unit": unitID},
	)
}

func (t *tx) HoldOf(kind models.Kind, scope, unitID string) (string, error) {
	rec, err := t.findHold(kind, scope, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.GetString("booking"), nil
}

func (t *tx) DeleteHold(kind models.Kind, scope, unitID string) error {
	rec, err := t.findHold(kind, scope, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return t.app.Delete(rec)
}

func (t *tx) ListAttendance(bookingID string) ([]models.AttendanceRecord, error) {
	records, err := t.app.FindAllRecords(AttendanceCollection, dbx.HashExp{"booking": bookingID})
	if err != nil {
		return nil, err
	}

	out := make([]models.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		r, err := recordToAttendance(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (t *tx) SaveAttendance(r models.AttendanceRecord) error {
	rec, err := t.app.FindFirstRecordByFilter(AttendanceCollection,
		"booking = {:booking} && unit = {:unit}",
		dbx.Params{"booking": r.BookingID, "unit": r.UnitID},
	)
	if errors.Is(err, sql.ErrNoRows) {
		collection, cerr := t.app.FindCollectionByNameOrId(AttendanceCollection)
		if cerr != nil {
			return cerr
		}
		rec = core.NewRecord(collection)
	} else if err != nil {
		return err
	}

	applyAttendance(rec, r)
	return t.app.Save(rec)
}

func (t *tx) DeleteAttendance(bookingID string) error {
	records, err := t.app.FindAllRecords(AttendanceCollection, dbx.HashExp{"booking": bookingID})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := t.app.Delete(rec); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) AppendAudit(e models.AuditEntry) error {
	collection, err := t.app.FindCollectionByNameOrId(ActivityCollection)
	if err != nil {
		return err
	}
	rec := core.NewRecord(collection)
	applyAudit(rec, e)
	return t.app.Save(rec)
}

// mapping

func recordToBooking(rec *core.Record) (*models.Booking, error) {
	kind, err := models.ParseKind(rec.GetString("kind"))
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", rec.Id, err)
	}
	st, err := models.ParseStatus(rec.GetString("status"))
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", rec.Id, err)
	}
	cst, err := models.ParseCancellationStatus(rec.GetString("cancellation_status"))
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", rec.Id, err)
	}

	var units []string
	if raw := rec.GetString("units"); raw != "" && raw != "null" {
		if err := rec.UnmarshalJSONField("units", &units); err != nil {
			return nil, fmt.Errorf("booking %s units: %w", rec.Id, err)
		}
	}

	amount, err := parseDecimal(rec.GetString("amount"))
	if err != nil {
		return nil, fmt.Errorf("booking %s amount: %w", rec.Id, err)
	}
	original, err := parseNullDecimal(rec.GetString("original_amount"))
	if err != nil {
		return nil, fmt.Errorf("booking %s original amount: %w", rec.Id, err)
	}
	discount, err := parseNullDecimal(rec.GetString("discount_percent"))
	if err != nil {
		return nil, fmt.Errorf("booking %s discount: %w", rec.Id, err)
	}

	return &models.Booking{
		ID:                      rec.Id,
		Kind:                    kind,
		Status:                  st,
		Units:                   units,
		Scope:                   rec.GetString("scope"),
		EventDate:               rec.GetDateTime("event_date").Time(),
		Amount:                  amount,
		OriginalAmount:          original,
		DiscountPercent:         discount,
		PriceAdjusted:           rec.GetBool("price_adjusted"),
		PriceAdjustmentReason:   rec.GetString("price_adjustment_reason"),
		Participated:            rec.GetBool("participated"),
		ParticipatedAt:          optionalTime(rec, "participated_at"),
		ParticipatedBy:          rec.GetString("participated_by"),
		CancellationReason:      rec.GetString("cancellation_reason"),
		CancellationStatus:      cst,
		CancellationRequestedAt: optionalTime(rec, "cancellation_requested_at"),
		CancellationReviewedAt:  optionalTime(rec, "cancellation_reviewed_at"),
		CancellationDate:        optionalTime(rec, "cancellation_date"),
		CancelledBy:             rec.GetString("cancelled_by"),
		CreatedAt:               rec.GetDateTime("created").Time(),
		UpdatedAt:               rec.GetDateTime("updated").Time(),
	}, nil
}

func applyBooking(rec *core.Record, b *models.Booking) {
	units := b.Units
	if units == nil {
		units = []string{}
	}
	rec.Set("kind", string(b.Kind))
	rec.Set("status", string(b.Status))
	rec.Set("units", units)
	rec.Set("scope", b.Scope)
	setTime(rec, "event_date", b.EventDate)
	rec.Set("amount", b.Amount.String())
	rec.Set("original_amount", nullDecimalString(b.OriginalAmount))
	rec.Set("discount_percent", nullDecimalString(b.DiscountPercent))
	rec.Set("price_adjusted", b.PriceAdjusted)
	rec.Set("price_adjustment_reason", b.PriceAdjustmentReason)
	rec.Set("participated", b.Participated)
	setOptionalTime(rec, "participated_at", b.ParticipatedAt)
	rec.Set("participated_by", b.ParticipatedBy)
	rec.Set("cancellation_reason", b.CancellationReason)
	rec.Set("cancellation_status", string(b.CancellationStatus))
	setOptionalTime(rec, "cancellation_requested_at", b.CancellationRequestedAt)
	setOptionalTime(rec, "cancellation_reviewed_at", b.CancellationReviewedAt)
	setOptionalTime(rec, "cancellation_date", b.CancellationDate)
	rec.Set("cancelled_by", b.CancelledBy)
}

func recordToAttendance(rec *core.Record) (models.AttendanceRecord, error) {
	st, err := models.ParseAttendanceStatus(rec.GetString("status"))
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("attendance %s: %w", rec.Id, err)
	}
	return models.AttendanceRecord{
		BookingID: rec.GetString("booking"),
		UnitID:    rec.GetString("unit"),
		Status:    st,
		UpdatedAt: rec.GetDateTime("updated_at").Time(),
		UpdatedBy: rec.GetString("updated_by"),
		Notes:     rec.GetString("notes"),
	}, nil
}

func applyAttendance(rec *core.Record, r models.AttendanceRecord) {
	rec.Set("booking", r.BookingID)
	rec.Set("unit", r.UnitID)
	rec.Set("status", string(r.Status))
	setTime(rec, "updated_at", r.UpdatedAt)
	rec.Set("updated_by", r.UpdatedBy)
	rec.Set("notes", r.Notes)
}

func applyAudit(rec *core.Record, e models.AuditEntry) {
	rec.Set("entry_id", e.ID)
	rec.Set("actor_id", e.ActorID)
	rec.Set("actor_name", e.ActorName)
	rec.Set("action", string(e.Action))
	rec.Set("target_id", e.TargetID)
	rec.Set("kind", string(e.Kind))
	rec.Set("description", e.Description)
	if e.Metadata != nil {
		rec.Set("metadata", e.Metadata)
	}
	setTime(rec, "timestamp", e.Timestamp)
}

func optionalTime(rec *core.Record, field string) *time.Time {
	dt := rec.GetDateTime(field)
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}

func setTime(rec *core.Record, field string, t time.Time) {
	if t.IsZero() {
		rec.Set(field, "")
		return
	}
	rec.Set(field, t.UTC())
}

func setOptionalTime(rec *core.Record, field string, t *time.Time) {
	if t == nil {
		rec.Set(field, "")
		return
	}
	setTime(rec, field, *t)
}
