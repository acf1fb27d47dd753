package store

import (
	"booking-engine/models"

	"github.com/pocketbase/pocketbase/core"
)

const (
	BookingsCollection   = "bookings"
	AttendanceCollection = "booking_attendance"
	HoldsCollection      = "unit_holds"
	ActivityCollection   = "activity_logs"
)

func kinds() []string {
	return []string{string(models.KindHavan), string(models.KindShow), string(models.KindStall), string(models.KindDelegate)}
}

// NewBookingsCollection defines the bookings schema. Money is kept as text
// so decimal amounts round-trip exactly.
func NewBookingsCollection() *core.Collection {
	c := core.NewBaseCollection(BookingsCollection)
	c.Fields.Add(
		&core.SelectField{Name: "kind", Required: true, MaxSelect: 1, Values: kinds()},
		&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{
			string(models.StatusPending),
			string(models.StatusConfirmed),
			string(models.StatusCancellationRequested),
			string(models.StatusCancelled),
			string(models.StatusRefunded),
		}},
		&core.JSONField{Name: "units"},
		&core.TextField{Name: "scope"},
		&core.DateField{Name: "event_date"},
		&core.TextField{Name: "amount", Pattern: `^-?\d+(\.\d+)?$`},
		&core.TextField{Name: "original_amount"},
		&core.TextField{Name: "discount_percent"},
		&core.BoolField{Name: "price_adjusted"},
		&core.TextField{Name: "price_adjustment_reason"},
		&core.BoolField{Name: "participated"},
		&core.DateField{Name: "participated_at"},
		&core.TextField{Name: "participated_by"},
		&core.TextField{Name: "cancellation_reason"},
		&core.SelectField{Name: "cancellation_status", MaxSelect: 1, Values: []string{
			string(models.CancellationNone),
			string(models.CancellationRequested),
			string(models.CancellationApproved),
			string(models.CancellationRejected),
		}},
		&core.DateField{Name: "cancellation_requested_at"},
		&core.DateField{Name: "cancellation_reviewed_at"},
		&core.DateField{Name: "cancellation_date"},
		&core.TextField{Name: "cancelled_by"},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	c.AddIndex("idx_bookings_kind_status", false, "kind, status", "")
	c.AddIndex("idx_bookings_event_date", false, "event_date", "")
	return c
}

// NewAttendanceCollection keys records by (booking, unit) so concurrent
// initialization cannot create duplicates.
func NewAttendanceCollection(bookingsID string) *core.Collection {
	c := core.NewBaseCollection(AttendanceCollection)
	c.Fields.Add(
		&core.RelationField{Name: "booking", Required: true, CollectionId: bookingsID, CascadeDelete: true, MaxSelect: 1},
		&core.TextField{Name: "unit", Required: true},
		&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{
			string(models.AttendancePending),
			string(models.AttendancePresent),
			string(models.AttendanceAbsent),
		}},
		&core.DateField{Name: "updated_at"},
		&core.TextField{Name: "updated_by"},
		&core.TextField{Name: "notes"},
	)
	c.AddIndex("idx_attendance_booking_unit", true, "booking, unit", "")
	return c
}

// NewHoldsCollection allows exactly one holder per (kind, scope, unit).
func NewHoldsCollection() *core.Collection {
	c := core.NewBaseCollection(HoldsCollection)
	c.Fields.Add(
		&core.SelectField{Name: "kind", Required: true, MaxSelect: 1, Values: kinds()},
		&core.TextField{Name: "scope"},
		&core.TextField{Name: "unit", Required: true},
		&core.TextField{Name: "booking", Required: true},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	c.AddIndex("idx_holds_unit", true, "kind, scope, unit", "")
	c.AddIndex("idx_holds_booking", false, "booking", "")
	return c
}

func NewActivityCollection() *core.Collection {
	c := core.NewBaseCollection(ActivityCollection)
	c.Fields.Add(
		&core.TextField{Name: "entry_id", Required: true},
		&core.TextField{Name: "actor_id"},
		&core.TextField{Name: "actor_name"},
		&core.TextField{Name: "action", Required: true},
		&core.TextField{Name: "target_id"},
		&core.TextField{Name: "kind"},
		&core.TextField{Name: "description"},
		&core.JSONField{Name: "metadata"},
		&core.DateField{Name: "timestamp"},
	)
	c.AddIndex("idx_activity_target", false, "target_id", "")
	return c
}
