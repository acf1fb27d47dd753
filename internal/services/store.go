package services

import (
	"context"

	"booking-engine/models"
)

// Store is the persistence collaborator. Every logical transition runs inside
// one RunInTx call; an error returned by fn rolls the whole unit back.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

// Tx is the set of reads and writes available inside a transaction.
// Lookups of missing rows return an error wrapping status.ErrNotFound.
type Tx interface {
	GetBooking(id string) (*models.Booking, error)
	SaveBooking(b *models.Booking) error
	DeleteBooking(id string) error

	// HoldOf returns the booking currently holding unitID under kind and
	// scope, or "" when the unit is free.
	HoldOf(kind models.Kind, scope, unitID string) (string, error)
	DeleteHold(kind models.Kind, scope, unitID string) error

	ListAttendance(bookingID string) ([]models.AttendanceRecord, error)
	// SaveAttendance upserts on (booking, unit).
	SaveAttendance(rec models.AttendanceRecord) error
	DeleteAttendance(bookingID string) error

	AppendAudit(entry models.AuditEntry) error
}
