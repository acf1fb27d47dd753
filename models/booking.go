package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindHavan    Kind = "havan"
	KindShow     Kind = "show"
	KindStall    Kind = "stall"
	KindDelegate Kind = "delegate"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHavan, KindShow, KindStall, KindDelegate:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown booking kind: %q", s)
	}
}

// HoldsInventory reports whether bookings of this kind reserve discrete,
// re-bookable units in the inventory ledger.
func (k Kind) HoldsInventory() bool {
	return k == KindHavan || k == KindShow || k == KindStall
}

type Status string

const (
	StatusPending               Status = "pending"
	StatusConfirmed             Status = "confirmed"
	StatusCancellationRequested Status = "cancellation_requested"
	StatusCancelled             Status = "cancelled"
	StatusRefunded              Status = "refunded"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancellationRequested, StatusCancelled, StatusRefunded:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown booking status: %q", s)
	}
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

type CancellationStatus string

const (
	CancellationNone      CancellationStatus = "none"
	CancellationRequested CancellationStatus = "requested"
	CancellationApproved  CancellationStatus = "approved"
	CancellationRejected  CancellationStatus = "rejected"
)

func ParseCancellationStatus(s string) (CancellationStatus, error) {
	switch CancellationStatus(s) {
	case "":
		return CancellationNone, nil
	case CancellationNone, CancellationRequested, CancellationApproved, CancellationRejected:
		return CancellationStatus(s), nil
	default:
		return "", fmt.Errorf("unknown cancellation status: %q", s)
	}
}

// Booking is one reservation of zero or more units by one customer, vendor
// or delegate.
type Booking struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Units     []string  `json:"units"`
	Scope     string    `json:"scope"` // event date/shift, show id or event id the units are held under
	EventDate time.Time `json:"event_date"`

	Amount                decimal.Decimal     `json:"amount"`
	OriginalAmount        decimal.NullDecimal `json:"original_amount"`
	DiscountPercent       decimal.NullDecimal `json:"discount_percent"`
	PriceAdjusted         bool                `json:"price_adjusted"`
	PriceAdjustmentReason string              `json:"price_adjustment_reason,omitempty"`

	Participated   bool       `json:"participated"`
	ParticipatedAt *time.Time `json:"participated_at,omitempty"`
	ParticipatedBy string     `json:"participated_by,omitempty"`

	CancellationReason      string             `json:"cancellation_reason,omitempty"`
	CancellationStatus      CancellationStatus `json:"cancellation_status"`
	CancellationRequestedAt *time.Time         `json:"cancellation_requested_at,omitempty"`
	CancellationReviewedAt  *time.Time         `json:"cancellation_reviewed_at,omitempty"`
	CancellationDate        *time.Time         `json:"cancellation_date,omitempty"`
	CancelledBy             string             `json:"cancelled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) HasUnit(unitID string) bool {
	for _, u := range b.Units {
		if u == unitID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate a working copy and keep
// the original untouched when a transition is rejected.
func (b *Booking) Clone() *Booking {
	c := *b
	c.Units = append([]string(nil), b.Units...)
	c.ParticipatedAt = cloneTime(b.ParticipatedAt)
	c.CancellationRequestedAt = cloneTime(b.CancellationRequestedAt)
	c.CancellationReviewedAt = cloneTime(b.CancellationReviewedAt)
	c.CancellationDate = cloneTime(b.CancellationDate)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// BookingFilter narrows a booking listing. Zero values are ignored.
type BookingFilter struct {
	Kind   Kind
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
}
