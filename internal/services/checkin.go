package services

import (
	"context"
	"log/slog"

	"booking-engine/internal/status"
	"booking-engine/models"
)

type CheckInResult struct {
	*AttendanceResult
	Promoted bool            `json:"promoted"`
	Booking  *models.Booking `json:"booking,omitempty"`
	Warnings []error         `json:"-"`
}

// CheckInService is the entry point used by the admin surface for attendance
// writes. Once every unit is present it promotes the booking to participated.
type CheckInService struct {
	attendance *AttendanceTracker
	lifecycle  *LifecycleController
	log        *slog.Logger
}

func NewCheckInService(attendance *AttendanceTracker, lifecycle *LifecycleController, logger *slog.Logger) *CheckInService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckInService{attendance: attendance, lifecycle: lifecycle, log: logger}
}

func (s *CheckInService) SetUnit(ctx context.Context, bookingID string, kind models.Kind, unitID string, st models.AttendanceStatus, notes string, actor models.Actor) (*CheckInResult, error) {
	res, err := s.attendance.SetUnit(ctx, bookingID, kind, unitID, st, notes, actor)
	if err != nil {
		return nil, err
	}
	return s.promote(ctx, bookingID, res, actor), nil
}

func (s *CheckInService) SetMany(ctx context.Context, bookingID string, kind models.Kind, updates []models.UnitUpdate, actor models.Actor) (*CheckInResult, error) {
	res, err := s.attendance.SetMany(ctx, bookingID, kind, updates, actor)
	if err != nil {
		return nil, err
	}
	return s.promote(ctx, bookingID, res, actor), nil
}

// promote never fails the attendance write it follows: a rejected promotion
// comes back as a warning.
func (s *CheckInService) promote(ctx context.Context, bookingID string, res *AttendanceResult, actor models.Actor) *CheckInResult {
	out := &CheckInResult{AttendanceResult: res}
	if !res.Summary.AllPresent || res.Participated {
		return out
	}

	lr, err := s.lifecycle.MarkParticipated(ctx, bookingID, actor)
	if err != nil {
		s.log.Warn("Auto participation failed", "error", err, "booking_id", bookingID)
		out.Warnings = append(out.Warnings, status.PartialFailure("mark participated", err))
		return out
	}

	out.Promoted = lr.Booking.Participated
	out.Booking = lr.Booking
	out.Participated = lr.Booking.Participated
	out.Warnings = append(out.Warnings, lr.Warnings...)
	return out
}
