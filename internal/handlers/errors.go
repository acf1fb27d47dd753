package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"booking-engine/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError maps engine error kinds onto PocketBase API errors. The message of
// engine errors is safe to show to an admin; anything else is logged and
// reported as a generic failure.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrValidation):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidTransition):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, status.ErrPermissionDenied):
		return apis.NewForbiddenError(err.Error(), nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrBookingBusy):
		return apis.NewApiError(http.StatusConflict, "Booking is being modified by another admin, please retry", nil)
	default:
		slog.Error("Booking operation failed", "error", err)
		return apis.NewInternalServerError("Booking operation failed", nil)
	}
}

func warningMessages(warnings []error) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}
