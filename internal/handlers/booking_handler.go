package handlers

import (
	"net/http"
	"strconv"
	"time"

	"booking-engine/internal/services"
	"booking-engine/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type BookingHandler struct {
	lifecycle *services.LifecycleController
	seats     *services.SeatCache
}

func NewBookingHandler(lifecycle *services.LifecycleController, seats *services.SeatCache) *BookingHandler {
	return &BookingHandler{lifecycle: lifecycle, seats: seats}
}

type lifecycleResponse struct {
	Booking  *models.Booking         `json:"booking,omitempty"`
	Release  *services.ReleaseResult `json:"release,omitempty"`
	Warnings []string                `json:"warnings,omitempty"`
}

func respond(e *core.RequestEvent, res *services.Result, err error) error {
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, lifecycleResponse{
		Booking:  res.Booking,
		Release:  res.Release,
		Warnings: warningMessages(res.Warnings),
	})
}

// ListBookings - GET /bookings?kind=&status=&from=&to=&limit=
func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	if _, err := actorFromAuth(e); err != nil {
		return err
	}

	filter, err := parseBookingFilter(e.Request.URL.Query().Get)
	if err != nil {
		return apis.NewBadRequestError(err.Error(), nil)
	}

	bookings, err := h.lifecycle.ListBookings(e.Request.Context(), filter)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": bookings, "total": len(bookings)})
}

func parseBookingFilter(get func(string) string) (models.BookingFilter, error) {
	var (
		filter models.BookingFilter
		err    error
	)
	if v := get("kind"); v != "" {
		if filter.Kind, err = models.ParseKind(v); err != nil {
			return filter, err
		}
	}
	if v := get("status"); v != "" {
		if filter.Status, err = models.ParseStatus(v); err != nil {
			return filter, err
		}
	}
	if v := get("from"); v != "" {
		if filter.From, err = time.Parse(time.DateOnly, v); err != nil {
			return filter, err
		}
	}
	if v := get("to"); v != "" {
		to, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, err
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if v := get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

// Confirm - POST /bookings/{id}/confirm
func (h *BookingHandler) Confirm(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}
	res, err := h.lifecycle.Confirm(e.Request.Context(), e.Request.PathValue("id"), actor)
	return respond(e, res, err)
}

// Cancel - POST /bookings/{id}/cancel
func (h *BookingHandler) Cancel(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Reason       string `json:"reason"`
		ReleaseUnits *bool  `json:"release_units"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	release := req.ReleaseUnits == nil || *req.ReleaseUnits

	res, err := h.lifecycle.Cancel(e.Request.Context(), e.Request.PathValue("id"), req.Reason, actor, release)
	return respond(e, res, err)
}

// RequestCancellation - POST /bookings/{id}/cancellation/request
func (h *BookingHandler) RequestCancellation(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.lifecycle.RequestCancellation(e.Request.Context(), e.Request.PathValue("id"), req.Reason, actor)
	return respond(e, res, err)
}

// ApproveCancellation - POST /bookings/{id}/cancellation/approve
func (h *BookingHandler) ApproveCancellation(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}
	res, err := h.lifecycle.ApproveCancellation(e.Request.Context(), e.Request.PathValue("id"), actor)
	return respond(e, res, err)
}

// RejectCancellation - POST /bookings/{id}/cancellation/reject
func (h *BookingHandler) RejectCancellation(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.lifecycle.RejectCancellation(e.Request.Context(), e.Request.PathValue("id"), req.Note, actor)
	return respond(e, res, err)
}

// AdjustPrice - POST /bookings/{id}/price
func (h *BookingHandler) AdjustPrice(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Amount          decimal.Decimal     `json:"amount"`
		DiscountPercent decimal.NullDecimal `json:"discount_percent"`
		Reason          string              `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.lifecycle.AdjustPrice(e.Request.Context(), e.Request.PathValue("id"), req.Amount, req.DiscountPercent, req.Reason, actor)
	return respond(e, res, err)
}

// MarkParticipated - POST /bookings/{id}/participation
func (h *BookingHandler) MarkParticipated(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}
	res, err := h.lifecycle.MarkParticipated(e.Request.Context(), e.Request.PathValue("id"), actor)
	return respond(e, res, err)
}

// UndoParticipation - DELETE /bookings/{id}/participation
func (h *BookingHandler) UndoParticipation(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}
	res, err := h.lifecycle.UndoParticipation(e.Request.Context(), e.Request.PathValue("id"), actor)
	return respond(e, res, err)
}

// HardDelete - DELETE /bookings/{id}
func (h *BookingHandler) HardDelete(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}
	res, err := h.lifecycle.HardDelete(e.Request.Context(), e.Request.PathValue("id"), actor)
	return respond(e, res, err)
}

// GetSeats - GET /bookings/{id}/seats, the public seat-map view of the booking's units
func (h *BookingHandler) GetSeats(e *core.RequestEvent) error {
	if _, err := actorFromAuth(e); err != nil {
		return err
	}
	ctx := e.Request.Context()

	b, err := h.lifecycle.Get(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	if !b.Kind.HoldsInventory() {
		return e.JSON(http.StatusOK, map[string]any{"booking_id": b.ID, "seats": map[string]string{}})
	}

	seats, err := h.seats.Availability(ctx, b.Kind, b.Scope, b.Units)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Seat map is unavailable", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"booking_id": b.ID, "seats": seats})
}
