package handlers

import (
	"net/http"

	"booking-engine/internal/services"
	"booking-engine/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AttendanceHandler struct {
	lifecycle  *services.LifecycleController
	attendance *services.AttendanceTracker
	checkin    *services.CheckInService
}

func NewAttendanceHandler(lifecycle *services.LifecycleController, attendance *services.AttendanceTracker, checkin *services.CheckInService) *AttendanceHandler {
	return &AttendanceHandler{lifecycle: lifecycle, attendance: attendance, checkin: checkin}
}

type checkInResponse struct {
	*services.CheckInResult
	Warnings []string `json:"warnings,omitempty"`
}

func checkInJSON(e *core.RequestEvent, res *services.CheckInResult) error {
	return e.JSON(http.StatusOK, checkInResponse{CheckInResult: res, Warnings: warningMessages(res.Warnings)})
}

// GetAttendance - GET /bookings/{id}/attendance, initializing records on first view
func (h *AttendanceHandler) GetAttendance(e *core.RequestEvent) error {
	if _, err := actorFromAuth(e); err != nil {
		return err
	}
	ctx := e.Request.Context()

	b, err := h.lifecycle.Get(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	records, err := h.attendance.EnsureInitialized(ctx, b.ID, b.Kind, b.Units)
	if err != nil {
		return apiError(err)
	}
	summary, err := h.attendance.Summary(ctx, b.ID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"booking_id":   b.ID,
		"participated": b.Participated,
		"records":      records,
		"summary":      summary,
	})
}

// SetUnit - PUT /bookings/{id}/attendance/{unit}
func (h *AttendanceHandler) SetUnit(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.checkin.SetUnit(e.Request.Context(), e.Request.PathValue("id"), models.Kind(req.Kind),
		e.Request.PathValue("unit"), models.AttendanceStatus(req.Status), req.Notes, actor)
	if err != nil {
		return apiError(err)
	}
	return checkInJSON(e, res)
}

// SetMany - PUT /bookings/{id}/attendance
func (h *AttendanceHandler) SetMany(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Kind    string              `json:"kind"`
		Updates []models.UnitUpdate `json:"updates"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.checkin.SetMany(e.Request.Context(), e.Request.PathValue("id"), models.Kind(req.Kind), req.Updates, actor)
	if err != nil {
		return apiError(err)
	}
	return checkInJSON(e, res)
}

// ResetAll - POST /bookings/{id}/attendance/reset
func (h *AttendanceHandler) ResetAll(e *core.RequestEvent) error {
	actor, err := actorFromAuth(e)
	if err != nil {
		return err
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.attendance.ResetAll(e.Request.Context(), e.Request.PathValue("id"), models.Kind(req.Kind), actor)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}
