package models

import "time"

type AuditAction string

const (
	ActionConfirm              AuditAction = "booking.confirm"
	ActionCancel               AuditAction = "booking.cancel"
	ActionCancellationRequest  AuditAction = "booking.cancellation_request"
	ActionCancellationApprove  AuditAction = "booking.cancellation_approve"
	ActionCancellationReject   AuditAction = "booking.cancellation_reject"
	ActionAdjustPrice          AuditAction = "booking.adjust_price"
	ActionMarkParticipated     AuditAction = "booking.participated"
	ActionUndoParticipation    AuditAction = "booking.participation_undone"
	ActionHardDelete           AuditAction = "booking.hard_delete"
	ActionAttendanceUnit       AuditAction = "attendance.unit"
	ActionAttendanceBulk       AuditAction = "attendance.bulk"
	ActionAttendanceReset      AuditAction = "attendance.reset"
	ActionAttendanceInitialize AuditAction = "attendance.initialize"
)

// AuditEntry is one append-only activity log line.
type AuditEntry struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	ActorName   string         `json:"actor_name"`
	Action      AuditAction    `json:"action"`
	TargetID    string         `json:"target_id"`
	Kind        Kind           `json:"kind"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
