package models

import (
	"fmt"
	"time"
)

type AttendanceStatus string

const (
	AttendancePending AttendanceStatus = "pending"
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch AttendanceStatus(s) {
	case AttendancePending, AttendancePresent, AttendanceAbsent:
		return AttendanceStatus(s), nil
	default:
		return "", fmt.Errorf("unknown attendance status: %q", s)
	}
}

// AttendanceRecord is the check-in state of one unit of one booking.
type AttendanceRecord struct {
	BookingID string           `json:"booking_id"`
	UnitID    string           `json:"unit_id"`
	Status    AttendanceStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
	UpdatedBy string           `json:"updated_by"`
	Notes     string           `json:"notes,omitempty"`
}

// UnitUpdate is one entry of a bulk attendance change.
type UnitUpdate struct {
	UnitID string           `json:"unit_id"`
	Status AttendanceStatus `json:"status"`
	Notes  string           `json:"notes,omitempty"`
}

type AttendanceSummary struct {
	Total      int  `json:"total"`
	Pending    int  `json:"pending"`
	Present    int  `json:"present"`
	Absent     int  `json:"absent"`
	AllPresent bool `json:"all_present"`
}

// Summarize aggregates records into per-status counts. AllPresent is false
// for an empty record set.
func Summarize(records []AttendanceRecord) AttendanceSummary {
	s := AttendanceSummary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case AttendancePresent:
			s.Present++
		case AttendanceAbsent:
			s.Absent++
		default:
			s.Pending++
		}
	}
	s.AllPresent = s.Total > 0 && s.Present == s.Total
	return s
}
