package model

import "time"

// ViolationKind identifies which integrity signal produced a violation.
type ViolationKind string

const (
	ViolationTabSwitch ViolationKind = "tab_switch"
	ViolationCamera    ViolationKind = "camera"
)

// ViolationRecord is the archived form of a counted violation or termination.
type ViolationRecord struct {
	UserID     string        `json:"user_id"`
	Kind       ViolationKind `json:"kind"`
	Total      int           `json:"total"`
	Terminated bool          `json:"terminated"`
	RecordedAt time.Time     `json:"recorded_at"`
}
