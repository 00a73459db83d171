package attendance

import (
	"time"

	"classattend/internal/geo"
)

// State is the lifecycle state of a session.
type State string

const (
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Status is the categorical outcome stored on an attendance record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	// StatusAbsent is only synthesized for reports; it is never stored.
	StatusAbsent Status = "Absent"
)

// Session is a lecturer-owned attendance window for a unit.
type Session struct {
	ID         int64      `json:"session_id"`
	UnitCode   string     `json:"unit_code"`
	LecturerID string     `json:"lecturer_id"`
	Token      string     `json:"-"`
	Anchor     *geo.Point `json:"anchor,omitempty"`
	RequireGPS bool       `json:"require_gps"`
	State      State      `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session still accepts attendance.
func (s *Session) Active() bool { return s.State == StateActive }

func (s *Session) clone() *Session {
	c := *s
	if s.Anchor != nil {
		a := *s.Anchor
		c.Anchor = &a
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Record is one student's attendance in one session. Records are never updated.
type Record struct {
	ID         string    `json:"id"`
	SessionID  int64     `json:"session_id"`
	StudentID  string    `json:"student_id"`
	DeviceID   string    `json:"device_id"`
	Status     Status    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SessionSummary is a lecturer history row.
type SessionSummary struct {
	ID            int64      `json:"session_id"`
	UnitCode      string     `json:"unit_code"`
	RequireGPS    bool       `json:"require_gps"`
	State         State      `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	AttendedCount int        `json:"attended_count"`
}

// AttendedSession is a student history row.
type AttendedSession struct {
	SessionID        int64      `json:"session_id"`
	UnitCode         string     `json:"unit_code"`
	RequireGPS       bool       `json:"require_gps"`
	Status           Status     `json:"status"`
	AttendedAt       time.Time  `json:"attended_at"`
	SessionStartedAt time.Time  `json:"session_started_at"`
	SessionEndedAt   *time.Time `json:"session_ended_at,omitempty"`
}
