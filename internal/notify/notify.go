// Package notify fans accepted attendance out to live subscribers.
package notify

import (
	"context"
	"time"

	"classattend/internal/attendance"
)

// EventAttendanceMarked is the only event type published today.
const EventAttendanceMarked = "attendance_marked"

// Event is the payload delivered to session subscribers.
type Event struct {
	Type      string            `json:"type"`
	RecordID  string            `json:"record_id"`
	SessionID int64             `json:"session_id"`
	StudentID string            `json:"student_id"`
	Status    attendance.Status `json:"status"`
	At        time.Time         `json:"at"`
}

// Publisher sends events to whoever listens on a session.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Hub is a Publisher that also hands out per-session subscriptions.
// The returned channel is closed once ctx is done.
type Hub interface {
	Publisher
	Subscribe(ctx context.Context, sessionID int64) (<-chan Event, error)
}

// Hook adapts a Publisher to the verifier's notification hook.
func Hook(p Publisher) attendance.NotifierFunc {
	return func(ctx context.Context, rec attendance.Record) error {
		return p.Publish(ctx, FromRecord(rec))
	}
}

// FromRecord builds the attendance_marked event for rec.
func FromRecord(rec attendance.Record) Event {
	return Event{
		Type:      EventAttendanceMarked,
		RecordID:  rec.ID,
		SessionID: rec.SessionID,
		StudentID: rec.StudentID,
		Status:    rec.Status,
		At:        rec.RecordedAt,
	}
}
