package attendance

import (
	"context"
	"time"
)

// SessionStore persists sessions. Ownership and active-state conditions are
// evaluated inside the store so each mutation is a single conditional write.
type SessionStore interface {
	// CreateSession assigns ID and CreatedAt on the passed session.
	CreateSession(ctx context.Context, s *Session) error
	// FindSession returns ErrSessionNotFound when no row exists.
	FindSession(ctx context.Context, id int64) (*Session, error)
	// UpdateSessionToken reports false when no active session with that id and owner exists.
	UpdateSessionToken(ctx context.Context, id int64, ownerID, token string) (bool, error)
	// EndSession reports false when no active session with that id and owner exists.
	EndSession(ctx context.Context, id int64, ownerID string, at time.Time) (bool, error)
	// EndStaleSessions ends every active session created before startedBefore.
	EndStaleSessions(ctx context.Context, startedBefore, at time.Time) (int64, error)
	ListSessionsByLecturer(ctx context.Context, lecturerID string, limit int) ([]SessionSummary, error)
}

// RecordStore persists attendance records. There is no update or delete path.
type RecordStore interface {
	// FindAttendance returns nil, nil when the student has no record in the session.
	FindAttendance(ctx context.Context, sessionID int64, studentID string) (*Record, error)
	// FindAttendanceByDevice returns a record in the session made from deviceID by
	// a student other than excludeStudentID, or nil, nil.
	FindAttendanceByDevice(ctx context.Context, sessionID int64, deviceID, excludeStudentID string) (*Record, error)
	// InsertAttendance writes rec only while the session is active and its current
	// token equals token. It fails with ErrDuplicateRecord, ErrDeviceInUse,
	// ErrSessionNotActive or ErrTokenMismatch when the matching check rejects the row.
	InsertAttendance(ctx context.Context, rec Record, token string) (Record, error)
	// ListBySession returns records ascending by RecordedAt.
	ListBySession(ctx context.Context, sessionID int64) ([]Record, error)
	ListAttendanceByStudent(ctx context.Context, studentID string, limit int) ([]AttendedSession, error)
}

// Store is the full persistence boundary consumed by the registry and verifier.
type Store interface {
	SessionStore
	RecordStore
	Ping(ctx context.Context) error
}

// HistoryLimit caps history listings.
const HistoryLimit = 200

func clampLimit(limit int) int {
	if limit <= 0 || limit > HistoryLimit {
		return HistoryLimit
	}
	return limit
}
