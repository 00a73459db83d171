package attendance

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"classattend/internal/geo"
)

// Constraint names from the schema in internal/store/migrate.go.
const (
	constraintSessionStudent = "attendance_session_student_key"
	constraintSessionDevice  = "attendance_session_device_key"
)

// Repository persists sessions and attendance in Postgres.
type Repository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRepository creates a repo. Every statement is bounded by timeout.
func NewRepository(db *sql.DB, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repository{db: db, timeout: timeout}
}

var _ Store = (*Repository)(nil)

func (r *Repository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return mapPostgresError(r.db.PingContext(ctx))
}

// CreateSession inserts an active session and fills in its id and creation time.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var lat, lon *float64
	if s.Anchor != nil {
		lat, lon = &s.Anchor.Lat, &s.Anchor.Lon
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (unit_code, lecturer_id, qr_token, latitude, longitude, require_gps, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
		RETURNING id
	`, s.UnitCode, s.LecturerID, s.Token, lat, lon, s.RequireGPS, s.CreatedAt)
	if err := row.Scan(&s.ID); err != nil {
		return mapPostgresError(err)
	}
	s.State = StateActive
	return nil
}

// FindSession returns a single session by id.
func (r *Repository) FindSession(ctx context.Context, id int64) (*Session, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, unit_code, lecturer_id, qr_token, latitude, longitude, require_gps, state, created_at, ended_at
		FROM sessions WHERE id = $1
	`, id)
	var (
		s        Session
		lat, lon *float64
	)
	if err := row.Scan(&s.ID, &s.UnitCode, &s.LecturerID, &s.Token, &lat, &lon, &s.RequireGPS, &s.State, &s.CreatedAt, &s.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, mapPostgresError(err)
	}
	if lat != nil && lon != nil {
		s.Anchor = &geo.Point{Lat: *lat, Lon: *lon}
	}
	return &s, nil
}

// UpdateSessionToken swaps the token in one conditional update.
func (r *Repository) UpdateSessionToken(ctx context.Context, id int64, ownerID, token string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET qr_token = $1
		WHERE id = $2 AND lecturer_id = $3 AND state = 'active'
	`, token, id, ownerID)
	return affected(res, err)
}

// EndSession ends an owned active session in one conditional update.
func (r *Repository) EndSession(ctx context.Context, id int64, ownerID string, at time.Time) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET state = 'ended', ended_at = $1
		WHERE id = $2 AND lecturer_id = $3 AND state = 'active'
	`, at, id, ownerID)
	return affected(res, err)
}

// EndStaleSessions ends active sessions created before startedBefore.
func (r *Repository) EndStaleSessions(ctx context.Context, startedBefore, at time.Time) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET state = 'ended', ended_at = $1
		WHERE state = 'active' AND created_at < $2
	`, at, startedBefore)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return res.RowsAffected()
}

// ListSessionsByLecturer returns sessions with attendance counts, newest first.
func (r *Repository) ListSessionsByLecturer(ctx context.Context, lecturerID string, limit int) ([]SessionSummary, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.unit_code, s.require_gps, s.state, s.created_at, s.ended_at, COUNT(a.id)
		FROM sessions s
		LEFT JOIN attendance a ON a.session_id = s.id
		WHERE s.lecturer_id = $1
		GROUP BY s.id
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2
	`, lecturerID, clampLimit(limit))
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var res []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.UnitCode, &s.RequireGPS, &s.State, &s.CreatedAt, &s.EndedAt, &s.AttendedCount); err != nil {
			return nil, mapPostgresError(err)
		}
		res = append(res, s)
	}
	return res, mapPostgresError(rows.Err())
}

// FindAttendance returns the student's record in the session, if any.
func (r *Repository) FindAttendance(ctx context.Context, sessionID int64, studentID string) (*Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, device_id, status, recorded_at
		FROM attendance WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	return scanRecord(row)
}

// FindAttendanceByDevice returns another student's record made from deviceID, if any.
func (r *Repository) FindAttendanceByDevice(ctx context.Context, sessionID int64, deviceID, excludeStudentID string) (*Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, device_id, status, recorded_at
		FROM attendance WHERE session_id = $1 AND device_id = $2 AND student_id <> $3
		LIMIT 1
	`, sessionID, deviceID, excludeStudentID)
	return scanRecord(row)
}

// InsertAttendance writes a record only while its session is active and still
// carries token. The unique keys on (session_id, student_id) and
// (session_id, device_id) settle races.
func (r *Repository) InsertAttendance(ctx context.Context, rec Record, token string) (Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, student_id, device_id, status, recorded_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2 AND state = 'active' AND qr_token = $7)
	`, rec.ID, rec.SessionID, rec.StudentID, rec.DeviceID, rec.Status, rec.RecordedAt, token)
	ok, err := affected(res, err)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, r.insertRejection(ctx, rec.SessionID)
	}
	return rec, nil
}

// insertRejection tells a rotated token apart from an ended or missing session.
func (r *Repository) insertRejection(ctx context.Context, sessionID int64) error {
	var state string
	err := r.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = $1`, sessionID).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrSessionNotActive
	case err != nil:
		return mapPostgresError(err)
	case state == string(StateActive):
		return ErrTokenMismatch
	default:
		return ErrSessionNotActive
	}
}

// ListBySession returns the session's records in submission order.
func (r *Repository) ListBySession(ctx context.Context, sessionID int64) ([]Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, device_id, status, recorded_at
		FROM attendance WHERE session_id = $1
		ORDER BY recorded_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.DeviceID, &rec.Status, &rec.RecordedAt); err != nil {
			return nil, mapPostgresError(err)
		}
		res = append(res, rec)
	}
	return res, mapPostgresError(rows.Err())
}

// ListAttendanceByStudent returns sessions attended by the student, newest first.
func (r *Repository) ListAttendanceByStudent(ctx context.Context, studentID string, limit int) ([]AttendedSession, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.unit_code, s.require_gps, a.status, a.recorded_at, s.created_at, s.ended_at
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE a.student_id = $1
		ORDER BY a.recorded_at DESC
		LIMIT $2
	`, studentID, clampLimit(limit))
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var res []AttendedSession
	for rows.Next() {
		var a AttendedSession
		if err := rows.Scan(&a.SessionID, &a.UnitCode, &a.RequireGPS, &a.Status, &a.AttendedAt, &a.SessionStartedAt, &a.SessionEndedAt); err != nil {
			return nil, mapPostgresError(err)
		}
		res = append(res, a)
	}
	return res, mapPostgresError(rows.Err())
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.DeviceID, &rec.Status, &rec.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPostgresError(err)
	}
	return &rec, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, mapPostgresError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapPostgresError(err)
	}
	return n > 0, nil
}

// mapPostgresError maps driver errors onto the package sentinels.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintSessionStudent:
			return ErrDuplicateRecord
		case constraintSessionDevice:
			return ErrDeviceInUse
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, pgErr.Detail)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected,
		pgerrcode.QueryCanceled,
		pgerrcode.AdminShutdown, pgerrcode.CrashShutdown, pgerrcode.CannotConnectNow,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pgerrcode.IsConnectionException(pgErr.Code) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
