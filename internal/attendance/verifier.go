package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"classattend/internal/geo"
	"classattend/internal/metrics"
)

// GeofenceRadiusMeters is the maximum accepted distance from the session anchor.
const GeofenceRadiusMeters = 100.0

const notifyTimeout = 2 * time.Second

// Reason is a stable reject code returned to clients.
type Reason string

const (
	ReasonSessionNotFound    Reason = "SessionNotFound"
	ReasonSessionNotActive   Reason = "SessionNotActive"
	ReasonInvalidToken       Reason = "InvalidToken"
	ReasonAlreadyMarked      Reason = "AlreadyMarked"
	ReasonDeviceAlreadyUsed  Reason = "DeviceAlreadyUsed"
	ReasonGpsRequired        Reason = "GpsRequired"
	ReasonInvalidCoordinates Reason = "InvalidCoordinates"
	ReasonTooFar             Reason = "TooFar"
)

// Notifier receives accepted records. Failures never affect the commit.
type Notifier interface {
	AttendanceMarked(ctx context.Context, rec Record) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec Record) error

func (f NotifierFunc) AttendanceMarked(ctx context.Context, rec Record) error { return f(ctx, rec) }

// VerifyRequest is one student submission.
type VerifyRequest struct {
	SessionID int64
	Token     string
	StudentID string
	DeviceID  string
	Location  *geo.Point
}

// Decision is either an accept carrying the stored record or a reject carrying a reason.
type Decision struct {
	Reason   Reason
	Distance float64
	Anchor   *geo.Point
	Record   *Record
}

// Accepted reports whether the submission was recorded.
func (d Decision) Accepted() bool { return d.Reason == "" }

// DistanceMeters is the distance rounded for display.
func (d Decision) DistanceMeters() int64 { return int64(math.Round(d.Distance)) }

// Code is the metrics/result label for the decision.
func (d Decision) Code() string {
	if d.Accepted() {
		return "Accepted"
	}
	return string(d.Reason)
}

// Verifier runs the ordered guard pipeline and commits accepted attendance.
type Verifier struct {
	store     Store
	notifier  Notifier
	lateAfter time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier. lateAfter <= 0 stores every record as Present.
// notifier may be nil.
func NewVerifier(store Store, lateAfter time.Duration, notifier Notifier) *Verifier {
	return &Verifier{
		store:     store,
		notifier:  notifier,
		lateAfter: lateAfter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type submission struct {
	req      VerifyRequest
	session  *Session
	distance float64
}

// guard returns a non-empty reason to reject, or an error for store failures.
type guard func(ctx context.Context, s *submission) (Reason, error)

// Verify checks a submission and records it when every guard passes.
// The returned error is only set for invalid input or store failures.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (Decision, error) {
	started := time.Now()
	defer func() { metrics.VerifyDuration.Observe(time.Since(started).Seconds()) }()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.SessionID <= 0 {
		return Decision{}, validationErr("invalid session id")
	}
	if req.Token == "" || req.StudentID == "" || req.DeviceID == "" {
		return Decision{}, validationErr("session token, student id and device id are required")
	}

	s := &submission{req: req}
	guards := []guard{
		v.sessionExists,
		sessionActive,
		tokenMatches,
		v.notAlreadyMarked,
		v.deviceNotReused,
		withinGeofence,
	}
	for _, g := range guards {
		reason, err := g(ctx, s)
		if err != nil {
			return Decision{}, err
		}
		if reason != "" {
			return v.reject(s, reason), nil
		}
	}

	rec, reason, err := v.commit(ctx, s)
	if err != nil {
		return Decision{}, err
	}
	if reason != "" {
		return v.reject(s, reason), nil
	}

	metrics.Verifications.WithLabelValues("Accepted").Inc()
	v.notify(ctx, rec)
	return Decision{Distance: s.distance, Record: &rec}, nil
}

func (v *Verifier) reject(s *submission, reason Reason) Decision {
	metrics.Verifications.WithLabelValues(string(reason)).Inc()
	d := Decision{Reason: reason, Distance: s.distance}
	if reason == ReasonTooFar && s.session != nil && s.session.Anchor != nil {
		a := *s.session.Anchor
		d.Anchor = &a
	}
	return d
}

func (v *Verifier) sessionExists(ctx context.Context, s *submission) (Reason, error) {
	session, err := v.store.FindSession(ctx, s.req.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return ReasonSessionNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	s.session = session
	return "", nil
}

func sessionActive(_ context.Context, s *submission) (Reason, error) {
	if !s.session.Active() {
		return ReasonSessionNotActive, nil
	}
	return "", nil
}

// tokenMatches compares opaque strings with no normalization.
func tokenMatches(_ context.Context, s *submission) (Reason, error) {
	if s.req.Token != s.session.Token {
		return ReasonInvalidToken, nil
	}
	return "", nil
}

func (v *Verifier) notAlreadyMarked(ctx context.Context, s *submission) (Reason, error) {
	rec, err := v.store.FindAttendance(ctx, s.req.SessionID, s.req.StudentID)
	if err != nil {
		return "", fmt.Errorf("find attendance: %w", err)
	}
	if rec != nil {
		return ReasonAlreadyMarked, nil
	}
	return "", nil
}

func (v *Verifier) deviceNotReused(ctx context.Context, s *submission) (Reason, error) {
	rec, err := v.store.FindAttendanceByDevice(ctx, s.req.SessionID, s.req.DeviceID, s.req.StudentID)
	if err != nil {
		return "", fmt.Errorf("find attendance by device: %w", err)
	}
	if rec != nil {
		return ReasonDeviceAlreadyUsed, nil
	}
	return "", nil
}

// withinGeofence compares the raw distance; rounding is for display only.
func withinGeofence(_ context.Context, s *submission) (Reason, error) {
	if !s.session.RequireGPS {
		return "", nil
	}
	if s.req.Location == nil {
		return ReasonGpsRequired, nil
	}
	if !s.req.Location.Valid() {
		return ReasonInvalidCoordinates, nil
	}
	if s.session.Anchor == nil {
		return "", fmt.Errorf("session %d requires gps but has no anchor", s.session.ID)
	}
	s.distance = geo.Distance(*s.session.Anchor, *s.req.Location)
	if s.distance > GeofenceRadiusMeters {
		return ReasonTooFar, nil
	}
	return "", nil
}

func (v *Verifier) commit(ctx context.Context, s *submission) (Record, Reason, error) {
	now := v.now()
	status := StatusPresent
	if v.lateAfter > 0 && now.Sub(s.session.CreatedAt) > v.lateAfter {
		status = StatusLate
	}

	rec, err := v.store.InsertAttendance(ctx, Record{
		ID:         uuid.NewString(),
		SessionID:  s.req.SessionID,
		StudentID:  s.req.StudentID,
		DeviceID:   s.req.DeviceID,
		Status:     status,
		RecordedAt: now,
	}, s.req.Token)
	switch {
	case err == nil:
		return rec, "", nil
	case errors.Is(err, ErrDuplicateRecord):
		return Record{}, ReasonAlreadyMarked, nil
	case errors.Is(err, ErrDeviceInUse):
		return Record{}, ReasonDeviceAlreadyUsed, nil
	case errors.Is(err, ErrSessionNotActive):
		return Record{}, ReasonSessionNotActive, nil
	case errors.Is(err, ErrTokenMismatch):
		return Record{}, ReasonInvalidToken, nil
	default:
		return Record{}, "", fmt.Errorf("insert attendance: %w", err)
	}
}

// notify is best-effort; it runs detached from the request's cancellation.
func (v *Verifier) notify(ctx context.Context, rec Record) {
	if v.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.NotifyFailures.Inc()
			log.Error().Interface("panic", r).Int64("session_id", rec.SessionID).Msg("attendance notifier panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := v.notifier.AttendanceMarked(ctx, rec); err != nil {
		metrics.NotifyFailures.Inc()
		log.Warn().Err(err).Int64("session_id", rec.SessionID).Msg("attendance notification failed")
	}
}

// History lists sessions attended by a student, newest first.
func (v *Verifier) History(ctx context.Context, studentID string, limit int) ([]AttendedSession, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, validationErr("student id required")
	}
	return v.store.ListAttendanceByStudent(ctx, strings.TrimSpace(studentID), clampLimit(limit))
}

// Records lists a session's attendance ascending by time.
func (v *Verifier) Records(ctx context.Context, sessionID int64) ([]Record, error) {
	return v.store.ListBySession(ctx, sessionID)
}
