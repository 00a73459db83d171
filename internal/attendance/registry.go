package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"classattend/internal/geo"
	"classattend/internal/metrics"
	"classattend/internal/token"
)

// StartRequest holds the inputs for opening a session.
type StartRequest struct {
	UnitCode   string
	LecturerID string
	RequireGPS bool
	Anchor     *geo.Point
}

// Registry owns the session lifecycle: Active -> Active on rotation, Active -> Ended on end.
type Registry struct {
	store SessionStore
	issue token.Issuer
	now   func() time.Time
}

// NewRegistry creates a registry. A nil issuer falls back to token.Issue.
func NewRegistry(store SessionStore, issue token.Issuer) *Registry {
	if issue == nil {
		issue = token.Issue
	}
	return &Registry{store: store, issue: issue, now: func() time.Time { return time.Now().UTC() }}
}

// Start validates the request, issues the first token and persists an active session.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*Session, error) {
	unit := strings.TrimSpace(req.UnitCode)
	lecturer := strings.TrimSpace(req.LecturerID)
	if unit == "" {
		return nil, validationErr("unit code required")
	}
	if lecturer == "" {
		return nil, validationErr("lecturer id required")
	}

	var anchor *geo.Point
	if req.RequireGPS {
		if req.Anchor == nil {
			return nil, validationErr("anchor location required when gps is required")
		}
		if !req.Anchor.Valid() {
			return nil, validationErr("anchor location must be finite")
		}
		a := *req.Anchor
		anchor = &a
	}

	tok, err := r.issue()
	if err != nil {
		return nil, err
	}

	s := &Session{
		UnitCode:   unit,
		LecturerID: lecturer,
		Token:      tok,
		Anchor:     anchor,
		RequireGPS: req.RequireGPS,
		State:      StateActive,
		CreatedAt:  r.now(),
	}
	if err := r.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionEvents.WithLabelValues("started").Inc()
	log.Info().Int64("session_id", s.ID).Str("unit_code", unit).Bool("require_gps", s.RequireGPS).Msg("session started")
	return s, nil
}

// RotateToken replaces the current token of an active session owned by lecturerID.
// Already recorded attendance is unaffected.
func (r *Registry) RotateToken(ctx context.Context, sessionID int64, lecturerID string) (string, error) {
	if err := checkOwnerArgs(sessionID, lecturerID); err != nil {
		return "", err
	}
	tok, err := r.issue()
	if err != nil {
		return "", err
	}
	ok, err := r.store.UpdateSessionToken(ctx, sessionID, strings.TrimSpace(lecturerID), tok)
	if err != nil {
		return "", fmt.Errorf("rotate token: %w", err)
	}
	if !ok {
		return "", ErrNotFoundOrForbidden
	}
	metrics.SessionEvents.WithLabelValues("rotated").Inc()
	return tok, nil
}

// End moves an active session owned by lecturerID to the terminal Ended state.
func (r *Registry) End(ctx context.Context, sessionID int64, lecturerID string) error {
	if err := checkOwnerArgs(sessionID, lecturerID); err != nil {
		return err
	}
	ok, err := r.store.EndSession(ctx, sessionID, strings.TrimSpace(lecturerID), r.now())
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if !ok {
		return ErrNotFoundOrForbidden
	}
	metrics.SessionEvents.WithLabelValues("ended").Inc()
	log.Info().Int64("session_id", sessionID).Msg("session ended")
	return nil
}

// Owned returns a session in any state if lecturerID owns it.
func (r *Registry) Owned(ctx context.Context, sessionID int64, lecturerID string) (*Session, error) {
	if err := checkOwnerArgs(sessionID, lecturerID); err != nil {
		return nil, err
	}
	s, err := r.store.FindSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	if s.LecturerID != strings.TrimSpace(lecturerID) {
		return nil, ErrNotFoundOrForbidden
	}
	return s, nil
}

// History lists the lecturer's sessions, newest first.
func (r *Registry) History(ctx context.Context, lecturerID string, limit int) ([]SessionSummary, error) {
	if strings.TrimSpace(lecturerID) == "" {
		return nil, validationErr("lecturer id required")
	}
	return r.store.ListSessionsByLecturer(ctx, strings.TrimSpace(lecturerID), clampLimit(limit))
}

// ExpireStale ends sessions that have been active longer than maxAge.
func (r *Registry) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := r.now()
	n, err := r.store.EndStaleSessions(ctx, now.Add(-maxAge), now)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	if n > 0 {
		metrics.SessionEvents.WithLabelValues("expired").Add(float64(n))
	}
	return n, nil
}

func checkOwnerArgs(sessionID int64, lecturerID string) error {
	if sessionID <= 0 {
		return ErrNotFoundOrForbidden
	}
	if strings.TrimSpace(lecturerID) == "" {
		return validationErr("lecturer id required")
	}
	return nil
}
