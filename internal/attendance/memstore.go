package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests. It enforces the
// same uniqueness and active-state constraints as the Postgres schema.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*Session
	records  []Record
	byStud   map[recordKey]int
	byDevice map[recordKey]int
}

type recordKey struct {
	session int64
	key     string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		byStud:   make(map[recordKey]int),
		byDevice: make(map[recordKey]int),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.State == "" {
		s.State = StateActive
	}
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) FindSession(_ context.Context, id int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) UpdateSessionToken(_ context.Context, id int64, ownerID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.LecturerID != ownerID || !s.Active() {
		return false, nil
	}
	s.Token = token
	return true, nil
}

func (m *MemoryStore) EndSession(_ context.Context, id int64, ownerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.LecturerID != ownerID || !s.Active() {
		return false, nil
	}
	s.State = StateEnded
	s.EndedAt = &at
	return true, nil
}

func (m *MemoryStore) EndStaleSessions(_ context.Context, startedBefore, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.sessions {
		if s.Active() && s.CreatedAt.Before(startedBefore) {
			s.State = StateEnded
			endedAt := at
			s.EndedAt = &endedAt
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListSessionsByLecturer(_ context.Context, lecturerID string, limit int) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int)
	for _, r := range m.records {
		counts[r.SessionID]++
	}
	var out []SessionSummary
	for _, s := range m.sessions {
		if s.LecturerID != lecturerID {
			continue
		}
		c := s.clone()
		out = append(out, SessionSummary{
			ID:            c.ID,
			UnitCode:      c.UnitCode,
			RequireGPS:    c.RequireGPS,
			State:         c.State,
			CreatedAt:     c.CreatedAt,
			EndedAt:       c.EndedAt,
			AttendedCount: counts[c.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FindAttendance(_ context.Context, sessionID int64, studentID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i, ok := m.byStud[recordKey{sessionID, studentID}]; ok {
		r := m.records[i]
		return &r, nil
	}
	return nil, nil
}

func (m *MemoryStore) FindAttendanceByDevice(_ context.Context, sessionID int64, deviceID, excludeStudentID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i, ok := m.byDevice[recordKey{sessionID, deviceID}]; ok && m.records[i].StudentID != excludeStudentID {
		r := m.records[i]
		return &r, nil
	}
	return nil, nil
}

func (m *MemoryStore) InsertAttendance(_ context.Context, rec Record, token string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[rec.SessionID]
	if !ok || !s.Active() {
		return Record{}, ErrSessionNotActive
	}
	if s.Token != token {
		return Record{}, ErrTokenMismatch
	}
	if _, dup := m.byStud[recordKey{rec.SessionID, rec.StudentID}]; dup {
		return Record{}, ErrDuplicateRecord
	}
	if _, used := m.byDevice[recordKey{rec.SessionID, rec.DeviceID}]; used {
		return Record{}, ErrDeviceInUse
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	m.records = append(m.records, rec)
	i := len(m.records) - 1
	m.byStud[recordKey{rec.SessionID, rec.StudentID}] = i
	m.byDevice[recordKey{rec.SessionID, rec.DeviceID}] = i
	return rec, nil
}

func (m *MemoryStore) ListBySession(_ context.Context, sessionID int64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (m *MemoryStore) ListAttendanceByStudent(_ context.Context, studentID string, limit int) ([]AttendedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AttendedSession
	for _, r := range m.records {
		if r.StudentID != studentID {
			continue
		}
		s := m.sessions[r.SessionID].clone()
		out = append(out, AttendedSession{
			SessionID:        s.ID,
			UnitCode:         s.UnitCode,
			RequireGPS:       s.RequireGPS,
			Status:           r.Status,
			AttendedAt:       r.RecordedAt,
			SessionStartedAt: s.CreatedAt,
			SessionEndedAt:   s.EndedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttendedAt.After(out[j].AttendedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
