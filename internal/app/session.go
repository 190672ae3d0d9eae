package app

import (
	"sync"
	"time"
)

// Session walks one respondent through an ordered list of instruments.
// Only the answers of the current instrument are held; completed instruments live in the record store.
type Session struct {
	id           string
	respondentID string
	instruments  []string
	now          func() time.Time

	mu        sync.Mutex
	current   int
	answers   []string
	updatedAt time.Time
}

// SessionSnapshot is the serializable view of a session.
type SessionSnapshot struct {
	ID           string    `json:"id"`
	RespondentID string    `json:"respondentId"`
	Instruments  []string  `json:"instruments"`
	Current      int       `json:"current"`
	InstrumentID string    `json:"instrumentId,omitempty"`
	Answers      []string  `json:"answers"`
	Answered     int       `json:"answered"`
	Finished     bool      `json:"finished"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewSession creates a session positioned at the first instrument with firstLen empty answers.
func NewSession(id, respondentID string, instruments []string, firstLen int) *Session {
	return NewSessionWithClock(id, respondentID, instruments, firstLen, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id, respondentID string, instruments []string, firstLen int, now func() time.Time) *Session {
	return &Session{
		id:           id,
		respondentID: respondentID,
		instruments:  append([]string(nil), instruments...),
		now:          now,
		answers:      make([]string, firstLen),
		updatedAt:    now(),
	}
}

// RestoreSession rebuilds a session from a snapshot, e.g. one mirrored to Redis.
func RestoreSession(snap SessionSnapshot) *Session {
	s := NewSession(snap.ID, snap.RespondentID, snap.Instruments, 0)
	s.current = snap.Current
	s.answers = append([]string(nil), snap.Answers...)
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) RespondentID() string { return s.respondentID }

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		ID:           s.id,
		RespondentID: s.respondentID,
		Instruments:  append([]string(nil), s.instruments...),
		Current:      s.current,
		Answers:      append([]string(nil), s.answers...),
		Finished:     s.finishedLocked(),
		UpdatedAt:    s.updatedAt,
	}
	if !snap.Finished {
		snap.InstrumentID = s.instruments[s.current]
	}
	for _, a := range s.answers {
		if a != "" {
			snap.Answered++
		}
	}
	return snap
}

func (s *Session) finishedLocked() bool {
	return s.current >= len(s.instruments)
}

func (s *Session) currentLocked() string {
	if s.finishedLocked() {
		return ""
	}
	return s.instruments[s.current]
}

// advanceLocked moves to the next instrument, which has nextLen questions.
func (s *Session) advanceLocked(nextLen int) {
	s.current++
	s.answers = make([]string, nextLen)
	s.updatedAt = s.now()
}
