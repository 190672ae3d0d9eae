package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"counseling-intake/internal/catalog"
	"counseling-intake/internal/classify"
	"counseling-intake/internal/domain"
	"counseling-intake/internal/scoring"
	"github.com/google/uuid"
)

// RecordStore persists respondent records (Postgres, SQLite, in-memory, optionally behind a cache).
type RecordStore interface {
	CreateRespondent(ctx context.Context, r domain.Respondent) error
	GetRespondent(ctx context.Context, id string) (domain.Respondent, error)
	// SaveScore stores score under its instrument id, replacing an earlier result.
	SaveScore(ctx context.Context, respondentID string, score domain.Score) error
	ListRespondents(ctx context.Context) ([]domain.Respondent, error)
	ClearAll(ctx context.Context) error
}

// SessionRepository abstracts how live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	// Put stores a new session or refreshes a mutated one.
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// Options tune an IntakeService. Zero values are usable.
type Options struct {
	AdminPassword string
	Logger        *slog.Logger
	Now           func() time.Time
	NewID         func() string
}

// IntakeService contains the intake use cases: consent, assessment sessions, results and admin review.
type IntakeService struct {
	records    RecordStore
	sessions   SessionRepository
	catalog    *catalog.Catalog
	engine     *scoring.Engine
	classifier *classify.Classifier
	feed       *Feed
	logger     *slog.Logger

	adminPassword string
	now           func() time.Time
	newID         func() string
}

func NewIntakeService(records RecordStore, sessions SessionRepository, cat *catalog.Catalog, classifier *classify.Classifier, opts Options) *IntakeService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &IntakeService{
		records:       records,
		sessions:      sessions,
		catalog:       cat,
		engine:        scoring.NewEngineWithClock(cat, opts.Now),
		classifier:    classifier,
		feed:          NewFeed(),
		logger:        opts.Logger,
		adminPassword: opts.AdminPassword,
		now:           opts.Now,
		newID:         opts.NewID,
	}
}

// Catalog exposes the instrument catalog the service scores against.
func (s *IntakeService) Catalog() *catalog.Catalog { return s.catalog }

// Classifier exposes the classifier used for results.
func (s *IntakeService) Classifier() *classify.Classifier { return s.classifier }

// RegisterRespondent validates the consent form and creates an empty record.
func (s *IntakeService) RegisterRespondent(ctx context.Context, consent domain.Consent) (domain.Respondent, error) {
	consent = normalizeConsent(consent)
	if err := validateConsent(consent); err != nil {
		return domain.Respondent{}, err
	}
	r := domain.Respondent{
		ID:            s.newID(),
		Consent:       consent,
		Scores:        map[string]domain.Score{},
		DateCompleted: s.now(),
	}
	if err := s.records.CreateRespondent(ctx, r); err != nil {
		return domain.Respondent{}, fmt.Errorf("create respondent: %w", err)
	}
	s.logger.InfoContext(ctx, "respondent registered", "respondent_id", r.ID, "counselor", r.CounselorName)
	return r, nil
}

// StartSession opens a session over the selected instruments, de-duplicated and in catalog id order.
func (s *IntakeService) StartSession(ctx context.Context, respondentID string, instrumentIDs []string) (SessionSnapshot, error) {
	if _, err := s.records.GetRespondent(ctx, respondentID); err != nil {
		return SessionSnapshot{}, err
	}

	seen := make(map[string]bool, len(instrumentIDs))
	ids := make([]string, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if !s.catalog.Has(id) {
			return SessionSnapshot{}, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return SessionSnapshot{}, domain.ErrNoInstruments
	}
	sort.Strings(ids)

	first, err := s.catalog.Get(ids[0])
	if err != nil {
		return SessionSnapshot{}, err
	}
	session := NewSessionWithClock(s.newID(), respondentID, ids, len(first.Questions), s.now)
	s.sessions.Put(session)

	s.logger.InfoContext(ctx, "session started", "session_id", session.ID(), "respondent_id", respondentID, "instruments", ids)
	return session.Snapshot(), nil
}

// Session returns the current state of a session.
func (s *IntakeService) Session(_ context.Context, sessionID string) (SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Answer records the option value for a 0-based question index of the current instrument.
func (s *IntakeService) Answer(_ context.Context, sessionID string, index int, value string) (SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionSnapshot{}, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	snap, err := s.answerLocked(session, index, value)
	session.mu.Unlock()
	if err != nil {
		return SessionSnapshot{}, err
	}
	s.sessions.Put(session)
	return snap, nil
}

func (s *IntakeService) answerLocked(session *Session, index int, value string) (SessionSnapshot, error) {
	instrumentID := session.currentLocked()
	if instrumentID == "" {
		return SessionSnapshot{}, domain.ErrSessionFinished
	}
	in, err := s.catalog.Get(instrumentID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	if index < 0 || index >= len(in.Questions) || index >= len(session.answers) {
		return SessionSnapshot{}, fmt.Errorf("%w: %s has no question %d", domain.ErrQuestionOutOfRange, instrumentID, index)
	}
	if _, ok := in.Questions[index].Points(value); !ok {
		return SessionSnapshot{}, fmt.Errorf("%w: question %d has no option %q", domain.ErrInvalidAnswer, index+1, value)
	}
	session.answers[index] = value
	session.updatedAt = s.now()
	return session.snapshotLocked(), nil
}

// Completion is the outcome of finishing one instrument.
type Completion struct {
	InstrumentID   string          `json:"instrumentId"`
	InstrumentName string          `json:"instrumentName"`
	Score          domain.Score    `json:"score"`
	Level          domain.Level    `json:"level"`
	Session        SessionSnapshot `json:"session"`
}

// Complete scores the current instrument, stores the result and advances the session.
// Nothing is stored when the answers cannot be scored. The session is dropped after its last instrument.
func (s *IntakeService) Complete(ctx context.Context, sessionID string) (Completion, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Completion{}, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	result, err := s.completeLocked(ctx, session)
	session.mu.Unlock()
	if err != nil {
		return Completion{}, err
	}

	if result.Session.Finished {
		s.sessions.Delete(sessionID)
	} else {
		s.sessions.Put(session)
	}

	ev := domain.ScoreEvent{
		RespondentID: session.RespondentID(),
		InstrumentID: result.InstrumentID,
		Score:        result.Score,
		Level:        result.Level,
	}
	if r, err := s.records.GetRespondent(ctx, session.RespondentID()); err == nil {
		ev.Name = r.Name
		ev.CounselorName = r.CounselorName
	}
	s.feed.Publish(ev)

	s.logger.InfoContext(ctx, "instrument completed",
		"session_id", sessionID,
		"respondent_id", session.RespondentID(),
		"instrument_id", result.InstrumentID,
		"raw_score", result.Score.RawScore,
		"level", result.Level.Label,
	)
	return result, nil
}

func (s *IntakeService) completeLocked(ctx context.Context, session *Session) (Completion, error) {
	instrumentID := session.currentLocked()
	if instrumentID == "" {
		return Completion{}, domain.ErrSessionFinished
	}
	in, err := s.catalog.Get(instrumentID)
	if err != nil {
		return Completion{}, err
	}

	score, err := s.engine.Score(instrumentID, session.answers)
	if err != nil {
		return Completion{}, err
	}
	if err := s.records.SaveScore(ctx, session.respondentID, score); err != nil {
		return Completion{}, fmt.Errorf("save score: %w", err)
	}

	nextLen := 0
	if session.current+1 < len(session.instruments) {
		next, err := s.catalog.Get(session.instruments[session.current+1])
		if err != nil {
			return Completion{}, err
		}
		nextLen = len(next.Questions)
	}
	session.advanceLocked(nextLen)

	return Completion{
		InstrumentID:   instrumentID,
		InstrumentName: in.Name,
		Score:          score,
		Level:          s.classifier.LevelOf(score),
		Session:        session.snapshotLocked(),
	}, nil
}

// ScoreAnswers scores and classifies a full answer sequence without storing it.
func (s *IntakeService) ScoreAnswers(instrumentID string, answers []string) (domain.Score, domain.Level, error) {
	score, err := s.engine.Score(instrumentID, answers)
	if err != nil {
		return domain.Score{}, domain.Level{}, err
	}
	return score, s.classifier.LevelOf(score), nil
}

// Subscribe streams completion events until cancel is called.
func (s *IntakeService) Subscribe() (<-chan domain.ScoreEvent, func()) {
	return s.feed.Subscribe()
}

// VerifyAdminPassword checks the shared admin secret.
func (s *IntakeService) VerifyAdminPassword(password string) error {
	if s.adminPassword == "" {
		return domain.ErrAdminNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

func normalizeConsent(c domain.Consent) domain.Consent {
	c.Name = strings.TrimSpace(c.Name)
	c.RollNumber = strings.TrimSpace(c.RollNumber)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	c.CounselorName = strings.TrimSpace(c.CounselorName)
	c.SignatureDate = strings.TrimSpace(c.SignatureDate)
	return c
}

func validateConsent(c domain.Consent) error {
	switch {
	case len([]rune(c.Name)) < 2:
		return fmt.Errorf("%w: name must be at least 2 characters", domain.ErrInvalidConsent)
	case c.RollNumber == "":
		return fmt.Errorf("%w: roll number is required", domain.ErrInvalidConsent)
	case len(c.PhoneNumber) < 10:
		return fmt.Errorf("%w: phone number must be at least 10 digits", domain.ErrInvalidConsent)
	case c.CounselorName == "":
		return fmt.Errorf("%w: counselor name is required", domain.ErrInvalidConsent)
	case c.SignatureDate == "":
		return fmt.Errorf("%w: signature date is required", domain.ErrInvalidConsent)
	}
	return nil
}
