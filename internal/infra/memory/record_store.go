package memory

import (
	"context"
	"fmt"
	"sync"

	"counseling-intake/internal/domain"
)

// RecordStore keeps respondent records in process memory.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.Respondent
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]domain.Respondent)}
}

func (s *RecordStore) CreateRespondent(_ context.Context, r domain.Respondent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("respondent %s already exists", r.ID)
	}
	s.records[r.ID] = clone(r)
	return nil
}

func (s *RecordStore) GetRespondent(_ context.Context, id string) (domain.Respondent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return domain.Respondent{}, fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, id)
	}
	return clone(r), nil
}

func (s *RecordStore) SaveScore(_ context.Context, respondentID string, score domain.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[respondentID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, respondentID)
	}
	if r.Scores == nil {
		r.Scores = make(map[string]domain.Score)
	}
	r.Scores[score.InstrumentID] = score
	s.records[respondentID] = r
	return nil
}

func (s *RecordStore) ListRespondents(_ context.Context) ([]domain.Respondent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Respondent, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *RecordStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.Respondent)
	return nil
}

// clone copies the scores map so callers never share it with the store.
func clone(r domain.Respondent) domain.Respondent {
	scores := make(map[string]domain.Score, len(r.Scores))
	for id, sc := range r.Scores {
		scores[id] = sc
	}
	r.Scores = scores
	return r
}
