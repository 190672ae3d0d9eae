package app

import (
	"context"
	"math"
	"sort"
	"time"

	"counseling-intake/internal/domain"
)

// InstrumentResult is one stored score with its classification.
type InstrumentResult struct {
	InstrumentID   string       `json:"instrumentId"`
	InstrumentName string       `json:"instrumentName"`
	Score          domain.Score `json:"score"`
	Level          domain.Level `json:"level"`
}

// RespondentSummary is the summary report of one respondent.
type RespondentSummary struct {
	ID string `json:"id"`
	domain.Consent
	DateCompleted time.Time          `json:"dateCompleted"`
	Results       []InstrumentResult `json:"results"`
	// Overall is the rounded mean raw score over completed instruments, banded with the default scale.
	Overall      int          `json:"overall"`
	OverallLevel domain.Level `json:"overallLevel"`
}

// RecordFilter narrows the admin record list. Empty fields match everything.
type RecordFilter struct {
	Counselor  string
	Level      string
	MinOverall *int
	MaxOverall *int
}

func (f RecordFilter) matches(sum RespondentSummary) bool {
	if f.Counselor != "" && sum.CounselorName != f.Counselor {
		return false
	}
	if f.Level != "" && sum.OverallLevel.Label != f.Level {
		return false
	}
	if f.MinOverall != nil && sum.Overall < *f.MinOverall {
		return false
	}
	if f.MaxOverall != nil && sum.Overall > *f.MaxOverall {
		return false
	}
	return true
}

// Summary builds the report for one respondent.
func (s *IntakeService) Summary(ctx context.Context, respondentID string) (RespondentSummary, error) {
	r, err := s.records.GetRespondent(ctx, respondentID)
	if err != nil {
		return RespondentSummary{}, err
	}
	return s.summarize(r), nil
}

// Records lists respondent summaries matching filter, newest first. The caller must verify the admin password.
func (s *IntakeService) Records(ctx context.Context, filter RecordFilter) ([]RespondentSummary, error) {
	all, err := s.records.ListRespondents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RespondentSummary, 0, len(all))
	for _, r := range all {
		if r.ID == "" {
			continue
		}
		sum := s.summarize(r)
		if filter.matches(sum) {
			out = append(out, sum)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateCompleted.After(out[j].DateCompleted)
	})
	return out, nil
}

// Counselors returns the distinct counselor names on record, sorted.
func (s *IntakeService) Counselors(ctx context.Context) ([]string, error) {
	all, err := s.records.ListRespondents(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range all {
		if r.CounselorName == "" || seen[r.CounselorName] {
			continue
		}
		seen[r.CounselorName] = true
		out = append(out, r.CounselorName)
	}
	sort.Strings(out)
	return out, nil
}

// ClearAll deletes every respondent record.
func (s *IntakeService) ClearAll(ctx context.Context) error {
	if err := s.records.ClearAll(ctx); err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "all respondent records cleared")
	return nil
}

func (s *IntakeService) summarize(r domain.Respondent) RespondentSummary {
	sum := RespondentSummary{
		ID:            r.ID,
		Consent:       r.Consent,
		DateCompleted: r.DateCompleted,
		Results:       make([]InstrumentResult, 0, len(r.Scores)),
	}

	ids := make([]string, 0, len(r.Scores))
	for id := range r.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0.0
	for _, id := range ids {
		score := r.Scores[id]
		if score.InstrumentID == "" {
			score.InstrumentID = id
		}
		name := id
		if in, err := s.catalog.Get(id); err == nil {
			name = in.Name
		}
		sum.Results = append(sum.Results, InstrumentResult{
			InstrumentID:   id,
			InstrumentName: name,
			Score:          score,
			Level:          s.classifier.LevelOf(score),
		})
		total += score.RawScore
	}
	if len(ids) > 0 {
		sum.Overall = int(math.Floor(total/float64(len(ids)) + 0.5))
	}
	sum.OverallLevel = s.classifier.Level("", float64(sum.Overall), nil)
	return sum
}
