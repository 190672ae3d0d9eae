// Package scoring turns a completed answer sequence into raw, subscale and derived scores.
package scoring

import (
	"fmt"
	"math"
	"time"

	"counseling-intake/internal/catalog"
	"counseling-intake/internal/domain"
)

// Engine scores answer sequences against an injected catalog.
type Engine struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

func NewEngine(c *catalog.Catalog) *Engine {
	return NewEngineWithClock(c, time.Now)
}

// NewEngineWithClock allows deterministic timestamps in tests.
func NewEngineWithClock(c *catalog.Catalog, now func() time.Time) *Engine {
	return &Engine{catalog: c, now: now}
}

// Score computes the raw score, subscales and derived scores for one instrument.
// answers must hold exactly one scorable option value per question.
func (e *Engine) Score(instrumentID string, answers []string) (domain.Score, error) {
	in, err := e.catalog.Get(instrumentID)
	if err != nil {
		return domain.Score{}, err
	}
	points, err := itemPoints(in, answers)
	if err != nil {
		return domain.Score{}, err
	}

	raw := 0.0
	for _, p := range points {
		raw += p
	}

	score := domain.Score{
		InstrumentID:   in.ID,
		RawScore:       raw,
		Subscales:      subscales(in.Subscales, points),
		RulesetVersion: e.catalog.Version(),
		CompletedAt:    e.now(),
	}

	switch in.Derived {
	case domain.DerivedSten:
		sten := float64(Sten(raw, in.MaxScore()))
		score.StandardScore = &sten
	case domain.DerivedPercent:
		pct := PercentOfMax(raw, in.MaxScore())
		score.StandardScore = &pct
	}
	if in.UniformLikert5() {
		n := Normalize(raw, len(in.Questions))
		score.NormalizedScore = &n
	}
	return score, nil
}

// Normalize maps a raw score to 0-100 for instruments on a uniform 1-5 scale.
func (e *Engine) Normalize(instrumentID string, raw float64) (int, error) {
	in, err := e.catalog.Get(instrumentID)
	if err != nil {
		return 0, err
	}
	if !in.UniformLikert5() {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotNormalizable, instrumentID)
	}
	return Normalize(raw, len(in.Questions)), nil
}

func itemPoints(in domain.Instrument, answers []string) ([]float64, error) {
	if len(answers) != len(in.Questions) {
		return nil, fmt.Errorf("%w: %s expects %d answers, got %d", domain.ErrInvalidAnswer, in.ID, len(in.Questions), len(answers))
	}
	points := make([]float64, len(answers))
	for i, value := range answers {
		p, ok := in.Questions[i].Points(value)
		if !ok {
			if value == "" {
				return nil, fmt.Errorf("%w: question %d is unanswered", domain.ErrInvalidAnswer, i+1)
			}
			return nil, fmt.Errorf("%w: question %d has no option %q", domain.ErrInvalidAnswer, i+1, value)
		}
		points[i] = p
	}
	return points, nil
}

// subscales interprets each rule over the per-item points. Repeated indices in an
// index-sum rule are counted every time they appear.
func subscales(rules []domain.SubscaleRule, points []float64) map[string]float64 {
	out := make(map[string]float64)
	for _, rule := range rules {
		switch rule.Kind {
		case domain.SubscaleIndexSum:
			sum := 0.0
			for _, item := range rule.Items {
				sum += points[item-1]
			}
			out[rule.Name] = sum
		case domain.SubscaleAlternating:
			for _, name := range rule.Names {
				out[name] = 0
			}
			for i, p := range points {
				out[rule.Names[i%len(rule.Names)]] += p
			}
		}
	}
	return out
}

// Normalize returns round(((raw - n) / (5n - n)) * 100) for n questions scored 1-5.
func Normalize(raw float64, numQuestions int) int {
	minScore := float64(numQuestions)
	maxScore := float64(numQuestions * 5)
	return int(roundHalfUp((raw - minScore) / (maxScore - minScore) * 100))
}

// PercentOfMax returns raw as a percentage of the instrument maximum.
func PercentOfMax(raw, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return raw / maxScore * 100
}

// Sten approximates a standard-ten score linearly: round((raw/max)*10 + 0.5), clamped to 1..10.
// It is not a normed conversion table.
func Sten(raw, maxScore float64) int {
	if maxScore <= 0 {
		return 1
	}
	sten := int(roundHalfUp(raw/maxScore*10 + 0.5))
	return min(10, max(1, sten))
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
