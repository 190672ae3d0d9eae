// Package classify maps scores to severity or performance labels.
//
// Every instrument owns its own decision table; bands are checked from the most severe
// down and the first match wins. Classification never fails: non-finite inputs count
// as zero and unknown instruments fall back to the default banding.
package classify

import (
	"math"

	"counseling-intake/internal/domain"
	"counseling-intake/internal/scoring"
)

// Input selects the value a rule's bands are compared against.
type Input int

const (
	InputRaw Input = iota
	// InputPercentOfMax compares raw/Max*100.
	InputPercentOfMax
	// InputSten compares the linear sten approximation over Max.
	InputSten
)

// Band matches when the value is >= Min, or > Min when Exclusive is set.
type Band struct {
	Label     string
	Min       float64
	Exclusive bool
}

func (b Band) matches(v float64) bool {
	if b.Exclusive {
		return v > b.Min
	}
	return v >= b.Min
}

// SubscaleBand matches when any listed subscale reaches its minimum.
type SubscaleBand struct {
	Label string
	Min   map[string]float64
}

func (b SubscaleBand) matches(subscales map[string]float64) bool {
	for name, threshold := range b.Min {
		if finite(subscales[name]) >= threshold {
			return true
		}
	}
	return false
}

// Rule is the decision table of one instrument.
type Rule struct {
	Input Input
	Max   float64

	// Used instead of Bands when a non-empty subscale map is supplied.
	SubscaleBands []SubscaleBand
	SubscaleFloor string

	Bands []Band
	Floor string
}

func (r Rule) classify(raw float64, subscales map[string]float64) string {
	if len(r.SubscaleBands) > 0 && len(subscales) > 0 {
		for _, b := range r.SubscaleBands {
			if b.matches(subscales) {
				return b.Label
			}
		}
		return r.SubscaleFloor
	}

	v := raw
	switch r.Input {
	case InputPercentOfMax:
		v = scoring.PercentOfMax(raw, r.Max)
	case InputSten:
		v = float64(scoring.Sten(raw, r.Max))
	}
	for _, b := range r.Bands {
		if b.matches(v) {
			return b.Label
		}
	}
	return r.Floor
}

func (r Rule) labels() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(label string) {
		if label != "" && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	for _, b := range r.SubscaleBands {
		add(b.Label)
	}
	add(r.SubscaleFloor)
	for _, b := range r.Bands {
		add(b.Label)
	}
	add(r.Floor)
	return out
}

// Classifier evaluates per-instrument rules with a fallback for unknown ids.
type Classifier struct {
	rules    map[string]Rule
	fallback Rule
	colors   map[string]string
}

// New builds a classifier from explicit rules. colors maps labels to presentation tags.
func New(rules map[string]Rule, fallback Rule, colors map[string]string) *Classifier {
	return &Classifier{rules: rules, fallback: fallback, colors: colors}
}

// Default returns the classifier for the shipped instrument catalog.
func Default() *Classifier {
	return New(DefaultRules(), DefaultFallback(), DefaultColors())
}

// Classify returns the label for a score. subscales may be nil.
func (c *Classifier) Classify(instrumentID string, raw float64, subscales map[string]float64) string {
	return c.rule(instrumentID).classify(finite(raw), subscales)
}

// Level returns the label together with its color tag.
func (c *Classifier) Level(instrumentID string, raw float64, subscales map[string]float64) domain.Level {
	label := c.Classify(instrumentID, raw, subscales)
	return domain.Level{Label: label, Color: c.Color(label)}
}

// Color returns the color tag of a label, "gray" when it has none.
func (c *Classifier) Color(label string) string {
	if color, ok := c.colors[label]; ok {
		return color
	}
	return "gray"
}

// LevelOf classifies a stored score.
func (c *Classifier) LevelOf(score domain.Score) domain.Level {
	return c.Level(score.InstrumentID, score.RawScore, score.Subscales)
}

// Labels lists every label an instrument can produce, most severe first.
func (c *Classifier) Labels(instrumentID string) []string {
	return c.rule(instrumentID).labels()
}

func (c *Classifier) rule(instrumentID string) Rule {
	if r, ok := c.rules[instrumentID]; ok {
		return r
	}
	return c.fallback
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
