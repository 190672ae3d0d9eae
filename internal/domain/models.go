package domain

import "time"

// AnswerOption is one selectable choice of a question.
type AnswerOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Question is one item of an instrument with its options and point values.
type Question struct {
	Text    string             `json:"text"`
	Options []AnswerOption     `json:"options"`
	Scoring map[string]float64 `json:"scoring"`
}

// Points returns the point value of an option, false if the value is not scorable.
func (q Question) Points(value string) (float64, bool) {
	p, ok := q.Scoring[value]
	return p, ok
}

// SubscaleKind tags how a subscale rule aggregates item points.
type SubscaleKind string

const (
	// SubscaleIndexSum sums a named, fixed list of 1-based item indices.
	SubscaleIndexSum SubscaleKind = "index-sum"
	// SubscaleAlternating assigns item i to Names[i mod len(Names)].
	SubscaleAlternating SubscaleKind = "alternating"
)

// SubscaleRule describes one instrument-specific aggregation.
type SubscaleRule struct {
	Kind  SubscaleKind `json:"kind"`
	Name  string       `json:"name,omitempty"`
	Items []int        `json:"items,omitempty"`
	Names []string     `json:"names,omitempty"`
}

// DerivedKind selects the standard score computed next to the raw score.
type DerivedKind string

const (
	DerivedNone    DerivedKind = ""
	DerivedSten    DerivedKind = "sten"
	DerivedPercent DerivedKind = "percent-of-max"
)

// Instrument is one named questionnaire.
type Instrument struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Questions []Question     `json:"questions"`
	Subscales []SubscaleRule `json:"subscales,omitempty"`
	Derived   DerivedKind    `json:"derived,omitempty"`
}

// MaxScore is the highest raw score the instrument can produce.
func (in Instrument) MaxScore() float64 {
	total := 0.0
	for _, q := range in.Questions {
		first := true
		best := 0.0
		for _, p := range q.Scoring {
			if first || p > best {
				best = p
				first = false
			}
		}
		total += best
	}
	return total
}

// UniformLikert5 reports whether every question scores exactly the points 1 through 5.
func (in Instrument) UniformLikert5() bool {
	if len(in.Questions) == 0 {
		return false
	}
	for _, q := range in.Questions {
		if len(q.Scoring) != 5 {
			return false
		}
		seen := make(map[float64]bool, 5)
		for _, p := range q.Scoring {
			seen[p] = true
		}
		for p := 1.0; p <= 5; p++ {
			if !seen[p] {
				return false
			}
		}
	}
	return true
}

// Score is the result of scoring one completed instrument.
type Score struct {
	InstrumentID    string             `json:"instrumentId"`
	RawScore        float64            `json:"rawScore"`
	Subscales       map[string]float64 `json:"subscales,omitempty"`
	StandardScore   *float64           `json:"standardScore,omitempty"`
	NormalizedScore *int               `json:"normalizedScore,omitempty"`
	RulesetVersion  string             `json:"rulesetVersion,omitempty"`
	CompletedAt     time.Time          `json:"completedAt"`
}

// Level is a classification label with its presentation color tag.
type Level struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Consent holds the identity fields captured on the consent form.
type Consent struct {
	Name          string `json:"name"`
	RollNumber    string `json:"rollNumber"`
	PhoneNumber   string `json:"phoneNumber"`
	CounselorName string `json:"counselorName"`
	SignatureDate string `json:"signatureDate"`
}

// Respondent is the stored record of one student: identity plus completed scores keyed by instrument id.
type Respondent struct {
	ID string `json:"id"`
	Consent
	Scores        map[string]Score `json:"scores"`
	DateCompleted time.Time        `json:"dateCompleted"`
}

// ScoreEvent is published whenever a respondent completes an instrument.
type ScoreEvent struct {
	RespondentID  string `json:"respondentId"`
	Name          string `json:"name"`
	CounselorName string `json:"counselorName"`
	InstrumentID  string `json:"instrumentId"`
	Score         Score  `json:"score"`
	Level         Level  `json:"level"`
}
