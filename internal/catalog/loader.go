package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"counseling-intake/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var defaultDocument []byte

type document struct {
	Version     string                 `yaml:"version"`
	Scales      map[string][]optionDef `yaml:"scales"`
	Instruments []instrumentDef        `yaml:"instruments"`
}

type optionDef struct {
	Value  string  `yaml:"value"`
	Label  string  `yaml:"label"`
	Color  string  `yaml:"color"`
	Points float64 `yaml:"points"`
}

type bookletDef struct {
	Count  int    `yaml:"count"`
	Prompt string `yaml:"prompt"`
}

type instrumentDef struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Scales    []string      `yaml:"scales"`
	Expand    []string      `yaml:"expand"`
	Booklet   *bookletDef   `yaml:"booklet"`
	Questions []questionDef `yaml:"questions"`
	Subscales []subscaleDef `yaml:"subscales"`
	Derived   string        `yaml:"derived"`
}

type questionDef struct {
	Text    string `yaml:"text"`
	Scale   string `yaml:"scale"`
	Reverse bool   `yaml:"reverse"`
}

// UnmarshalYAML accepts either a bare prompt string or a mapping.
func (q *questionDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		q.Text = node.Value
		return nil
	}
	type plain questionDef
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*q = questionDef(p)
	return nil
}

type subscaleDef struct {
	Kind  string   `yaml:"kind"`
	Name  string   `yaml:"name"`
	Items []int    `yaml:"items"`
	Names []string `yaml:"names"`
}

// Default builds the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Load(defaultDocument)
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(data)
}

// Load decodes a YAML catalog document and validates every instrument.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	instruments := make([]domain.Instrument, 0, len(doc.Instruments))
	for _, def := range doc.Instruments {
		in, err := buildInstrument(def, doc.Scales)
		if err != nil {
			return nil, fmt.Errorf("instrument %q: %w", def.ID, err)
		}
		instruments = append(instruments, in)
	}
	return New(doc.Version, instruments...)
}

func buildInstrument(def instrumentDef, scales map[string][]optionDef) (domain.Instrument, error) {
	if len(def.Scales) == 0 {
		return domain.Instrument{}, fmt.Errorf("no scales declared")
	}

	prompts := def.Questions
	if def.Booklet != nil {
		prompts = make([]questionDef, def.Booklet.Count)
		for i := range prompts {
			prompts[i] = questionDef{Text: fmt.Sprintf(def.Booklet.Prompt, i+1)}
		}
	}
	if len(def.Expand) > 0 {
		expanded := make([]questionDef, 0, len(prompts)*len(def.Expand))
		for _, p := range prompts {
			for _, tmpl := range def.Expand {
				q := p
				q.Text = fmt.Sprintf(tmpl, p.Text)
				expanded = append(expanded, q)
			}
		}
		prompts = expanded
	}

	questions := make([]domain.Question, 0, len(prompts))
	for i, p := range prompts {
		scaleName := p.Scale
		if scaleName == "" {
			scaleName = def.Scales[i%len(def.Scales)]
		}
		opts, ok := scales[scaleName]
		if !ok || len(opts) == 0 {
			return domain.Instrument{}, fmt.Errorf("question %d: unknown scale %q", i+1, scaleName)
		}
		questions = append(questions, buildQuestion(p, opts))
	}

	subscales := make([]domain.SubscaleRule, 0, len(def.Subscales))
	for _, s := range def.Subscales {
		subscales = append(subscales, domain.SubscaleRule{
			Kind:  domain.SubscaleKind(s.Kind),
			Name:  s.Name,
			Items: s.Items,
			Names: s.Names,
		})
	}

	return domain.Instrument{
		ID:        def.ID,
		Name:      def.Name,
		Questions: questions,
		Subscales: subscales,
		Derived:   domain.DerivedKind(def.Derived),
	}, nil
}

func buildQuestion(def questionDef, opts []optionDef) domain.Question {
	lo, hi := opts[0].Points, opts[0].Points
	for _, o := range opts {
		lo = min(lo, o.Points)
		hi = max(hi, o.Points)
	}
	q := domain.Question{
		Text:    def.Text,
		Options: make([]domain.AnswerOption, 0, len(opts)),
		Scoring: make(map[string]float64, len(opts)),
	}
	for _, o := range opts {
		points := o.Points
		if def.Reverse {
			points = lo + hi - points
		}
		q.Options = append(q.Options, domain.AnswerOption{Value: o.Value, Label: o.Label, Color: o.Color})
		q.Scoring[o.Value] = points
	}
	return q
}
