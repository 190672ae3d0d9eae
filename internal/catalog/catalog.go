// Package catalog holds the read-only set of instruments a deployment administers.
//
// A Catalog is built once at startup and shared by every session; nothing mutates it
// afterwards, so callers must treat returned instruments as read-only.
package catalog

import (
	"fmt"
	"sort"

	"counseling-intake/internal/domain"
)

// Catalog is an immutable, versioned set of instruments keyed by id.
type Catalog struct {
	version string
	order   []string
	byID    map[string]domain.Instrument
}

// New validates the instruments and builds a catalog from them.
func New(version string, instruments ...domain.Instrument) (*Catalog, error) {
	c := &Catalog{
		version: version,
		byID:    make(map[string]domain.Instrument, len(instruments)),
	}
	for _, in := range instruments {
		if err := validate(in); err != nil {
			return nil, fmt.Errorf("instrument %q: %w", in.ID, err)
		}
		if _, dup := c.byID[in.ID]; dup {
			return nil, fmt.Errorf("instrument %q: duplicate id", in.ID)
		}
		c.byID[in.ID] = in
		c.order = append(c.order, in.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

// Version identifies the scoring ruleset; it is stamped on every Score.
func (c *Catalog) Version() string {
	return c.version
}

// Get returns the instrument with the given id.
func (c *Catalog) Get(id string) (domain.Instrument, error) {
	in, ok := c.byID[id]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, id)
	}
	return in, nil
}

// Has reports whether id is a known instrument.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns the instrument ids in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Instruments returns every instrument sorted by id.
func (c *Catalog) Instruments() []domain.Instrument {
	out := make([]domain.Instrument, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func validate(in domain.Instrument) error {
	if in.ID == "" {
		return fmt.Errorf("missing id")
	}
	if len(in.Questions) == 0 {
		return fmt.Errorf("no questions")
	}
	for i, q := range in.Questions {
		if len(q.Options) == 0 {
			return fmt.Errorf("question %d: no options", i+1)
		}
		for _, opt := range q.Options {
			if _, ok := q.Scoring[opt.Value]; !ok {
				return fmt.Errorf("question %d: option %q has no points", i+1, opt.Value)
			}
		}
	}
	for _, rule := range in.Subscales {
		switch rule.Kind {
		case domain.SubscaleIndexSum:
			if rule.Name == "" {
				return fmt.Errorf("index-sum subscale without name")
			}
			for _, item := range rule.Items {
				if item < 1 || item > len(in.Questions) {
					return fmt.Errorf("subscale %s: item %d out of range", rule.Name, item)
				}
			}
		case domain.SubscaleAlternating:
			if len(rule.Names) == 0 {
				return fmt.Errorf("alternating subscale without names")
			}
		default:
			return fmt.Errorf("unknown subscale kind %q", rule.Kind)
		}
	}
	switch in.Derived {
	case domain.DerivedNone, domain.DerivedSten, domain.DerivedPercent:
	default:
		return fmt.Errorf("unknown derived score %q", in.Derived)
	}
	return nil
}
