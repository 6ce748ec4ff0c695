// Package catalog holds the declarative description of the survey: which
// sections exist, which fields they contain, how fields are scored, and which
// governing selectors switch between mutually exclusive field groups.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Field kinds.
const (
	KindText   = "text"
	KindNumber = "number"
	KindSelect = "select"
	KindScore  = "score"
	KindBool   = "bool"
)

// Selector modes.
const (
	ModeClear      = "clear"
	ModeVisibility = "visibility"
	ModeRoute      = "route"
)

// Field describes one form input.
type Field struct {
	ID         string   `yaml:"id"`
	Label      string   `yaml:"label"`
	Kind       string   `yaml:"kind"`
	Required   bool     `yaml:"required"`
	ScoreGroup string   `yaml:"group"`
	Options    []string `yaml:"options"`

	Section    string `yaml:"-"`
	Subsection string `yaml:"-"`
}

// IsScore reports whether the field contributes to score aggregation.
func (f Field) IsScore() bool { return f.Kind == KindScore }

// Subsection groups fields inside a section.
type Subsection struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Section is one page of the survey.
type Section struct {
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	Subsections []Subsection `yaml:"subsections"`
}

// Selector is a governing single-choice field and the field groups it switches.
// Route selectors carry Skips instead: selector value -> sections left out of the path.
type Selector struct {
	Field    string              `yaml:"field"`
	Mode     string              `yaml:"mode"`
	CacheKey string              `yaml:"cacheKey"`
	Branches map[string][]string `yaml:"branches"`
	Skips    map[string][]string `yaml:"skips"`
}

// BranchValues returns the selector values in a stable order.
func (s Selector) BranchValues() []string {
	out := make([]string, 0, len(s.Branches))
	for v := range s.Branches {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Scale is the inclusive integer score range.
type Scale struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether v is a valid score.
func (s Scale) Contains(v int) bool { return v >= s.Min && v <= s.Max }

type branchRef struct {
	selector string
	value    string
}

// Catalog is the parsed, indexed survey description.
type Catalog struct {
	Scale     Scale              `yaml:"scale"`
	Weights   map[string]float64 `yaml:"weights"`
	Sections  []Section          `yaml:"sections"`
	Selectors []Selector         `yaml:"selectors"`

	fields    map[string]Field
	selectors map[string]Selector
	branchOf  map[string]branchRef
}

// Default returns the embedded survey catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for package-level wiring and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and indexes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if c.Scale.Min <= 0 || c.Scale.Max < c.Scale.Min {
		return fmt.Errorf("catalog: invalid scale %d..%d", c.Scale.Min, c.Scale.Max)
	}
	if len(c.Sections) == 0 {
		return errors.New("catalog: no sections")
	}
	c.fields = make(map[string]Field)
	for si := range c.Sections {
		sec := &c.Sections[si]
		if _, ok := c.Weights[sec.ID]; !ok {
			return fmt.Errorf("catalog: section %s has no weight", sec.ID)
		}
		for ssi := range sec.Subsections {
			sub := &sec.Subsections[ssi]
			for fi := range sub.Fields {
				f := &sub.Fields[fi]
				f.Section = sec.ID
				f.Subsection = sub.Name
				if strings.TrimSpace(f.ID) == "" {
					return fmt.Errorf("catalog: empty field id in %s.%s", sec.ID, sub.Name)
				}
				if _, dup := c.fields[f.ID]; dup {
					return fmt.Errorf("catalog: duplicate field id %s", f.ID)
				}
				switch f.Kind {
				case KindText, KindNumber, KindSelect, KindBool:
				case KindScore:
					if f.ScoreGroup == "" {
						return fmt.Errorf("catalog: score field %s has no group", f.ID)
					}
				default:
					return fmt.Errorf("catalog: field %s has unknown kind %q", f.ID, f.Kind)
				}
				c.fields[f.ID] = *f
			}
		}
	}

	c.selectors = make(map[string]Selector)
	c.branchOf = make(map[string]branchRef)
	for _, sel := range c.Selectors {
		f, ok := c.fields[sel.Field]
		if !ok {
			return fmt.Errorf("catalog: selector on unknown field %s", sel.Field)
		}
		if f.Kind != KindSelect {
			return fmt.Errorf("catalog: selector field %s is not a select", sel.Field)
		}
		switch sel.Mode {
		case ModeClear, ModeVisibility, ModeRoute:
		default:
			return fmt.Errorf("catalog: selector %s has unknown mode %q", sel.Field, sel.Mode)
		}
		for value, ids := range sel.Branches {
			if !f.hasOption(value) {
				return fmt.Errorf("catalog: selector %s branch %s is not an option", sel.Field, value)
			}
			for _, id := range ids {
				if _, ok := c.fields[id]; !ok {
					return fmt.Errorf("catalog: selector %s branch %s names unknown field %s", sel.Field, value, id)
				}
				if prev, taken := c.branchOf[id]; taken {
					return fmt.Errorf("catalog: field %s belongs to %s=%s and %s=%s", id, prev.selector, prev.value, sel.Field, value)
				}
				c.branchOf[id] = branchRef{selector: sel.Field, value: value}
			}
		}
		for value, secs := range sel.Skips {
			if sel.Mode != ModeRoute {
				return fmt.Errorf("catalog: selector %s declares skips but is not a route selector", sel.Field)
			}
			if !f.hasOption(value) {
				return fmt.Errorf("catalog: selector %s skip value %s is not an option", sel.Field, value)
			}
			for _, sec := range secs {
				if _, ok := c.Section(sec); !ok {
					return fmt.Errorf("catalog: selector %s skips unknown section %s", sel.Field, sec)
				}
			}
		}
		c.selectors[sel.Field] = sel
	}
	return nil
}

func (f Field) hasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// SectionIDs returns the section identifiers in survey order.
func (c *Catalog) SectionIDs() []string {
	out := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		out = append(out, s.ID)
	}
	return out
}

// Section looks up a section definition.
func (c *Catalog) Section(id string) (Section, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Field looks up a field by id.
func (c *Catalog) Field(id string) (Field, bool) {
	f, ok := c.fields[id]
	return f, ok
}

// SectionFields returns the fields of a section in declaration order.
func (c *Catalog) SectionFields(section string) []Field {
	sec, ok := c.Section(section)
	if !ok {
		return nil
	}
	var out []Field
	for _, sub := range sec.Subsections {
		for _, f := range sub.Fields {
			f.Section = sec.ID
			f.Subsection = sub.Name
			out = append(out, f)
		}
	}
	return out
}

// Selector returns the selector governed by fieldID, if any.
func (c *Catalog) Selector(fieldID string) (Selector, bool) {
	s, ok := c.selectors[fieldID]
	return s, ok
}

// SelectorByCacheKey finds the selector mirrored to the given auxiliary key.
func (c *Catalog) SelectorByCacheKey(key string) (Selector, bool) {
	for _, s := range c.Selectors {
		if s.CacheKey == key {
			return s, true
		}
	}
	return Selector{}, false
}

// CacheKeys lists the auxiliary cross-section keys mirrored from selectors.
func (c *Catalog) CacheKeys() []string {
	var out []string
	for _, s := range c.Selectors {
		if s.CacheKey != "" {
			out = append(out, s.CacheKey)
		}
	}
	return out
}

// RouteSelector returns the selector that feeds navigation, if the catalog declares one.
func (c *Catalog) RouteSelector() (Selector, bool) {
	for _, s := range c.Selectors {
		if s.Mode == ModeRoute {
			return s, true
		}
	}
	return Selector{}, false
}

// BranchOf reports which selector value a field is gated by.
func (c *Catalog) BranchOf(fieldID string) (selector, value string, ok bool) {
	ref, ok := c.branchOf[fieldID]
	return ref.selector, ref.value, ok
}

// Weight returns the overall-score weight of a section.
func (c *Catalog) Weight(section string) float64 {
	return c.Weights[section]
}
