// Package survey is the client-side survey engine: the persisted answer
// document, conditional field handling, score aggregation, navigation and the
// page flow that submits sections to the storage service.
package survey

import (
	"sort"
	"time"
)

// isoLayout matches the millisecond ISO-8601 timestamps stored in documents.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Fields is a flat field-id -> value mapping. Values are strings, float64, int or bool.
type Fields map[string]any

// Section holds the answers of one survey page. Root-level fields live in
// Fields, grouped fields in Subsections.
type Section struct {
	Fields      Fields            `json:"fields,omitempty"`
	Subsections map[string]Fields `json:"subsections,omitempty"`
}

// ScoreRecord is one entry of the per-group score index.
type ScoreRecord struct {
	FieldID   string `json:"fieldId"`
	Value     int    `json:"value"`
	Section   string `json:"section"`
	Timestamp string `json:"timestamp"`
}

// Scores holds raw scores and their derived averages.
type Scores struct {
	BySection        map[string]map[string]int `json:"bySection"`
	ByGroup          map[string][]ScoreRecord  `json:"byGroup"`
	BySectionAverage map[string]*float64       `json:"bySectionAverage"`
	Overall          *float64                  `json:"overall"`
}

// Timestamps records document creation and last mutation.
type Timestamps struct {
	Created      string `json:"created"`
	LastModified string `json:"lastModified"`
}

// Document is the persisted survey state for one scope.
type Document struct {
	Sections   map[string]*Section `json:"sections"`
	Scores     Scores              `json:"scores"`
	Timestamps Timestamps          `json:"timestamps"`
}

// NewDocument returns the default document shape with an empty entry per section.
func NewDocument(now time.Time, sectionIDs []string) Document {
	ts := now.UTC().Format(isoLayout)
	doc := Document{
		Sections:   make(map[string]*Section, len(sectionIDs)),
		Timestamps: Timestamps{Created: ts, LastModified: ts},
	}
	for _, id := range sectionIDs {
		doc.Sections[id] = &Section{}
	}
	doc.normalize()
	return doc
}

// IsEmpty reports whether the document was never initialized.
func (d Document) IsEmpty() bool {
	return d.Timestamps.Created == ""
}

func (d *Document) normalize() {
	if d.Sections == nil {
		d.Sections = map[string]*Section{}
	}
	for id, s := range d.Sections {
		if s == nil {
			d.Sections[id] = &Section{}
		}
	}
	if d.Scores.BySection == nil {
		d.Scores.BySection = map[string]map[string]int{}
	}
	if d.Scores.ByGroup == nil {
		d.Scores.ByGroup = map[string][]ScoreRecord{}
	}
	if d.Scores.BySectionAverage == nil {
		d.Scores.BySectionAverage = map[string]*float64{}
	}
}

func (d *Document) section(id string) *Section {
	d.normalize()
	s, ok := d.Sections[id]
	if !ok {
		s = &Section{}
		d.Sections[id] = s
	}
	return s
}

// merge shallow-merges data into the subsection (or the section root when
// subsection is empty).
func (d *Document) merge(section, subsection string, data Fields) {
	s := d.section(section)
	target := s.Fields
	if subsection != "" {
		if s.Subsections == nil {
			s.Subsections = map[string]Fields{}
		}
		target = s.Subsections[subsection]
	}
	if target == nil {
		target = Fields{}
	}
	for k, v := range data {
		target[k] = v
	}
	if subsection == "" {
		s.Fields = target
	} else {
		s.Subsections[subsection] = target
	}
}

// Value finds a field value anywhere in the section.
func (d Document) Value(section, fieldID string) (any, bool) {
	s, ok := d.Sections[section]
	if !ok || s == nil {
		return nil, false
	}
	if v, ok := s.Fields[fieldID]; ok {
		return v, true
	}
	for _, name := range sortedKeys(s.Subsections) {
		if v, ok := s.Subsections[name][fieldID]; ok {
			return v, true
		}
	}
	return nil, false
}

// Values flattens a section's root and subsection fields into one mapping.
func (d Document) Values(section string) Fields {
	out := Fields{}
	s, ok := d.Sections[section]
	if !ok || s == nil {
		return out
	}
	for _, name := range sortedKeys(s.Subsections) {
		for k, v := range s.Subsections[name] {
			out[k] = v
		}
	}
	for k, v := range s.Fields {
		out[k] = v
	}
	return out
}

// clearField removes fieldID from wherever it is stored in the section.
func (d *Document) clearField(section, fieldID string) {
	s, ok := d.Sections[section]
	if !ok || s == nil {
		return
	}
	delete(s.Fields, fieldID)
	for _, sub := range s.Subsections {
		delete(sub, fieldID)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
