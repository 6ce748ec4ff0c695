// Package summary projects a finished survey into a report and exports it.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/sections"
	"dqsurvey/internal/survey"
)

// Display fallbacks for absent values.
const (
	FallbackText   = "N/A"
	FallbackNumber = "0"
)

// Fetcher reads section records from the storage service.
type Fetcher interface {
	FetchSection(ctx context.Context, section int, chain []int64) (sections.Record, error)
}

// Field is one rendered answer.
type Field struct {
	Subsection string
	ID         string
	Label      string
	Value      string
}

// Section is one rendered survey page.
type Section struct {
	ID       string
	Title    string
	RecordID int64
	// Skipped marks a section left out of the survey path.
	Skipped bool
	Average string
	Fields  []Field
}

// Summary is the final report of one survey.
type Summary struct {
	Scope       string
	GeneratedAt time.Time
	Sections    []Section
	Groups      map[string]string
	Overall     string
}

// Projector builds summaries from the local document and the stored records.
type Projector struct {
	Catalog *catalog.Catalog
	Fetcher Fetcher
	Now     func() time.Time
}

// NewProjector constructs a Projector.
func NewProjector(cat *catalog.Catalog, f Fetcher) *Projector {
	return &Projector{Catalog: cat, Fetcher: f, Now: time.Now}
}

// Project fetches every submitted section on the identifier chain and renders
// the report. Sections without an identifier, or whose record is gone, are
// rendered from the local document.
func (p *Projector) Project(ctx context.Context, scope string, doc survey.Document, ids map[string]int64) (Summary, error) {
	out := Summary{
		Scope:       scope,
		GeneratedAt: p.Now().UTC().Truncate(time.Second),
	}
	records := map[string]sections.Record{}
	chain := make([]int64, 0, len(p.Catalog.Sections))

	for _, def := range p.Catalog.Sections {
		id, submitted := ids[def.ID]
		chain = append(chain, id)
		if !submitted {
			continue
		}
		n, ok := sections.SectionNumber(def.ID)
		if !ok {
			continue
		}
		rec, err := p.Fetcher.FetchSection(ctx, n, append([]int64(nil), chain...))
		if err != nil {
			if errors.Is(err, sections.ErrNotFound) {
				continue
			}
			return Summary{}, fmt.Errorf("fetch %s: %w", def.ID, err)
		}
		records[def.ID] = rec
	}

	for _, def := range p.Catalog.Sections {
		sec := Section{ID: def.ID, Title: def.Title}
		_, submitted := ids[def.ID]
		sec.Skipped = !submitted
		var values map[string]any
		if rec, ok := records[def.ID]; ok {
			sec.RecordID = rec.RecordID()
			m, err := recordValues(rec)
			if err != nil {
				return Summary{}, err
			}
			values = m
		} else {
			values = doc.Values(def.ID)
		}
		for _, f := range p.Catalog.SectionFields(def.ID) {
			sec.Fields = append(sec.Fields, Field{
				Subsection: f.Subsection,
				ID:         f.ID,
				Label:      f.Label,
				Value:      FormatValue(f, values[f.ID]),
			})
		}
		out.Sections = append(out.Sections, sec)
	}

	scored := doc
	if len(doc.Scores.BySection) == 0 {
		scored = scoresFromRecords(p.Catalog, records)
	}
	averages := survey.ComputeSectionAverages(scored, p.Catalog.SectionIDs())
	for i := range out.Sections {
		out.Sections[i].Average = survey.FormatScore(averages[out.Sections[i].ID])
	}
	out.Overall = survey.FormatScore(survey.ComputeOverall(averages, p.Catalog.Weights))
	out.Groups = map[string]string{}
	for group, avg := range survey.GroupAverages(scored) {
		out.Groups[group] = survey.FormatScore(avg)
	}
	return out, nil
}

// recordValues decodes a record into catalog-keyed values.
func recordValues(rec sections.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode section%d record: %w", rec.Section(), err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode section%d record: %w", rec.Section(), err)
	}
	return catalog.CamelKeys(raw), nil
}

func scoresFromRecords(cat *catalog.Catalog, records map[string]sections.Record) survey.Document {
	doc := survey.Document{Scores: survey.Scores{
		BySection: map[string]map[string]int{},
		ByGroup:   map[string][]survey.ScoreRecord{},
	}}
	for secID, rec := range records {
		for name, v := range sections.ScoreFields(rec) {
			id := catalog.ToCamel(name)
			f, ok := cat.Field(id)
			if !ok {
				continue
			}
			if doc.Scores.BySection[secID] == nil {
				doc.Scores.BySection[secID] = map[string]int{}
			}
			doc.Scores.BySection[secID][id] = v
			doc.Scores.ByGroup[f.ScoreGroup] = append(doc.Scores.ByGroup[f.ScoreGroup], survey.ScoreRecord{
				FieldID: id,
				Value:   v,
				Section: secID,
			})
		}
	}
	return doc
}

// FormatValue renders a stored value for display, substituting the kind's
// fallback for absent values.
func FormatValue(f catalog.Field, v any) string {
	numeric := f.Kind == catalog.KindNumber || f.Kind == catalog.KindScore
	switch x := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
	if numeric {
		return FallbackNumber
	}
	return FallbackText
}
