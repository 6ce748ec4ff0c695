package survey

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dqsurvey/internal/catalog"
)

// Scorer records field scores and keeps the derived averages current.
type Scorer struct {
	store   *Store
	catalog *catalog.Catalog
}

// NewScorer binds a Scorer to a store.
func NewScorer(store *Store, cat *catalog.Catalog) *Scorer {
	return &Scorer{store: store, catalog: cat}
}

// RecordScore stores or removes the score of one field. A nil or empty value
// removes it. Empty group and section are taken from the catalog.
func (s *Scorer) RecordScore(ctx context.Context, fieldID string, value any, group, section string) error {
	if f, ok := s.catalog.Field(fieldID); ok {
		if group == "" {
			group = f.ScoreGroup
		}
		if section == "" {
			section = f.Section
		}
	}
	if group == "" || section == "" {
		return invalidField(section, fieldID, "unknown score field")
	}
	v, present, err := parseScore(value, s.catalog.Scale)
	if err != nil {
		return invalidField(section, fieldID, err.Error())
	}
	return s.store.Update(ctx, func(doc *Document) error {
		if present {
			setScore(doc, fieldID, v, group, section, s.store.now().UTC().Format(isoLayout))
		} else {
			removeScore(doc, fieldID, section)
		}
		refreshDerived(doc, s.catalog)
		return nil
	})
}

// Refresh recomputes and stores the section averages and the overall score.
func (s *Scorer) Refresh(ctx context.Context) error {
	return s.store.Update(ctx, func(doc *Document) error {
		refreshDerived(doc, s.catalog)
		return nil
	})
}

// ComputeSectionAverages returns the arithmetic mean of each section's scores.
// Sections without scores map to nil.
func ComputeSectionAverages(doc Document, sectionIDs []string) map[string]*float64 {
	out := make(map[string]*float64, len(sectionIDs))
	for _, id := range sectionIDs {
		out[id] = mean(doc.Scores.BySection[id])
	}
	for id, scores := range doc.Scores.BySection {
		if _, seen := out[id]; !seen {
			out[id] = mean(scores)
		}
	}
	return out
}

// ComputeOverall is the weighted mean of the non-nil section averages,
// reweighted over the sections present. It is nil when nothing is scored.
// Terms are summed in section id order so the result is bit-for-bit stable.
func ComputeOverall(averages map[string]*float64, weights map[string]float64) *float64 {
	ids := make([]string, 0, len(averages))
	for id := range averages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sum, total float64
	for _, id := range ids {
		avg, w := averages[id], weights[id]
		if avg == nil || w <= 0 {
			continue
		}
		sum += *avg * w
		total += w
	}
	if total == 0 {
		return nil
	}
	overall := sum / total
	return &overall
}

// GroupAverages returns the mean score of each score group.
func GroupAverages(doc Document) map[string]*float64 {
	out := make(map[string]*float64, len(doc.Scores.ByGroup))
	for group, records := range doc.Scores.ByGroup {
		values := make(map[string]int, len(records))
		for _, r := range records {
			values[r.FieldID] = r.Value
		}
		out[group] = mean(values)
	}
	return out
}

// FormatScore renders a score for display with two decimals, or N/A.
func FormatScore(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func mean(scores map[string]int) *float64 {
	if len(scores) == 0 {
		return nil
	}
	total := 0
	for _, v := range scores {
		total += v
	}
	m := float64(total) / float64(len(scores))
	return &m
}

func refreshDerived(doc *Document, cat *catalog.Catalog) {
	doc.Scores.BySectionAverage = ComputeSectionAverages(*doc, cat.SectionIDs())
	doc.Scores.Overall = ComputeOverall(doc.Scores.BySectionAverage, cat.Weights)
}

func setScore(doc *Document, fieldID string, value int, group, section, ts string) {
	doc.normalize()
	removeScore(doc, fieldID, "")
	if doc.Scores.BySection[section] == nil {
		doc.Scores.BySection[section] = map[string]int{}
	}
	doc.Scores.BySection[section][fieldID] = value
	doc.Scores.ByGroup[group] = append(doc.Scores.ByGroup[group], ScoreRecord{
		FieldID:   fieldID,
		Value:     value,
		Section:   section,
		Timestamp: ts,
	})
}

// removeScore drops fieldID from both indexes. An empty section searches all.
func removeScore(doc *Document, fieldID, section string) {
	doc.normalize()
	for id, scores := range doc.Scores.BySection {
		if section != "" && id != section {
			continue
		}
		delete(scores, fieldID)
		if len(scores) == 0 {
			delete(doc.Scores.BySection, id)
		}
	}
	for group, records := range doc.Scores.ByGroup {
		kept := records[:0]
		for _, r := range records {
			if r.FieldID != fieldID {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(doc.Scores.ByGroup, group)
		} else {
			doc.Scores.ByGroup[group] = kept
		}
	}
}

// parseScore accepts ints, integral floats and numeric strings. present is
// false for nil and blank input.
func parseScore(value any, scale catalog.Scale) (v int, present bool, err error) {
	switch x := value.(type) {
	case nil:
		return 0, false, nil
	case int:
		v = x
	case int64:
		v = int(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false, fmt.Errorf("score must be a whole number")
		}
		v = int(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, false, fmt.Errorf("score must be a whole number")
		}
		v = n
	default:
		return 0, false, fmt.Errorf("score must be a whole number")
	}
	if !scale.Contains(v) {
		return 0, false, fmt.Errorf("score must be between %d and %d", scale.Min, scale.Max)
	}
	return v, true, nil
}
