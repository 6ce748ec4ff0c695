package survey

import "dqsurvey/internal/catalog"

// Resolver computes the section path for a processing level.
type Resolver struct {
	order []string
	skips map[string][]string
}

// NewResolver builds a Resolver from the catalog's section order and route selector.
func NewResolver(cat *catalog.Catalog) *Resolver {
	r := &Resolver{order: cat.SectionIDs(), skips: map[string][]string{}}
	if sel, ok := cat.RouteSelector(); ok {
		r.skips = sel.Skips
	}
	return r
}

// Path returns the sections visited for level. Unknown or empty levels visit every section.
func (r *Resolver) Path(level string) []string {
	skipped := map[string]bool{}
	for _, id := range r.skips[level] {
		skipped[id] = true
	}
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !skipped[id] {
			out = append(out, id)
		}
	}
	return out
}

// Next returns the section after current, or false at the end of the survey.
func (r *Resolver) Next(current, level string) (string, bool) {
	return r.step(current, level, 1)
}

// Previous returns the section before current, or false at the start.
func (r *Resolver) Previous(current, level string) (string, bool) {
	return r.step(current, level, -1)
}

// Skipped reports whether section is left out of the path for level.
func (r *Resolver) Skipped(section, level string) bool {
	for _, id := range r.skips[level] {
		if id == section {
			return true
		}
	}
	return false
}

func (r *Resolver) step(current, level string, dir int) (string, bool) {
	idx := -1
	for i, id := range r.order {
		if id == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	for i := idx + dir; i >= 0 && i < len(r.order); i += dir {
		if !r.Skipped(r.order[i], level) {
			return r.order[i], true
		}
	}
	return "", false
}
