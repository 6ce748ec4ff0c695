package survey

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dqsurvey/internal/catalog"
)

// Form is the restored state of one section page.
type Form struct {
	Section string
	Values  Fields
	// Visible maps every catalog field of the section to whether it is shown
	// under the current selector values.
	Visible map[string]bool
}

// Gateway maps form fields onto the store and applies the selector table.
type Gateway struct {
	store   *Store
	catalog *catalog.Catalog
}

// NewGateway binds a Gateway to a store.
func NewGateway(store *Store, cat *catalog.Catalog) *Gateway {
	return &Gateway{store: store, catalog: cat}
}

// Restore returns the saved values of a section and their visibility.
func (g *Gateway) Restore(ctx context.Context, section string) (Form, error) {
	if _, ok := g.catalog.Section(section); !ok {
		return Form{}, fmt.Errorf("unknown section %q", section)
	}
	doc, err := g.store.Get(ctx)
	if err != nil {
		return Form{}, err
	}
	selected, err := g.selectorValues(ctx, doc)
	if err != nil {
		return Form{}, err
	}
	saved := doc.Values(section)
	values := Fields{}
	for _, f := range g.catalog.SectionFields(section) {
		if v, ok := saved[f.ID]; ok {
			values[f.ID] = v
		}
	}
	return Form{Section: section, Values: values, Visible: g.visibility(section, selected)}, nil
}

// Visible reports which fields of a section are currently shown.
func (g *Gateway) Visible(ctx context.Context, section string) (map[string]bool, error) {
	form, err := g.Restore(ctx, section)
	if err != nil {
		return nil, err
	}
	return form.Visible, nil
}

// Set persists one field value. Empty values clear the field. Score fields
// update the score index, and governing selectors clear the fields of every
// other branch before the new value becomes authoritative.
func (g *Gateway) Set(ctx context.Context, fieldID string, value any) error {
	f, ok := g.catalog.Field(fieldID)
	if !ok {
		return invalidField("", fieldID, "unknown field")
	}
	v, err := normalizeValue(f, value, g.catalog.Scale)
	if err != nil {
		return invalidField(f.Section, fieldID, err.Error())
	}
	sel, isSelector := g.catalog.Selector(fieldID)
	selected, _ := v.(string)

	err = g.store.Update(ctx, func(doc *Document) error {
		if v == nil {
			doc.clearField(f.Section, fieldID)
		} else {
			doc.merge(f.Section, f.Subsection, Fields{fieldID: v})
		}
		if f.IsScore() {
			if n, ok := v.(int); ok {
				setScore(doc, fieldID, n, f.ScoreGroup, f.Section, g.store.now().UTC().Format(isoLayout))
			} else {
				removeScore(doc, fieldID, "")
			}
		}
		if isSelector {
			applySelector(doc, g.catalog, sel, selected)
		}
		refreshDerived(doc, g.catalog)
		return nil
	})
	if err != nil {
		return err
	}
	if isSelector && sel.CacheKey != "" {
		return g.store.SetSelectorCache(ctx, sel.CacheKey, selected)
	}
	return nil
}

// Sanitize returns the section values ready for submission. Fields hidden by
// the current selector values are nulled in the returned form only; the
// stored document is not touched.
func (g *Gateway) Sanitize(ctx context.Context, section string) (Form, error) {
	if _, ok := g.catalog.Section(section); !ok {
		return Form{}, fmt.Errorf("unknown section %q", section)
	}
	doc, err := g.store.Get(ctx)
	if err != nil {
		return Form{}, err
	}
	selected, err := g.selectorValues(ctx, doc)
	if err != nil {
		return Form{}, err
	}
	visible := g.visibility(section, selected)
	saved := doc.Values(section)
	values := Fields{}
	for _, f := range g.catalog.SectionFields(section) {
		v, ok := saved[f.ID]
		switch {
		case !ok:
		case visible[f.ID]:
			values[f.ID] = v
		default:
			values[f.ID] = nil
		}
	}
	return Form{Section: section, Values: values, Visible: visible}, nil
}

// DropHiddenScores removes the scores of fields that Sanitize nulled, so the
// averages match what the storage service accepted. Flow calls it only after
// the section was stored.
func (g *Gateway) DropHiddenScores(ctx context.Context, section string) error {
	if _, ok := g.catalog.Section(section); !ok {
		return fmt.Errorf("unknown section %q", section)
	}
	return g.store.Update(ctx, func(doc *Document) error {
		selected, err := g.selectorValues(ctx, *doc)
		if err != nil {
			return err
		}
		visible := g.visibility(section, selected)
		for _, f := range g.catalog.SectionFields(section) {
			if f.IsScore() && !visible[f.ID] {
				removeScore(doc, f.ID, section)
			}
		}
		refreshDerived(doc, g.catalog)
		return nil
	})
}

// applySelector is the single dispatcher over the catalog's selector table.
func applySelector(doc *Document, cat *catalog.Catalog, sel catalog.Selector, value string) {
	if sel.Mode != catalog.ModeClear {
		return
	}
	for branch, ids := range sel.Branches {
		if branch == value {
			continue
		}
		for _, id := range ids {
			f, ok := cat.Field(id)
			if !ok {
				continue
			}
			doc.clearField(f.Section, id)
			removeScore(doc, id, "")
		}
	}
}

// selectorValues reads each selector's current value from the document,
// falling back to its cache key for selectors that live on another page.
func (g *Gateway) selectorValues(ctx context.Context, doc Document) (map[string]string, error) {
	out := map[string]string{}
	for _, sel := range g.catalog.Selectors {
		f, ok := g.catalog.Field(sel.Field)
		if !ok {
			continue
		}
		if v, ok := doc.Value(f.Section, sel.Field); ok {
			if s, ok := v.(string); ok && s != "" {
				out[sel.Field] = s
				continue
			}
		}
		if sel.CacheKey == "" {
			continue
		}
		v, ok, err := g.store.SelectorCache(ctx, sel.CacheKey)
		if err != nil {
			return nil, err
		}
		if ok {
			out[sel.Field] = v
		}
	}
	return out, nil
}

func (g *Gateway) visibility(section string, selected map[string]string) map[string]bool {
	out := map[string]bool{}
	for _, f := range g.catalog.SectionFields(section) {
		sel, branch, gated := g.catalog.BranchOf(f.ID)
		out[f.ID] = !gated || selected[sel] == branch
	}
	return out
}

// normalizeValue coerces raw input to the stored representation of the
// field's kind. A nil result clears the field.
func normalizeValue(f catalog.Field, value any, scale catalog.Scale) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
		if value == "" {
			return nil, nil
		}
	}
	switch f.Kind {
	case catalog.KindText:
		return fmt.Sprint(value), nil
	case catalog.KindSelect:
		s := fmt.Sprint(value)
		for _, o := range f.Options {
			if o == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
	case catalog.KindNumber:
		switch x := value.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case string:
			n, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("must be a number")
			}
			return n, nil
		}
		return nil, fmt.Errorf("must be a number")
	case catalog.KindBool:
		switch x := value.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(x) {
			case "yes", "y":
				return true, nil
			case "no", "n":
				return false, nil
			}
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("must be yes or no")
			}
			return b, nil
		}
		return nil, fmt.Errorf("must be yes or no")
	case catalog.KindScore:
		n, present, err := parseScore(value, scale)
		if err != nil || !present {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unsupported field kind %q", f.Kind)
}
