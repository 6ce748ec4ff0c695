package survey

import (
	"context"
	"fmt"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/sections"
	"dqsurvey/internal/shared/telemetry"
	"dqsurvey/internal/survey/kv"
)

// SectionService persists and fetches section records on the storage service.
type SectionService interface {
	CreateSection(ctx context.Context, rec sections.Record) (int64, error)
	FetchSection(ctx context.Context, section int, chain []int64) (sections.Record, error)
}

// SubmitResult is the outcome of a successful section submission.
type SubmitResult struct {
	Section string
	ID      int64
	// Next is empty when the submitted section was the last one.
	Next string
}

// Flow drives the survey page by page for one scope.
type Flow struct {
	Catalog  *catalog.Catalog
	Store    *Store
	Session  *Session
	Gateway  *Gateway
	Scorer   *Scorer
	Resolver *Resolver
	Service  SectionService
}

// NewFlow wires the survey components over one backend and scope.
func NewFlow(cat *catalog.Catalog, backend kv.Store, scope string, svc SectionService, opts ...StoreOption) *Flow {
	store := NewStore(backend, scope, cat, opts...)
	return &Flow{
		Catalog:  cat,
		Store:    store,
		Session:  NewSession(backend, scope, cat),
		Gateway:  NewGateway(store, cat),
		Scorer:   NewScorer(store, cat),
		Resolver: NewResolver(cat),
		Service:  svc,
	}
}

// ProcessingLevel returns the current route selector value, re-read on every call.
func (f *Flow) ProcessingLevel(ctx context.Context) (string, error) {
	sel, ok := f.Catalog.RouteSelector()
	if !ok {
		return "", nil
	}
	if sel.CacheKey != "" {
		v, ok, err := f.Store.SelectorCache(ctx, sel.CacheKey)
		if err != nil {
			return "", err
		}
		if ok {
			return v, nil
		}
	}
	doc, err := f.Store.Get(ctx)
	if err != nil {
		return "", err
	}
	field, _ := f.Catalog.Field(sel.Field)
	v, _ := doc.Value(field.Section, sel.Field)
	s, _ := v.(string)
	return s, nil
}

// Path returns the sections visited under the current processing level.
func (f *Flow) Path(ctx context.Context) ([]string, error) {
	level, err := f.ProcessingLevel(ctx)
	if err != nil {
		return nil, err
	}
	return f.Resolver.Path(level), nil
}

// Enter initializes the document, checks that prior sections were submitted
// and restores the page.
func (f *Flow) Enter(ctx context.Context, section string) (Form, error) {
	if err := f.Store.Init(ctx); err != nil {
		return Form{}, err
	}
	if _, err := f.require(ctx, section); err != nil {
		return Form{}, err
	}
	return f.Gateway.Restore(ctx, section)
}

// Submit validates a section, sends it to the storage service and records
// the returned identifier. Nothing is sent when a prior section is missing
// or local validation fails, and local state is left untouched when the
// service rejects the record.
func (f *Flow) Submit(ctx context.Context, section string) (SubmitResult, error) {
	ids, err := f.require(ctx, section)
	if err != nil {
		return SubmitResult{}, err
	}
	form, err := f.Gateway.Sanitize(ctx, section)
	if err != nil {
		return SubmitResult{}, err
	}
	rec, err := BuildPayload(f.Catalog, section, form.Values, ids)
	if err != nil {
		return SubmitResult{}, err
	}
	id, err := f.Service.CreateSection(ctx, rec)
	if err != nil {
		telemetry.Warn("survey.submit_failed", map[string]any{
			"scope":   f.Store.Scope(),
			"section": section,
			"error":   err,
		})
		return SubmitResult{}, err
	}
	if err := f.Session.SetID(ctx, section, id); err != nil {
		return SubmitResult{}, err
	}
	if err := f.Gateway.DropHiddenScores(ctx, section); err != nil {
		return SubmitResult{}, err
	}
	if err := f.Scorer.Refresh(ctx); err != nil {
		return SubmitResult{}, err
	}
	telemetry.Info("survey.section_submitted", map[string]any{
		"scope":   f.Store.Scope(),
		"section": section,
		"id":      id,
	})
	next, _, err := f.Next(ctx, section)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Section: section, ID: id, Next: next}, nil
}

// Next resolves the section after current.
func (f *Flow) Next(ctx context.Context, current string) (string, bool, error) {
	level, err := f.ProcessingLevel(ctx)
	if err != nil {
		return "", false, err
	}
	next, ok := f.Resolver.Next(current, level)
	return next, ok, nil
}

// Previous resolves the section before current.
func (f *Flow) Previous(ctx context.Context, current string) (string, bool, error) {
	level, err := f.ProcessingLevel(ctx)
	if err != nil {
		return "", false, err
	}
	prev, ok := f.Resolver.Previous(current, level)
	return prev, ok, nil
}

// Complete hands the finished document and identifiers to finish, then
// clears the survey. Nothing is cleared when finish fails.
func (f *Flow) Complete(ctx context.Context, finish func(ctx context.Context, doc Document, ids map[string]int64) error) error {
	path, err := f.Path(ctx)
	if err != nil {
		return err
	}
	ids, err := f.Session.IDs(ctx)
	if err != nil {
		return err
	}
	for _, sec := range path {
		if _, ok := ids[sec]; !ok {
			return &DependencyMissingError{Section: "summary", Missing: []string{sec}, RedirectTo: sec}
		}
	}
	if err := f.Scorer.Refresh(ctx); err != nil {
		return err
	}
	doc, err := f.Store.Get(ctx)
	if err != nil {
		return err
	}
	if err := finish(ctx, doc, ids); err != nil {
		return fmt.Errorf("complete survey: %w", err)
	}
	return f.Reset(ctx)
}

// Reset discards the document, selector caches and session identifiers.
func (f *Flow) Reset(ctx context.Context) error {
	if err := f.Store.ClearAll(ctx); err != nil {
		return err
	}
	return f.Session.Clear(ctx)
}

func (f *Flow) require(ctx context.Context, section string) (map[string]int64, error) {
	if _, ok := f.Catalog.Section(section); !ok {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	path, err := f.Path(ctx)
	if err != nil {
		return nil, err
	}
	return f.Session.Require(ctx, section, path)
}
