package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/shared/telemetry"
	"dqsurvey/internal/survey/kv"
)

const keyPrefix = "dqsurvey"

// Store persists the survey document of one scope in a key-value backend.
// Every mutation is a full read-modify-write of the document.
type Store struct {
	kv          kv.Store
	scope       string
	catalog     *catalog.Catalog
	now         func() time.Time
	corruptions atomic.Int64
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore binds a document store to backend under scope.
func NewStore(backend kv.Store, scope string, cat *catalog.Catalog, opts ...StoreOption) *Store {
	if scope == "" {
		scope = "default"
	}
	s := &Store{kv: backend, scope: scope, catalog: cat, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope returns the storage scope.
func (s *Store) Scope() string { return s.scope }

// Key returns the backend key of the document.
func (s *Store) Key() string { return s.auxKey("document") }

func (s *Store) auxKey(name string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.scope, name)
}

// Corruptions counts documents that failed to decode since the store was created.
func (s *Store) Corruptions() int64 { return s.corruptions.Load() }

// Init writes the default document unless a readable one already exists.
// A corrupt document is replaced.
func (s *Store) Init(ctx context.Context) error {
	doc, ok, err := s.load(ctx)
	if err != nil {
		return err
	}
	if ok && !doc.IsEmpty() {
		return nil
	}
	return s.write(ctx, NewDocument(s.now(), s.catalog.SectionIDs()))
}

// Get returns the current document. Missing or corrupt documents yield an
// empty document.
func (s *Store) Get(ctx context.Context) (Document, error) {
	doc, _, err := s.load(ctx)
	return doc, err
}

// Save shallow-merges data into a section's subsection (root when subsection is empty).
func (s *Store) Save(ctx context.Context, section, subsection string, data Fields) error {
	return s.Update(ctx, func(doc *Document) error {
		doc.merge(section, subsection, data)
		return nil
	})
}

// Update applies fn to the current document and persists the result,
// initializing the document first if needed. lastModified is always bumped.
func (s *Store) Update(ctx context.Context, fn func(*Document) error) error {
	doc, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	if doc.IsEmpty() {
		doc = NewDocument(s.now(), s.catalog.SectionIDs())
	}
	if err := fn(&doc); err != nil {
		return err
	}
	doc.Timestamps.LastModified = s.now().UTC().Format(isoLayout)
	return s.write(ctx, doc)
}

// ClearAll removes the document and the selector cache keys.
func (s *Store) ClearAll(ctx context.Context) error {
	keys := []string{s.Key()}
	for _, k := range s.catalog.CacheKeys() {
		keys = append(keys, s.auxKey(k))
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// SelectorCache reads an auxiliary cross-section key such as selectedProcessingLevel.
func (s *Store) SelectorCache(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.auxKey(key))
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %w", ErrStorageUnavailable, key, err)
	}
	return v, ok, nil
}

// SetSelectorCache writes an auxiliary key; an empty value deletes it.
func (s *Store) SetSelectorCache(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = s.kv.Delete(ctx, s.auxKey(key))
	} else {
		err = s.kv.Set(ctx, s.auxKey(key), value)
	}
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (Document, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.Key())
	if err != nil {
		return Document{}, false, fmt.Errorf("%w: read document: %w", ErrStorageUnavailable, err)
	}
	var doc Document
	if !ok {
		doc.normalize()
		return doc, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.corruptions.Add(1)
		telemetry.Warn("survey.document_corrupt", map[string]any{
			"scope": s.scope,
			"error": err,
		})
		doc = Document{}
		doc.normalize()
		return doc, false, nil
	}
	doc.normalize()
	return doc, true, nil
}

func (s *Store) write(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.kv.Set(ctx, s.Key(), string(data)); err != nil {
		return fmt.Errorf("%w: write document: %w", ErrStorageUnavailable, err)
	}
	return nil
}
