package survey

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/survey/kv"
)

// Session holds the server-generated identifiers of submitted sections.
type Session struct {
	kv       kv.Store
	scope    string
	sections []string
}

// NewSession binds a Session to backend under scope.
func NewSession(backend kv.Store, scope string, cat *catalog.Catalog) *Session {
	if scope == "" {
		scope = "default"
	}
	return &Session{kv: backend, scope: scope, sections: cat.SectionIDs()}
}

func (s *Session) key(section string) string {
	return fmt.Sprintf("%s:%s:session:%s_id", keyPrefix, s.scope, section)
}

// SetID stores the identifier returned for section.
func (s *Session) SetID(ctx context.Context, section string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("session: invalid id %d for %s", id, section)
	}
	if err := s.kv.Set(ctx, s.key(section), strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("%w: write %s id: %w", ErrStorageUnavailable, section, err)
	}
	return nil
}

// ID returns the stored identifier of section.
func (s *Session) ID(ctx context.Context, section string) (int64, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(section))
	if err != nil {
		return 0, false, fmt.Errorf("%w: read %s id: %w", ErrStorageUnavailable, section, err)
	}
	if !ok {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, nil
	}
	return id, true, nil
}

// IDs returns every stored identifier keyed by section id.
func (s *Session) IDs(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, sec := range s.sections {
		id, ok, err := s.ID(ctx, sec)
		if err != nil {
			return nil, err
		}
		if ok {
			out[sec] = id
		}
	}
	return out, nil
}

// Clear removes every stored identifier.
func (s *Session) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(s.sections))
	for _, sec := range s.sections {
		keys = append(keys, s.key(sec))
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: clear session: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Require checks that every section before section on path has an identifier
// and returns them. Otherwise it fails with a DependencyMissingError pointing
// at the earliest missing section. A section missing from path fails with
// ErrNotOnPath.
func (s *Session) Require(ctx context.Context, section string, path []string) (map[string]int64, error) {
	if !slices.Contains(path, section) {
		return nil, fmt.Errorf("%w: %s", ErrNotOnPath, section)
	}
	ids := map[string]int64{}
	var missing []string
	for _, sec := range path {
		if sec == section {
			break
		}
		id, ok, err := s.ID(ctx, sec)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, sec)
			continue
		}
		ids[sec] = id
	}
	if len(missing) > 0 {
		return nil, &DependencyMissingError{Section: section, Missing: missing, RedirectTo: missing[0]}
	}
	return ids, nil
}
