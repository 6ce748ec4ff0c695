package sections

import (
	"context"
	"errors"
	"fmt"

	"dqsurvey/internal/shared/metrics"
	"dqsurvey/internal/shared/telemetry"
)

// Service contains business logic for section records.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create validates rec, checks that its foreign ids form a consistent chain of
// existing records, and stores it.
func (s *Service) Create(ctx context.Context, rec Record) (int64, error) {
	if rec == nil {
		return 0, ErrInvalidInput
	}
	if err := rec.Validate(); err != nil {
		metrics.IncSectionRejected(rec.Section(), metrics.ReasonValidation)
		return 0, err
	}
	if err := s.checkChain(ctx, rec); err != nil {
		if errors.Is(err, ErrBrokenChain) {
			metrics.IncSectionRejected(rec.Section(), metrics.ReasonChain)
		}
		return 0, err
	}
	id, err := s.Repo.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	metrics.IncSectionCreated(rec.Section())
	telemetry.Info("section.created", map[string]any{
		"section": rec.Section(),
		"id":      id,
	})
	return id, nil
}

func (s *Service) checkChain(ctx context.Context, rec Record) error {
	parents := rec.Parents()
	for k := 1; k < rec.Section(); k++ {
		id := parents[k]
		if id == 0 {
			if k == ConformanceSection {
				if err := s.checkConformanceSkip(ctx, parents[2]); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("%w: section%d_id missing", ErrBrokenChain, k)
		}
		parent, err := s.Repo.Get(ctx, k, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: section%d %d does not exist", ErrBrokenChain, k, id)
			}
			return err
		}
		for pk, pid := range parent.Parents() {
			if parents[pk] != pid {
				return fmt.Errorf("%w: section%d %d belongs to section%d %d, not %d", ErrBrokenChain, k, id, pk, pid, parents[pk])
			}
		}
	}
	return nil
}

// checkConformanceSkip allows a missing conformance id only for primary data.
func (s *Service) checkConformanceSkip(ctx context.Context, section2ID int64) error {
	rec, err := s.Repo.Get(ctx, 2, section2ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: section2 %d does not exist", ErrBrokenChain, section2ID)
		}
		return err
	}
	s2, ok := rec.(*Section2Record)
	if !ok || s2.ProcessingLevel != ProcessingLevelPrimary {
		return fmt.Errorf("%w: section4_id is required unless processing level is %s", ErrBrokenChain, ProcessingLevelPrimary)
	}
	return nil
}

// Get returns the record addressed by chain, the ids of sections 1..n in order.
// A 0 entry marks a skipped conformance section. A chain that does not match
// the stored record's foreign ids yields ErrNotFound.
func (s *Service) Get(ctx context.Context, n int, chain []int64) (Record, error) {
	if n < 1 || n > Count || len(chain) != n {
		return nil, fmt.Errorf("%w: section%d needs %d ids, got %d", ErrInvalidInput, n, n, len(chain))
	}
	id := chain[n-1]
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid id %d", ErrInvalidInput, id)
	}
	rec, err := s.Repo.Get(ctx, n, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncSectionNotFound(n)
		}
		return nil, err
	}
	for k, pid := range rec.Parents() {
		if chain[k-1] != pid {
			metrics.IncSectionNotFound(n)
			return nil, ErrNotFound
		}
	}
	return rec, nil
}
