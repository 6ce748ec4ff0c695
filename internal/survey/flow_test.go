package survey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/sections"
	"dqsurvey/internal/survey/kv"
)

// localService runs the storage-service domain in process.
type localService struct {
	svc   *sections.Service
	calls int
	fail  error
}

func newLocalService() *localService {
	return &localService{svc: sections.NewService(sections.NewMemoryRepo())}
}

func (s *localService) CreateSection(ctx context.Context, rec sections.Record) (int64, error) {
	s.calls++
	if s.fail != nil {
		return 0, s.fail
	}
	return s.svc.Create(ctx, rec)
}

func (s *localService) FetchSection(ctx context.Context, section int, chain []int64) (sections.Record, error) {
	return s.svc.Get(ctx, section, chain)
}

func newTestFlow(t *testing.T) (*Flow, *localService) {
	t.Helper()
	svc := newLocalService()
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewFlow(catalog.MustDefault(), kv.NewMemory(), "flow", svc, WithClock(clock.now)), svc
}

func fill(t *testing.T, f *Flow, values map[string]any) {
	t.Helper()
	ctx := context.Background()
	for id, v := range values {
		require.NoError(t, f.Gateway.Set(ctx, id, v), id)
	}
}

func submitSections12(t *testing.T, f *Flow, level string) {
	t.Helper()
	ctx := context.Background()
	fill(t, f, map[string]any{
		"datasetName":       "Land cover",
		"datasetProvider":   "ESA",
		"evaluatorName":     "R. Okafor",
		"evaluationType":    "general-quality",
		"sourceCredibility": 4,
	})
	res, err := f.Submit(ctx, "section1")
	require.NoError(t, err)
	assert.Equal(t, "section2", res.Next)

	fill(t, f, map[string]any{"dataType": "gis", "processingLevel": level, "gridResolution": 0.1})
	_, err = f.Submit(ctx, "section2")
	require.NoError(t, err)
}

func TestEnterRedirectsWithoutPriorIdentifiers(t *testing.T) {
	ctx := context.Background()
	f, svc := newTestFlow(t)

	_, err := f.Enter(ctx, "section3")
	var dme *DependencyMissingError
	require.ErrorAs(t, err, &dme)
	assert.Equal(t, "section1", dme.RedirectTo)
	assert.Equal(t, []string{"section1", "section2"}, dme.Missing)

	_, err = f.Submit(ctx, "section3")
	require.ErrorAs(t, err, &dme)
	assert.Zero(t, svc.calls, "no request may be issued before prior ids exist")
	assert.Equal(t, "Please complete section1 first.", UserMessage(err))
}

func TestPrimaryDataFlowSkipsConformance(t *testing.T) {
	ctx := context.Background()
	f, svc := newTestFlow(t)
	submitSections12(t, f, "primary")

	fill(t, f, map[string]any{"designSpatialAccuracy": 3, "useCaseSpatialFit": 1})
	res, err := f.Submit(ctx, "section3")
	require.NoError(t, err)
	assert.Equal(t, "section5", res.Next)

	_, err = f.Enter(ctx, "section5")
	require.NoError(t, err)
	fill(t, f, map[string]any{"accessibility": 2})
	res, err = f.Submit(ctx, "section5")
	require.NoError(t, err)
	assert.Empty(t, res.Next)

	ids, err := f.Session.IDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "section4")
	assert.Len(t, ids, 4)

	calls := svc.calls
	_, err = f.Submit(ctx, "section4")
	require.ErrorIs(t, err, ErrNotOnPath)
	var dme *DependencyMissingError
	assert.False(t, errors.As(err, &dme))
	assert.Equal(t, calls, svc.calls)

	rec, err := f.Service.FetchSection(ctx, 5, []int64{ids["section1"], ids["section2"], ids["section3"], 0, ids["section5"]})
	require.NoError(t, err)
	assert.Nil(t, rec.(*sections.Section5Record).Section4ID)

	s3, err := f.Service.FetchSection(ctx, 3, []int64{ids["section1"], ids["section2"], ids["section3"]})
	require.NoError(t, err)
	assert.Nil(t, s3.(*sections.Section3Record).UseCaseSpatialFit, "hidden branch is nulled before submission")

	doc, err := f.Store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc.Scores.Overall)
	// section1=4, section3=3, section5=2 over weights .15/.30/.15
	assert.InDelta(t, (4*0.15+3*0.30+2*0.15)/0.60, *doc.Scores.Overall, 1e-9)
}

func TestNavigationRereadsProcessingLevel(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFlow(t)

	require.NoError(t, f.Gateway.Set(ctx, "processingLevel", "primary"))
	next, _, err := f.Next(ctx, "section3")
	require.NoError(t, err)
	assert.Equal(t, "section5", next)

	require.NoError(t, f.Gateway.Set(ctx, "processingLevel", "products"))
	next, _, err = f.Next(ctx, "section3")
	require.NoError(t, err)
	assert.Equal(t, "section4", next)

	prev, _, err := f.Previous(ctx, "section5")
	require.NoError(t, err)
	assert.Equal(t, "section4", prev)
}

func TestServerRejectionKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	f, svc := newTestFlow(t)
	fill(t, f, map[string]any{
		"datasetName":     "Land cover",
		"datasetProvider": "ESA",
		"evaluatorName":   "R. Okafor",
		"evaluationType":  "use-case-adequacy",
	})
	svc.fail = &ServerValidationError{Status: 400, Code: "VALIDATION_ERROR", Message: "dataset_name already registered"}

	_, err := f.Submit(ctx, "section1")
	var sve *ServerValidationError
	require.ErrorAs(t, err, &sve)
	assert.Equal(t, "dataset_name already registered", UserMessage(err))

	_, ok, err := f.Session.ID(ctx, "section1")
	require.NoError(t, err)
	assert.False(t, ok)
	form, err := f.Gateway.Restore(ctx, "section1")
	require.NoError(t, err)
	assert.Equal(t, "Land cover", form.Values["datasetName"])

	svc.fail = &NetworkFailureError{Op: "POST /section1", Err: errors.New("connection refused")}
	_, err = f.Submit(ctx, "section1")
	assert.Equal(t, "Could not reach server. Please try again.", UserMessage(err))

	svc.fail = nil
	res, err := f.Submit(ctx, "section1")
	require.NoError(t, err)
	assert.Positive(t, res.ID)
}

func TestRejectedSubmissionKeepsHiddenScores(t *testing.T) {
	ctx := context.Background()
	f, svc := newTestFlow(t)
	submitSections12(t, f, "products")

	fill(t, f, map[string]any{"designCompleteness": 2})
	fill(t, f, map[string]any{"evaluationType": "use-case-adequacy", "useCaseSpatialFit": 4})
	svc.fail = &ServerValidationError{Status: 400, Code: "VALIDATION_ERROR", Message: "use_case_description is required"}

	_, err := f.Submit(ctx, "section3")
	require.Error(t, err)

	doc, err := f.Store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Scores.BySection["section3"]["designCompleteness"])

	fill(t, f, map[string]any{"evaluationType": "general-quality"})
	svc.fail = nil
	_, err = f.Submit(ctx, "section3")
	require.NoError(t, err)

	doc, err = f.Store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"designCompleteness": 2}, doc.Scores.BySection["section3"])
	require.NotNil(t, doc.Scores.BySectionAverage["section3"])
	assert.InDelta(t, 2.0, *doc.Scores.BySectionAverage["section3"], 1e-9)
}

func TestLocalValidationFailureMakesNoRequest(t *testing.T) {
	ctx := context.Background()
	f, svc := newTestFlow(t)
	fill(t, f, map[string]any{"datasetName": "Only a name"})

	_, err := f.Submit(ctx, "section1")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, svc.calls)
}

func TestCompleteClearsOnlyAfterFinishSucceeds(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFlow(t)
	submitSections12(t, f, "primary")

	err := f.Complete(ctx, func(context.Context, Document, map[string]int64) error { return nil })
	var dme *DependencyMissingError
	require.ErrorAs(t, err, &dme)
	assert.Equal(t, "section3", dme.RedirectTo)

	for _, sec := range []string{"section3", "section5"} {
		_, err := f.Submit(ctx, sec)
		require.NoError(t, err, sec)
	}

	boom := errors.New("export failed")
	err = f.Complete(ctx, func(context.Context, Document, map[string]int64) error { return boom })
	require.ErrorIs(t, err, boom)
	ids, err := f.Session.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 4)

	var seen map[string]int64
	require.NoError(t, f.Complete(ctx, func(_ context.Context, doc Document, got map[string]int64) error {
		seen = got
		assert.False(t, doc.IsEmpty())
		return nil
	}))
	assert.Len(t, seen, 4)

	ids, err = f.Session.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	level, err := f.ProcessingLevel(ctx)
	require.NoError(t, err)
	assert.Empty(t, level)
}
