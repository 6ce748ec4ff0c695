package summary

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/sections"
	"dqsurvey/internal/shared/storage/object/local"
	"dqsurvey/internal/survey"
	"dqsurvey/internal/survey/kv"
)

func intPtr(v int) *int { return &v }

type serviceFetcher struct{ svc *sections.Service }

func (f serviceFetcher) CreateSection(ctx context.Context, rec sections.Record) (int64, error) {
	return f.svc.Create(ctx, rec)
}

func (f serviceFetcher) FetchSection(ctx context.Context, n int, chain []int64) (sections.Record, error) {
	return f.svc.Get(ctx, n, chain)
}

var fixedNow = time.Date(2024, 5, 17, 14, 30, 12, 987654321, time.UTC)

// completedSurvey runs a primary-data survey end to end and returns its state.
func completedSurvey(t *testing.T) (*survey.Flow, serviceFetcher) {
	t.Helper()
	ctx := context.Background()
	svc := serviceFetcher{svc: sections.NewService(sections.NewMemoryRepo())}
	f := survey.NewFlow(catalog.MustDefault(), kv.NewMemory(), "summary-test", svc)

	steps := []struct {
		section string
		values  map[string]any
	}{
		{"section1", map[string]any{
			"datasetName":       "Land | cover",
			"datasetProvider":   "ESA",
			"evaluatorName":     "R. Okafor",
			"evaluationType":    "general-quality",
			"sourceCredibility": 4,
		}},
		{"section2", map[string]any{
			"dataType":        "remote-sensing",
			"processingLevel": "primary",
			"pixelResolution": 10,
			"openAccess":      true,
		}},
		{"section3", map[string]any{"designSpatialAccuracy": 3, "designNotes": "ok"}},
		{"section5", map[string]any{"accessibility": 2}},
	}
	for _, step := range steps {
		for id, v := range step.values {
			require.NoError(t, f.Gateway.Set(ctx, id, v), id)
		}
		_, err := f.Submit(ctx, step.section)
		require.NoError(t, err, step.section)
	}
	return f, svc
}

func project(t *testing.T) Summary {
	t.Helper()
	ctx := context.Background()
	f, svc := completedSurvey(t)
	doc, err := f.Store.Get(ctx)
	require.NoError(t, err)
	ids, err := f.Session.IDs(ctx)
	require.NoError(t, err)

	p := NewProjector(catalog.MustDefault(), svc)
	p.Now = func() time.Time { return fixedNow }
	s, err := p.Project(ctx, "summary-test", doc, ids)
	require.NoError(t, err)
	return s
}

func fieldValue(s Summary, section, id string) string {
	for _, sec := range s.Sections {
		if sec.ID != section {
			continue
		}
		for _, f := range sec.Fields {
			if f.ID == id {
				return f.Value
			}
		}
	}
	return "<missing>"
}

func TestProjectAppliesFallbacks(t *testing.T) {
	s := project(t)

	require.Len(t, s.Sections, 5)
	assert.Equal(t, "Land | cover", fieldValue(s, "section1", "datasetName"))
	assert.Equal(t, "N/A", fieldValue(s, "section1", "datasetUrl"))
	assert.Equal(t, "10", fieldValue(s, "section2", "pixelResolution"))
	assert.Equal(t, "0", fieldValue(s, "section2", "gridResolution"))
	assert.Equal(t, "Yes", fieldValue(s, "section2", "openAccess"))
	assert.Equal(t, "0", fieldValue(s, "section4", "metadataStandard"))

	assert.True(t, s.Sections[3].Skipped)
	assert.Equal(t, "N/A", s.Sections[3].Average)
	assert.Positive(t, s.Sections[0].RecordID)
	assert.Equal(t, "4.00", s.Sections[0].Average)
	assert.Equal(t, "N/A", s.Sections[1].Average)
	assert.Equal(t, "3.00", s.Overall) // (4*.15 + 3*.30 + 2*.15) / .60
	assert.Equal(t, "3.00", s.Groups["accuracy"])
	assert.Equal(t, fixedNow.Truncate(time.Second), s.GeneratedAt)

	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			assert.NotContains(t, f.Value, "<nil>", f.ID)
			assert.NotEmpty(t, f.Value, f.ID)
		}
	}
}

func TestProjectRecomputesScoresFromRecords(t *testing.T) {
	ctx := context.Background()
	f, svc := completedSurvey(t)
	ids, err := f.Session.IDs(ctx)
	require.NoError(t, err)

	p := NewProjector(catalog.MustDefault(), svc)
	s, err := p.Project(ctx, "summary-test", survey.Document{}, ids)
	require.NoError(t, err)
	assert.Equal(t, "3.00", s.Overall)
	assert.Equal(t, "2.00", s.Sections[4].Average)
}

func TestProjectToleratesMissingRecords(t *testing.T) {
	svc := serviceFetcher{svc: sections.NewService(sections.NewMemoryRepo())}
	p := NewProjector(catalog.MustDefault(), svc)
	doc := survey.Document{Sections: map[string]*survey.Section{
		"section1": {Fields: survey.Fields{"datasetName": "Local only"}},
	}}
	s, err := p.Project(context.Background(), "x", doc, map[string]int64{"section1": 404})
	require.NoError(t, err)
	assert.Equal(t, "Local only", fieldValue(s, "section1", "datasetName"))
	assert.Equal(t, "N/A", s.Overall)
}

func TestCSVRoundTrip(t *testing.T) {
	s := project(t)
	data, err := ExportCSV(s)
	require.NoError(t, err)

	got, err := ParseCSV(data)
	require.NoError(t, err)
	opts := cmp.Options{
		cmpopts.IgnoreFields(Summary{}, "Scope", "GeneratedAt"),
		cmpopts.IgnoreFields(Section{}, "Title", "RecordID", "Skipped"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(s, got, opts); diff != "" {
		t.Fatalf("csv round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveRoundTripAndDeterminism(t *testing.T) {
	s := project(t)
	first, err := ExportArchive(s)
	require.NoError(t, err)
	second, err := ExportArchive(s)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "archive output must be deterministic")

	got, err := ParseArchive(first)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("archive round trip mismatch (-want +got):\n%s", diff)
	}

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	require.NoError(t, err)
	var names []string
	var html string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "section1.html" {
			rc, err := f.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
			html = string(b)
		}
	}
	assert.True(t, sort.StringsAreSorted(names), "entries are sorted: %v", names)
	assert.Contains(t, names, "manifest.json")
	assert.Contains(t, names, "section5.md")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Land | cover")
}

func TestParseArchiveRejectsIncompleteArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("summary.csv")
	require.NoError(t, err)
	_, _ = w.Write([]byte(strings.Join(csvHeader, ",") + "\n"))
	require.NoError(t, zw.Close())

	_, err = ParseArchive(buf.Bytes())
	assert.Error(t, err)
}

func TestPublishWritesToObjectStore(t *testing.T) {
	ctx := context.Background()
	s := project(t)
	store := local.New(t.TempDir())

	key, err := Publish(ctx, store, s, FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "exports/summary-test/"))
	assert.True(t, strings.HasSuffix(key, ".csv"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	got, err := ParseCSV(data)
	require.NoError(t, err)
	assert.Equal(t, s.Overall, got.Overall)

	_, err = Publish(ctx, store, s, "pdf")
	assert.Error(t, err)
}
