package survey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/survey/kv"
)

// stepClock advances one second per call so lastModified strictly increases.
type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	backend := kv.NewMemory()
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(backend, "test", catalog.MustDefault(), WithClock(clock.now)), backend
}

type failingKV struct{}

var errBackendDown = errors.New("backend down")

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errBackendDown }
func (failingKV) Set(context.Context, string, string) error         { return errBackendDown }
func (failingKV) Delete(context.Context, ...string) error           { return errBackendDown }
func (failingKV) Close() error                                      { return nil }

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Save(ctx, "section1", "dataset", Fields{"datasetName": "Land cover"}))
	before, err := store.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Init(ctx))
	after, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, after.Sections, 5)
}

func TestSaveMergesIntoSubsection(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Init(ctx))

	require.NoError(t, store.Save(ctx, "section2", "aoi", Fields{"aoiMethod": "dropdown"}))
	require.NoError(t, store.Save(ctx, "section2", "resolution", Fields{"a": 1.0}))
	require.NoError(t, store.Save(ctx, "section2", "resolution", Fields{"b": 2.0}))

	doc, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Fields{"a": 1.0, "b": 2.0}, doc.Sections["section2"].Subsections["resolution"])
	assert.Equal(t, Fields{"aoiMethod": "dropdown"}, doc.Sections["section2"].Subsections["aoi"])

	require.NoError(t, store.Save(ctx, "section2", "resolution", Fields{"a": 3.0}))
	doc, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Fields{"a": 3.0, "b": 2.0}, doc.Sections["section2"].Subsections["resolution"])
}

func TestSaveWithoutSubsectionMergesAtRoot(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(ctx, "section5", "", Fields{"contextComments": "ok"}))
	doc, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Fields{"contextComments": "ok"}, doc.Sections["section5"].Fields)
	assert.False(t, doc.IsEmpty())
}

func TestEveryMutationBumpsLastModified(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Init(ctx))
	doc, err := store.Get(ctx)
	require.NoError(t, err)
	prev := doc.Timestamps.LastModified

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, "section1", "dataset", Fields{"datasetName": i}))
		doc, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Greater(t, doc.Timestamps.LastModified, prev)
		prev = doc.Timestamps.LastModified
	}
	assert.Equal(t, "2024-03-01T09:00:01.000Z", doc.Timestamps.Created)
}

func TestCorruptDocumentYieldsEmptyAndIsCounted(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	require.NoError(t, backend.Set(ctx, store.Key(), "{not json"))

	doc, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
	assert.Empty(t, doc.Sections)
	assert.Equal(t, int64(1), store.Corruptions())

	require.NoError(t, store.Init(ctx))
	doc, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, doc.IsEmpty())
	assert.Equal(t, int64(2), store.Corruptions())
}

func TestClearAllRemovesDocumentAndSelectorCaches(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SetSelectorCache(ctx, "selectedDataType", "gis"))
	require.NoError(t, store.SetSelectorCache(ctx, "selectedProcessingLevel", "primary"))
	require.NoError(t, backend.Set(ctx, "dqsurvey:other:document", "{}"))

	require.NoError(t, store.ClearAll(ctx))

	_, ok, err := store.SelectorCache(ctx, "selectedDataType")
	require.NoError(t, err)
	assert.False(t, ok)
	doc, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
	assert.Equal(t, 1, backend.Keys(), "other scopes are untouched")
}

func TestBackendFailuresSurfaceStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewStore(failingKV{}, "test", catalog.MustDefault())

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, errBackendDown)
	assert.ErrorIs(t, store.Save(ctx, "section1", "", Fields{"x": 1}), ErrStorageUnavailable)
	assert.ErrorIs(t, store.ClearAll(ctx), ErrStorageUnavailable)
	assert.Equal(t, "Saved answers are unavailable right now.", UserMessage(store.Init(ctx)))
}
