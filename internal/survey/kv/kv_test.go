package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := fmt.Sprintf("dqsurvey:test-%d:document", time.Now().UnixNano())

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, key, `{"a":1}`))
	v, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, s.Set(ctx, key, `{"a":2}`))
	v, _, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, v)

	require.NoError(t, s.Delete(ctx, key, key+":missing"))
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)

	require.NoError(t, m.Close())
	_, _, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStore(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFileStoreConcurrentWritersNeverTear(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	values := []string{`{"writer":"a","pad":"aaaaaaaaaaaaaaaa"}`, `{"writer":"b","pad":"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}`}

	var wg sync.WaitGroup
	for i := range values {
		// separate instances stand in for separate processes sharing the directory
		store, err := NewFile(dir)
		require.NoError(t, err)
		wg.Add(1)
		go func(s *File, v string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, s.Set(ctx, "shared", v))
			}
		}(store, values[i])
	}
	wg.Wait()

	reader, err := NewFile(dir)
	require.NoError(t, err)
	got, ok, err := reader.Get(ctx, "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, values, got)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "answers", "survey.db")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	exerciseStore(t, s)

	require.NoError(t, s.Set(ctx, "dqsurvey:lab:document", `{"kept":true}`))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, "dqsurvey:lab:document")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"kept":true}`, v)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	s, err = Open(ctx, Options{Backend: "sqlite", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)
	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := DialRedis(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := DialMongo(ctx, uri, "dqsurvey_test")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
