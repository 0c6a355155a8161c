package kv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	backend, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	require.NoError(t, backend.Migrate(context.Background()))
	return backend
}

func TestSQLite_ReadWriteRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	entry := Entry{
		Key:       "marketbay:0011223344556677",
		Source:    "marketbay",
		Payload:   []byte(`{"estimate":42}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.Write(ctx, entry))

	got, err := s.Read(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Source, got.Source)
	assert.Equal(t, entry.Payload, got.Payload)
	assert.Zero(t, got.Hits)
}

func TestSQLite_AbsentKeyReadsNilNil(t *testing.T) {
	s := newTestSQLite(t)
	got, err := s.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ExpiredKeyReadsNilNil(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Write(ctx, Entry{
		Key:       "stale",
		Source:    "s",
		Payload:   []byte(`{}`),
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}))

	got, err := s.Read(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpsertReplacesPayload(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	base := Entry{Key: "k", Source: "s", Payload: []byte(`1`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.Write(ctx, base))

	base.Payload = []byte(`2`)
	require.NoError(t, s.Write(ctx, base))

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte(`2`), got.Payload)
}

func TestSQLite_TouchIncrementsHits(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Write(ctx, Entry{Key: "k", Source: "s", Payload: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Touch(ctx, "k"))
	require.NoError(t, s.Touch(ctx, "k"))

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Hits)
}

func TestSQLite_DeleteMatching(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []Entry{
		{Key: "a:111", Source: "a", Payload: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Key: "a:222", Source: "a", Payload: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Key: "b:111", Source: "b", Payload: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	} {
		require.NoError(t, s.Write(ctx, e))
	}

	n, err := s.DeleteMatching(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteMatching(ctx, "", "111")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_DeleteExpired(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Write(ctx, Entry{Key: "stale", Source: "s", Payload: []byte(`{}`), CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Write(ctx, Entry{Key: "fresh", Source: "s", Payload: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Read(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
