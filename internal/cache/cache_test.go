package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-market/appraisal/internal/kv"
)

type payload struct {
	Value string `json:"value"`
	N     int    `json:"n"`
}

// newClockedStore wires a Store and its memory backend to one fake clock.
func newClockedStore(t *testing.T) (*Store, *kv.MemoryBackend, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	backend := kv.NewMemory()
	backend.Now = func() time.Time { return now }
	store := New(backend)
	store.now = backend.Now
	return store, backend, &now
}

func TestStore_SetGetRoundtrip(t *testing.T) {
	store, _, _ := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	require.NoError(t, store.Set(ctx, "s", req, payload{Value: "x", N: 7}, time.Hour))

	var got payload
	hit, err := store.Get(ctx, "s", req, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Value: "x", N: 7}, got)
}

func TestStore_MissOnUnknownRequest(t *testing.T) {
	store, _, _ := newClockedStore(t)

	var got payload
	hit, err := store.Get(context.Background(), "s", map[string]string{"q": "nope"}, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_ExpiredEntryIsMiss(t *testing.T) {
	store, _, now := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	require.NoError(t, store.Set(ctx, "s", req, payload{Value: "x"}, time.Hour))

	*now = now.Add(2 * time.Hour)

	var got payload
	hit, err := store.Get(ctx, "s", req, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_SetResetsExpiry(t *testing.T) {
	store, _, now := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	require.NoError(t, store.Set(ctx, "s", req, payload{Value: "old"}, time.Hour))
	*now = now.Add(50 * time.Minute)
	require.NoError(t, store.Set(ctx, "s", req, payload{Value: "new"}, time.Hour))
	*now = now.Add(50 * time.Minute)

	// 100 minutes after the first write but only 50 after the refresh.
	var got payload
	hit, err := store.Get(ctx, "s", req, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "new", got.Value)
}

func TestFetchWith_ComputesOnceThenServesCached(t *testing.T) {
	store, _, _ := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Value: "computed", N: calls}, nil
	}

	first, err := FetchWith(ctx, store, "s", req, time.Hour, compute)
	require.NoError(t, err)
	second, err := FetchWith(ctx, store, "s", req, time.Hour, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestFetchWith_ComputeErrorNotCached(t *testing.T) {
	store, backend, _ := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	boom := eris.New("upstream down")
	_, err := FetchWith(ctx, store, "s", req, time.Hour, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, backend.Len())

	// The next call retries the upstream rather than serving a cached error.
	got, err := FetchWith(ctx, store, "s", req, time.Hour, func(context.Context) (payload, error) {
		return payload{Value: "recovered"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got.Value)
}

func TestFetchWith_NilStoreComputesEveryTime(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := FetchWith(context.Background(), nil, "s", "req", time.Hour, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestStore_UndecodablePayloadIsMiss(t *testing.T) {
	store, _, _ := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	// A stored value whose shape no longer matches the caller's type
	// (schema drift) must degrade to a miss, not fail the read.
	require.NoError(t, store.Set(ctx, "s", req, "stale string payload", time.Hour))

	var got payload
	hit, err := store.Get(ctx, "s", req, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	// FetchWith recomputes and overwrites the stale entry in place.
	fetched, err := FetchWith(ctx, store, "s", req, time.Hour, func(context.Context) (payload, error) {
		return payload{Value: "fresh", N: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", fetched.Value)

	hit, err = store.Get(ctx, "s", req, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "fresh", got.Value)
}

func TestStore_GetBumpsHitCounter(t *testing.T) {
	store, backend, _ := newClockedStore(t)
	ctx := context.Background()
	req := map[string]string{"q": "dune"}

	require.NoError(t, store.Set(ctx, "s", req, payload{Value: "x"}, time.Hour))

	var got payload
	for i := 0; i < 3; i++ {
		hit, err := store.Get(ctx, "s", req, &got)
		require.NoError(t, err)
		require.True(t, hit)
	}

	key, err := Key("s", req)
	require.NoError(t, err)
	entry, err := backend.Read(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(3), entry.Hits)
}

func TestStore_InvalidateBySource(t *testing.T) {
	store, backend, _ := newClockedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "r1", payload{}, time.Hour))
	require.NoError(t, store.Set(ctx, "a", "r2", payload{}, time.Hour))
	require.NoError(t, store.Set(ctx, "b", "r1", payload{}, time.Hour))

	n, err := store.Invalidate(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, backend.Len())
}

func TestStore_SweepRemovesOnlyExpired(t *testing.T) {
	store, backend, now := newClockedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "s", "short", payload{}, time.Minute))
	require.NoError(t, store.Set(ctx, "s", "long", payload{}, time.Hour))

	*now = now.Add(10 * time.Minute)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, backend.Len())
}
