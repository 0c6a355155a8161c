// Package cache is a content-addressed result cache over a key-value
// backend. It exists to avoid re-paying for expensive upstream lookups;
// correctness never depends on it, so backend failures degrade to misses.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/kv"
)

// Store wraps a kv.Backend with key derivation, TTLs, and serialization.
// Callers only ever see deserialized values, never raw entries.
type Store struct {
	backend kv.Backend
	now     func() time.Time
}

// New creates a Store on the given backend.
func New(backend kv.Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// Get looks up the cached value for (source, request) and decodes it into
// out. Returns false on miss; a backend failure is logged and reported as
// a miss. A hit bumps the entry's hit counter as a side effect.
func (s *Store) Get(ctx context.Context, source string, request, out any) (bool, error) {
	key, err := Key(source, request)
	if err != nil {
		return false, err
	}

	entry, err := s.backend.Read(ctx, key)
	if err != nil {
		zap.L().Warn("cache: backend read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	if entry == nil {
		return false, nil
	}

	// A payload that no longer decodes (schema drift, corruption) is as
	// useless as an unreachable backend; report a miss so compute runs and
	// the next Set overwrites it.
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		zap.L().Warn("cache: undecodable payload, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}

	// Hit accounting is observability only; a failed bump never fails a read.
	if err := s.backend.Touch(ctx, key); err != nil {
		zap.L().Debug("cache: hit counter bump failed", zap.String("key", key), zap.Error(err))
	}
	return true, nil
}

// Set upserts the value for (source, request), resetting expiry to
// now+ttl and zeroing the hit counter.
func (s *Store) Set(ctx context.Context, source string, request, value any, ttl time.Duration) error {
	key, err := Key(source, request)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "cache: encode payload for %s", key)
	}

	now := s.now()
	return s.backend.Write(ctx, kv.Entry{
		Key:       key,
		Source:    source,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

// FetchWith returns the cached value for (source, request) when present,
// and otherwise invokes compute, stores its result, and returns it. A
// compute failure propagates untouched and caches nothing. Two concurrent
// misses for the same key may both invoke compute; the second write wins
// and the redundant upstream call is accepted.
func FetchWith[T any](ctx context.Context, s *Store, source string, request any, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if s != nil {
		hit, err := s.Get(ctx, source, request, &cached)
		if err != nil {
			return cached, err
		}
		if hit {
			return cached, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if s != nil {
		if err := s.Set(ctx, source, request, value, ttl); err != nil {
			// Best-effort store; the freshly computed value is still good.
			zap.L().Warn("cache: store after compute failed",
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}
	return value, nil
}

// Invalidate removes entries by source tag and/or key substring and
// reports how many were deleted.
func (s *Store) Invalidate(ctx context.Context, source, substr string) (int, error) {
	n, err := s.backend.DeleteMatching(ctx, source, substr)
	if err != nil {
		return n, eris.Wrap(err, "cache: invalidate")
	}
	return n, nil
}

// Sweep deletes all expired entries and reports the count removed. Run it
// from an operator command or a schedule, never from read paths.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	n, err := s.backend.DeleteExpired(ctx)
	if err != nil {
		return n, eris.Wrap(err, "cache: sweep")
	}
	if n > 0 {
		zap.L().Info("cache: swept expired entries", zap.Int("removed", n))
	}
	return n, nil
}
