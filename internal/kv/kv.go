// Package kv provides the key-value backends behind the result cache:
// SQLite, Postgres, Redis, and an in-memory implementation for tests and
// cache-less operation.
package kv

import (
	"context"
	"time"
)

// Entry is one stored cache record. Callers of the cache never see
// entries; they are owned by the backend and the cache layer.
type Entry struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"` // namespace tag, used for bulk invalidation
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Hits      int64     `json:"hits"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Backend is the storage contract the cache layer runs on. Read must
// return (nil, nil) for absent or expired keys. Concurrent Write on the
// same key is last-writer-wins; no transactional guarantee is offered.
type Backend interface {
	Read(ctx context.Context, key string) (*Entry, error)
	Write(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error

	// Touch increments the hit counter for observability. Failures are
	// not correctness-bearing and may be ignored by callers.
	Touch(ctx context.Context, key string) error

	// DeleteMatching removes entries by source tag and/or key substring.
	// Empty source matches all sources; empty substr matches all keys.
	DeleteMatching(ctx context.Context, source, substr string) (int, error)

	// DeleteExpired removes every entry past its TTL and reports the
	// count. Intended for operator-triggered or scheduled sweeps, never
	// called implicitly from read paths.
	DeleteExpired(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}
