// Package store provides the backing key-value abstraction the claim
// subsystem is built against: a deterministic keyspace (Keys), a
// Redis-backed implementation exercising the optimistic WATCH/MULTI/EXEC
// transaction primitive the design in spec.md §9 depends on, and an
// in-memory stand-in used by tests.
package store

import (
	"context"
	"errors"
)

// ErrConflict is returned by Watch when a watched key changed between
// the watch being established and the transaction committing. Callers
// retry the whole operation from scratch, per the claim controller's
// contention-retry loop.
var ErrConflict = errors.New("store: watched key changed before commit")

// Reader performs point-in-time reads against the store.
type Reader interface {
	GetInt(ctx context.Context, key string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	LRange(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Writer stages mutations inside an atomic batch. None of its methods
// take effect until the enclosing Batch or Watch call commits.
type Writer interface {
	HSet(key string, fields map[string]string)
	RPush(key string, values ...string)
	SAdd(key string, member string)
	SRem(key string, member string)
	IncrBy(key string, delta int64)
	Del(keys ...string)
}

// Store is the backing key-value store the claim subsystem is built
// against. It offers two atomicity primitives:
//
//   - Batch stages writes that commit together, with no contention
//     check; used by operations that own their own keys outright
//     (Update, Delete).
//   - Watch additionally aborts the whole batch if any key in watch
//     changed since the watch began, returning ErrConflict; this is the
//     contention witness mechanism Create relies on.
type Store interface {
	Reader

	Batch(ctx context.Context, fn func(w Writer) error) error
	Watch(ctx context.Context, watch []string, fn func(r Reader, w Writer) error) error
}
