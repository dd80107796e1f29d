package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store used by unit tests in place of a real
// Redis server. It reproduces watch/commit semantics with a per-key version counter
// instead of Redis's MULTI/EXEC.
type MemStore struct {
	mu       sync.Mutex
	ints     map[string]int64
	hashes   map[string]map[string]string
	lists    map[string][]string
	sets     map[string]map[string]struct{}
	versions map[string]uint64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		ints:     map[string]int64{},
		hashes:   map[string]map[string]string{},
		lists:    map[string][]string{},
		sets:     map[string]map[string]struct{}{},
		versions: map[string]uint64{},
	}
}

func (s *MemStore) bump(key string) {
	s.versions[key]++
}

func (s *MemStore) GetInt(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ints[key], nil
}

func (s *MemStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) LRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lists[key]))
	copy(out, s.lists[key])
	return out, nil
}

func (s *MemStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *MemStore) Batch(ctx context.Context, fn func(w Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &memWriter{s: s, ops: nil}
	if err := fn(w); err != nil {
		return err
	}
	w.commit()
	return nil
}

func (s *MemStore) Watch(ctx context.Context, watch []string, fn func(r Reader, w Writer) error) error {
	s.mu.Lock()
	before := make(map[string]uint64, len(watch))
	for _, k := range watch {
		before[k] = s.versions[k]
	}
	s.mu.Unlock()

	r := &memReader{s: s, ctx: ctx}
	w := &memWriter{s: s}
	if err := fn(r, w); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range watch {
		if s.versions[k] != before[k] {
			return ErrConflict
		}
	}
	w.commit()
	return nil
}

// memReader reads directly against the live store, taking the store's
// lock one read at a time. Watch does not hold the lock while fn runs;
// a concurrent write to a watched key is caught by the version check
// at commit time.
type memReader struct {
	s   *MemStore
	ctx context.Context
}

func (r *memReader) GetInt(ctx context.Context, key string) (int64, error) {
	return r.s.GetInt(ctx, key)
}

func (r *memReader) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.s.HGetAll(ctx, key)
}

func (r *memReader) LRange(ctx context.Context, key string) ([]string, error) {
	return r.s.LRange(ctx, key)
}

func (r *memReader) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.s.SIsMember(ctx, key, member)
}

// memWriter stages ops so they apply only once the caller confirms
// none of the watched keys moved, then the whole batch bumps versions.
type memWriter struct {
	s   *MemStore
	ops []func()
}

func (w *memWriter) HSet(key string, fields map[string]string) {
	w.ops = append(w.ops, func() {
		h, ok := w.s.hashes[key]
		if !ok {
			h = map[string]string{}
			w.s.hashes[key] = h
		}
		for k, v := range fields {
			h[k] = v
		}
		w.s.bump(key)
	})
}

func (w *memWriter) RPush(key string, values ...string) {
	w.ops = append(w.ops, func() {
		w.s.lists[key] = append(w.s.lists[key], values...)
		w.s.bump(key)
	})
}

func (w *memWriter) SAdd(key string, member string) {
	w.ops = append(w.ops, func() {
		set, ok := w.s.sets[key]
		if !ok {
			set = map[string]struct{}{}
			w.s.sets[key] = set
		}
		set[member] = struct{}{}
		w.s.bump(key)
	})
}

func (w *memWriter) SRem(key string, member string) {
	w.ops = append(w.ops, func() {
		delete(w.s.sets[key], member)
		w.s.bump(key)
	})
}

func (w *memWriter) IncrBy(key string, delta int64) {
	w.ops = append(w.ops, func() {
		w.s.ints[key] += delta
		w.s.bump(key)
	})
}

func (w *memWriter) Del(keys ...string) {
	w.ops = append(w.ops, func() {
		for _, key := range keys {
			delete(w.s.hashes, key)
			delete(w.s.lists, key)
			delete(w.s.sets, key)
			delete(w.s.ints, key)
			w.s.bump(key)
		}
	})
}

func (w *memWriter) commit() {
	for _, op := range w.ops {
		op()
	}
}
