package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis server, using
// Client.Watch for the contention-witness transaction and
// Client.TxPipelined for plain atomic batches.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *RedisStore) LRange(ctx context.Context, key string) ([]string, error) {
	return s.rdb.LRange(ctx, key, 0, -1).Result()
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

func (s *RedisStore) Batch(ctx context.Context, fn func(w Writer) error) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisWriter{ctx: ctx, pipe: pipe})
	})
	return err
}

func (s *RedisStore) Watch(ctx context.Context, watch []string, fn func(r Reader, w Writer) error) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		reader := &redisTxReader{tx: tx, ctx: ctx}
		_, pipeErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return fn(reader, &redisWriter{ctx: ctx, pipe: pipe})
		})
		return pipeErr
	}, watch...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// redisTxReader reads through the *redis.Tx established by Watch, so
// reads observe the watched snapshot rather than racing ahead of it.
type redisTxReader struct {
	tx  *redis.Tx
	ctx context.Context
}

func (r *redisTxReader) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := r.tx.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *redisTxReader) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.tx.HGetAll(ctx, key).Result()
}

func (r *redisTxReader) LRange(ctx context.Context, key string) ([]string, error) {
	return r.tx.LRange(ctx, key, 0, -1).Result()
}

func (r *redisTxReader) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.tx.SIsMember(ctx, key, member).Result()
}

// redisWriter queues mutations on a pipeline; they take effect only if
// the enclosing MULTI/EXEC commits.
type redisWriter struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (w *redisWriter) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	w.pipe.HSet(w.ctx, key, args...)
}

func (w *redisWriter) RPush(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.pipe.RPush(w.ctx, key, args...)
}

func (w *redisWriter) SAdd(key string, member string) {
	w.pipe.SAdd(w.ctx, key, member)
}

func (w *redisWriter) SRem(key string, member string) {
	w.pipe.SRem(w.ctx, key, member)
}

func (w *redisWriter) IncrBy(key string, delta int64) {
	w.pipe.IncrBy(w.ctx, key, delta)
}

func (w *redisWriter) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	w.pipe.Del(w.ctx, keys...)
}
