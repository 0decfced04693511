package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/astrocat/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, hsetCmd(s.b(), key, fields)).Error(); err != nil {
		return wrap(db.OpHSet, err)
	}
	return nil
}

// HSetMulti stores multiple hashes in a single DoMulti round-trip.
// The returned slice is nil when every write succeeded; otherwise it holds one entry per item.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = hsetCmd(s.b(), item.Key, item.Fields)
	}

	var errs []error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			if errs == nil {
				errs = make([]error, len(items))
			}
			errs[i] = wrap(db.OpHSet, fmt.Errorf("key %s: %w", items[i].Key, err))
		}
	}
	return errs
}

func hsetCmd(b rueidis.Builder, key string, fields map[string]string) rueidis.Completed {
	cmd := b.Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// HGetAll returns all fields of a hash; db.ErrNotFound when the key is absent.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, wrap(db.OpHGetAll, err)
	}
	if len(m) == 0 {
		return nil, &db.Error{Op: db.OpHGetAll, Err: db.ErrNotFound}
	}
	return m, nil
}

// HGetAllMulti fetches multiple hashes in a single DoMulti round-trip.
// Missing keys yield nil maps at their position.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, wrap(db.OpHGetAll, fmt.Errorf("key %s: %w", keys[i], err))
		}
		if len(m) > 0 {
			out[i] = m
		}
	}
	return out, nil
}

// HIncrBy atomically adds delta to a hash field and returns the new value.
func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	cmd := s.b().Hincrby().Key(key).Field(field).Increment(delta).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, wrap(db.OpHIncrBy, err)
	}
	return n, nil
}

// Del deletes keys and returns how many existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, wrap(db.OpDel, err)
	}
	return n, nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, wrap(db.OpExists, err)
	}
	return count > 0, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, wrap(db.OpScan, err)
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
