package redis

import (
	"context"

	"github.com/kailas-cloud/astrocat/internal/db"
)

// Incr atomically increments a counter key and returns the new value.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Incr().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, wrap(db.OpIncr, err)
	}
	return n, nil
}
