// Package intermediate keeps per-session intermediate products of the reduction pipeline.
package intermediate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/storage/blob"
)

// Service stores intermediates under sessions/{session}/{step}/{timestamp}/{file}.
type Service struct {
	store  Store
	bucket string
	logger *zap.Logger
}

// New creates an intermediate service on the default bucket.
func New(store Store) *Service {
	return &Service{store: store, bucket: blob.BucketIntermediates, logger: zap.NewNop()}
}

// WithBucket overrides the bucket.
func (s *Service) WithBucket(bucket string) *Service {
	if bucket != "" {
		s.bucket = bucket
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Put stores data and returns its key.
func (s *Service) Put(ctx context.Context, sessionID, stepType, filename string, data []byte, at time.Time) (string, error) {
	key, err := blob.IntermediateKey(sessionID, stepType, filename, at)
	if err != nil {
		return "", domain.NewInvalidArgument("key", err.Error())
	}
	if err := s.store.Put(ctx, s.bucket, key, data); err != nil {
		return "", fmt.Errorf("put intermediate: %w", err)
	}
	s.logger.Debug("intermediate stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

// Get reads a stored intermediate by key.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if !strings.HasPrefix(key, "sessions/") {
		return nil, domain.NewInvalidArgument("key", "must start with sessions/")
	}
	data, err := s.store.Get(ctx, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get intermediate: %w", err)
	}
	return data, nil
}

// ListSession returns the keys of one session in lexical order.
func (s *Service) ListSession(ctx context.Context, sessionID string) ([]string, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}
	keys, err := s.store.List(ctx, s.bucket, blob.SessionPrefix(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list session: %w", err)
	}
	return keys, nil
}

// DeleteSession removes every intermediate of a session and returns how many were removed.
// Keys removed before a failure stay removed.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	keys, err := s.ListSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	var errs []error
	removed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("delete session: %w", domain.ErrCancelled)
		}
		if err := s.store.Delete(ctx, s.bucket, k); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		removed++
	}
	s.logger.Info("session intermediates deleted",
		zap.String("session_id", sessionID), zap.Int("removed", removed), zap.Int("failed", len(errs)))
	if len(errs) > 0 {
		return removed, fmt.Errorf("delete session: %w", errors.Join(errs...))
	}
	return removed, nil
}

func validSession(id string) error {
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
		return domain.NewInvalidArgument("sessionId", "must be a non-empty path segment")
	}
	return nil
}
