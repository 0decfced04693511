// Package blob stores opaque documents (intermediate products, manifests,
// duplication plans) in an S3-compatible object store.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/retry"
)

// Well-known buckets.
const (
	BucketIntermediates = "intermediates"
	BucketWorkflowPlans = "workflow-plans"
)

const keyTimeLayout = "20060102-150405"

// Config holds object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Buckets   []string
}

// Store is a minio-backed blob store.
type Store struct {
	client *minio.Client
	region string
	retry  *retry.Config
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// WithRetry overrides the retry policy used for bucket initialisation.
func WithRetry(cfg *retry.Config) Option { return func(s *Store) { s.retry = cfg } }

// New creates a client. No network round trip happens until the first call.
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("blob: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: create client: %w", err)
	}
	s := &Store{client: client, region: cfg.Region, retry: retry.DefaultConfig(), logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// EnsureBuckets creates every missing bucket, retrying transient failures.
func (s *Store) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		err := retry.DoIfRetryable(ctx, s.retry, func() error {
			exists, err := s.client.BucketExists(ctx, bucket)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
			if err != nil && errorCode(err) != "BucketAlreadyOwnedByYou" {
				return err
			}
			s.logger.Info("created bucket", zap.String("bucket", bucket))
			return nil
		})
		if err != nil {
			return wrap(db.OpPut, fmt.Errorf("ensure bucket %s: %w", bucket, err))
		}
	}
	return nil
}

// Ping checks the endpoint is reachable by listing buckets.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return wrap(db.OpList, err)
	}
	return nil
}

// Put stores data under bucket/key, replacing any existing object.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return wrap(db.OpPut, err)
	}
	return nil
}

// Get reads the object at bucket/key. A missing object yields db.ErrNotFound.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap(db.OpGet, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, wrap(db.OpGet, err)
	}
	return data, nil
}

// List returns the keys under prefix in lexical order.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, wrap(db.OpList, info.Err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

// Delete removes bucket/key. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return wrap(db.OpRemove, err)
	}
	return nil
}

// IntermediateKey builds sessions/{sessionId}/{stepType}/{yyyymmdd-HHMMSS}/{filename}.
func IntermediateKey(sessionID, stepType, filename string, at time.Time) (string, error) {
	parts := [...][2]string{{"sessionId", sessionID}, {"stepType", stepType}, {"filename", filename}}
	for _, p := range parts {
		if v := p[1]; v == "" || strings.Contains(v, "/") || v == "." || v == ".." {
			return "", fmt.Errorf("blob: invalid %s %q", p[0], v)
		}
	}
	return path.Join("sessions", sessionID, stepType, at.UTC().Format(keyTimeLayout), filename), nil
}

// SessionPrefix is the key prefix holding every intermediate of a session.
func SessionPrefix(sessionID string) string {
	return "sessions/" + sessionID + "/"
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("blob: invalid key %q", key)
	}
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".fits", ".fit", ".fts":
		return "application/fits"
	default:
		return "application/octet-stream"
	}
}

func errorCode(err error) string {
	return minio.ToErrorResponse(err).Code
}

func wrap(op string, err error) error {
	return db.DomainError(&db.Error{Op: op, Err: classify(err)})
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchObject":
		return fmt.Errorf("%w: %w", db.ErrNotFound, err)
	case "SlowDown", "ServiceUnavailable", "RequestTimeout", "InternalError":
		return fmt.Errorf("%w: %w", db.ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", db.ErrNotFound, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || retry.IsRetryable(err) {
		return fmt.Errorf("%w: %w", db.ErrUnavailable, err)
	}
	return err
}
