package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain"
)

func TestIntermediateKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 22, 5, 7, 0, time.FixedZone("CET", 3600))

	key, err := IntermediateKey("sess-42", "dark_subtraction", "frame_001.fits", at)
	require.NoError(t, err)
	assert.Equal(t, "sessions/sess-42/dark_subtraction/20240309-210507/frame_001.fits", key)
	assert.Contains(t, key, SessionPrefix("sess-42"))

	for _, bad := range [][3]string{
		{"", "step", "f.fits"},
		{"s", "", "f.fits"},
		{"s", "step", ""},
		{"a/b", "step", "f.fits"},
		{"s", "..", "f.fits"},
	} {
		_, err := IntermediateKey(bad[0], bad[1], bad[2], at)
		assert.Error(t, err, "%v", bad)
	}
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	s, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, s.client)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("plans/x.json"))
	assert.Equal(t, "application/fits", contentType("sessions/s/step/t/frame.fits"))
	assert.Equal(t, "application/octet-stream", contentType("raw.bin"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, db.ErrNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, db.ErrNotFound},
		{"bare 404", minio.ErrorResponse{StatusCode: http.StatusNotFound}, db.ErrNotFound},
		{"slow down", minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, db.ErrUnavailable},
		{"5xx", minio.ErrorResponse{StatusCode: http.StatusBadGateway}, db.ErrUnavailable},
		{"refused", errors.New("dial tcp: connection refused"), db.ErrUnavailable},
		{"canceled", fmt.Errorf("get: %w", context.Canceled), context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}

	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	got := classify(denied)
	assert.NotErrorIs(t, got, db.ErrNotFound)
	assert.NotErrorIs(t, got, db.ErrUnavailable)
}

func TestWrap_TranslatesToDomain(t *testing.T) {
	err := wrap(db.OpGet, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, db.ErrNotFound)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpGet, dbErr.Op)

	assert.ErrorIs(t, wrap(db.OpPut, minio.ErrorResponse{Code: "SlowDown"}), domain.ErrStorageUnavailable)
}

func TestStore_RejectsInvalidKey(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000"})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, BucketIntermediates, "", []byte("x")))
	_, err = s.Get(ctx, BucketIntermediates, "/abs")
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, BucketIntermediates, ""))
}
