package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kailas-cloud/astrocat/internal/storage/blob"
)

// MinioImage is the object store image the integration tests run against.
const MinioImage = "minio/minio:RELEASE.2024-05-10T01-41-38Z"

const (
	minioAccessKey = "astrocat"
	minioSecretKey = "astrocat-secret"
)

// TestBlob holds a shared object store container.
type TestBlob struct {
	Container testcontainers.Container
	Store     *blob.Store
	Endpoint  string
}

var (
	sharedBlob     *TestBlob
	sharedBlobOnce sync.Once
	sharedBlobErr  error
)

// GetTestBlob returns a shared minio store with the well-known buckets created.
func GetTestBlob(t *testing.T) *TestBlob {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedBlobOnce.Do(func() {
		sharedBlob, sharedBlobErr = setupTestBlob()
	})

	if sharedBlobErr != nil {
		t.Skipf("minio container unavailable: %v", sharedBlobErr)
	}

	return sharedBlob
}

func setupTestBlob() (*TestBlob, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        MinioImage,
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioAccessKey,
				"MINIO_ROOT_PASSWORD": minioSecretKey,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").
				WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start minio container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get minio endpoint: %w", err)
	}

	store, err := blob.New(blob.Config{Endpoint: endpoint, AccessKey: minioAccessKey, SecretKey: minioSecretKey})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBuckets(ctx, blob.BucketIntermediates, blob.BucketWorkflowPlans); err != nil {
		return nil, err
	}

	return &TestBlob{Container: container, Store: store, Endpoint: endpoint}, nil
}
