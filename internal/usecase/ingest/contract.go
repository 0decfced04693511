package ingest

import (
	"context"

	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	"github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Importer stores prepared objects.
type Importer interface {
	BulkImport(ctx context.Context, drafts []object.Draft, batchSize int) (catalog.BulkResult, error)
}

// Workflows resolves the version that stamps ingested objects.
type Workflows interface {
	GetActiveForProcessing(ctx context.Context, name string, typ processing.Type) (wf.Version, error)
	RecordUsage(ctx context.Context, k wf.Key) (int64, error)
}

// ManifestWriter persists provenance manifests.
type ManifestWriter interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
}
