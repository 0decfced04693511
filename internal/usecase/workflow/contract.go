package workflow

import (
	"context"

	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
)

// Store persists workflow versions and their activation history.
// Apply runs a mutation under the name's lock and commits it atomically.
type Store interface {
	Apply(ctx context.Context, name string, fn wf.Mutation) ([]wf.HistoryEntry, error)
	Get(ctx context.Context, k wf.Key) (wf.Version, error)
	ListByName(ctx context.Context, name string) ([]wf.Version, error)
	ListActive(ctx context.Context, typ processing.Type) ([]wf.Version, error)
	IncrementUsage(ctx context.Context, k wf.Key) (int64, error)
	History(ctx context.Context, name string, typ processing.Type, limit int) ([]wf.HistoryEntry, error)
}

// PlanPublisher hands duplication plans to the processing workers.
type PlanPublisher interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
}
