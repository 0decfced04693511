package crossmatch

import (
	"context"

	xm "github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Searcher finds catalog objects around a position.
type Searcher interface {
	Cone(ctx context.Context, q catalog.ConeQuery) ([]object.Hit, error)
}

// Store persists accepted cross-matches.
type Store interface {
	Upsert(ctx context.Context, records []xm.Record) ([]xm.Record, error)
	ListByObject(ctx context.Context, objectID string) ([]xm.Record, error)
}
