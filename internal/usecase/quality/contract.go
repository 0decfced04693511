package quality

import (
	"context"

	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/usecase/catalog"
)

// Catalog pages through the objects of a sky region.
type Catalog interface {
	Box(ctx context.Context, q catalog.BoxQuery) (object.Page, error)
}
