package crossmatch_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xm "github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/repository/crossmatch"
	"github.com/kailas-cloud/astrocat/internal/testhelpers"
)

func record(t *testing.T, objectID, catalog, externalID string, sep, prob float64) xm.Record {
	t.Helper()
	r, err := xm.NewRecord(objectID, xm.Match{
		Candidate:   xm.Candidate{ID: externalID, Catalog: catalog, RA: 12.345, Dec: -30, Magnitude: math.NaN()},
		Separation:  sep,
		Probability: prob,
	}, "v1.0", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return r
}

func TestRepo_UpsertAndList(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t, "crossmatches")
	r := crossmatch.New(tdb.DB)
	ctx := context.Background()

	saved, err := r.Upsert(ctx, []xm.Record{
		record(t, "STAR-1", "GAIA_DR3", "4295806720", 0.36, 0.97),
		record(t, "STAR-1", "2MASS", "J00492280-3000003", 0.80, 0.71),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID())
	assert.Nil(t, saved[0].External().Magnitude)

	// same key updates in place
	again, err := r.Upsert(ctx, []xm.Record{record(t, "STAR-1", "2MASS", "J00492280-3000003", 0.20, 0.99)})
	require.NoError(t, err)
	assert.Equal(t, saved[1].ID(), again[0].ID())

	list, err := r.ListByObject(ctx, "STAR-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2MASS", list[0].CatalogName())
	assert.InDelta(t, 0.99, list[0].Confidence(), 1e-12)
	assert.Equal(t, xm.DefaultMethod, list[0].Method())

	n, err := r.DeleteByObject(ctx, "STAR-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	empty, err := r.ListByObject(ctx, "STAR-1")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
