package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/query/filter"
)

func TestWindowExpression_Seam(t *testing.T) {
	w := celestial.ConeWindow(0, 0, 3600)
	expr, err := windowExpression(w, object.Criteria{Types: []object.Type{object.Star}})
	if err != nil {
		t.Fatal(err)
	}
	if len(expr.Should()) != 2 {
		t.Fatalf("seam window must produce two OR'ed RA ranges, got %d", len(expr.Should()))
	}
	for _, c := range expr.Should() {
		if c.Key() != fieldRA {
			t.Errorf("should condition on %s, want ra", c.Key())
		}
	}
	if len(expr.Must()) != 2 {
		t.Errorf("expected type + dec conditions, got %d", len(expr.Must()))
	}
}

func TestWindowExpression_SingleAndFull(t *testing.T) {
	expr, err := windowExpression(celestial.ConeWindow(180, 0, 60), object.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(expr.Should()) != 0 || len(expr.Must()) != 2 {
		t.Errorf("single interval goes in must: must=%d should=%d", len(expr.Must()), len(expr.Should()))
	}

	expr, err = windowExpression(celestial.ConeWindow(10, 89.9, 3600), object.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(expr.Should()) != 0 || len(expr.Must()) != 1 {
		t.Errorf("polar cap filters on dec only: must=%d should=%d", len(expr.Must()), len(expr.Should()))
	}
}

func TestCriteriaConditions(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	conds, err := criteriaConditions(object.Criteria{
		Types:              []object.Type{object.CosmicRay, object.Artifact},
		CatalogName:        "SDSS",
		MinMagnitude:       f64(10),
		MaxMagnitude:       f64(15),
		MinSignificance:    f64(5),
		MinProperMotion:    f64(100),
		MinParallax:        f64(10),
		ObservedBefore:     cutoff,
		ObservationsAtMost: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	byKey := map[string]filter.Condition{}
	for _, c := range conds {
		byKey[c.Key()] = c
	}
	if v := byKey[fieldType].Values(); len(v) != 2 || v[0] != "COSMIC_RAY" {
		t.Errorf("type values = %v", v)
	}
	mag := byKey[fieldMagnitude].Range()
	if mag == nil || *mag.GTE() != 10 || *mag.LTE() != 15 {
		t.Errorf("magnitude range wrong: %+v", mag)
	}
	last := byKey[fieldLastObserved].Range()
	if last == nil || last.LT() == nil || *last.LT() != float64(cutoff.UnixMilli()) {
		t.Errorf("last_observed must be an exclusive upper bound: %+v", last)
	}
	if byKey[fieldObservationCount].Range() == nil {
		t.Error("observation_count bound missing")
	}
	if len(conds) != 8 {
		t.Errorf("expected 8 conditions, got %d", len(conds))
	}

	_, err = criteriaConditions(object.Criteria{MinMagnitude: f64(15), MaxMagnitude: f64(10)})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("inverted magnitude range: expected ErrInvalidArgument, got %v", err)
	}
	_, err = criteriaConditions(object.Criteria{Types: []object.Type{"PULSAR"}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unknown type: expected ErrInvalidArgument, got %v", err)
	}
}

// scanEntries serves entries in batches of q.BatchSize, like a server cursor.
func scanEntries(t *testing.T, entries []db.SearchEntry, queries *[]*db.ScanQuery) func(
	context.Context, *db.ScanQuery, func([]db.SearchEntry) error,
) error {
	t.Helper()
	return func(_ context.Context, q *db.ScanQuery, fn func([]db.SearchEntry) error) error {
		*queries = append(*queries, q)
		for start := 0; start < len(entries); start += q.BatchSize {
			end := min(start+q.BatchSize, len(entries))
			if err := fn(entries[start:end]); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestInWindow_ScansAllBatches(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithPageSize(2)

	// Every object shares one declination, so no ordering could page them stably.
	var entries []db.SearchEntry
	for i := range 5 {
		o := testObject(t, fmt.Sprintf("T%d", i), float64(i)*0.01, 0.5)
		entries = append(entries, db.SearchEntry{Key: "astrocat:obj:" + o.ObjectID(), Fields: hashOf(t, o)})
	}
	var queries []*db.ScanQuery
	ms.searchScanFn = scanEntries(t, entries, &queries)
	ms.searchListFn = func(context.Context, *db.ListQuery) (*db.SearchResult, error) {
		t.Error("window scans must not page by offset")
		return &db.SearchResult{}, nil
	}

	got, err := repo.InWindow(context.Background(), celestial.ConeWindow(0, 0.5, 3600), object.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, o := range got {
		if seen[o.ObjectID()] {
			t.Errorf("duplicate object %s", o.ObjectID())
		}
		seen[o.ObjectID()] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct objects, got %d", len(seen))
	}
	if len(queries) != 1 {
		t.Fatalf("expected one scan, got %d", len(queries))
	}
	q := queries[0]
	if q.BatchSize != 2 || q.IndexName != repo.indexName() {
		t.Errorf("unexpected scan query: %+v", q)
	}
	if len(q.LoadFields) != len(returnFields) {
		t.Errorf("load fields = %v", q.LoadFields)
	}
}

func TestInWindow_Cancelled(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithPageSize(1)
	ctx, cancel := context.WithCancel(context.Background())

	var entries []db.SearchEntry
	for i := range 10 {
		o := testObject(t, fmt.Sprintf("O%d", i), 1, 1)
		entries = append(entries, db.SearchEntry{Key: "astrocat:obj:" + o.ObjectID(), Fields: hashOf(t, o)})
	}
	batches := 0
	ms.searchScanFn = func(_ context.Context, _ *db.ScanQuery, fn func([]db.SearchEntry) error) error {
		for _, e := range entries {
			batches++
			cancel()
			if err := fn([]db.SearchEntry{e}); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := repo.InWindow(ctx, celestial.ConeWindow(1, 1, 60), object.Criteria{})
	if !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if batches != 1 {
		t.Errorf("scan must stop after the in-flight batch, got %d batches", batches)
	}
}

func TestInWindow_ScanError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchScanFn = func(context.Context, *db.ScanQuery, func([]db.SearchEntry) error) error {
		return db.ErrUnavailable
	}

	_, err := repo.InWindow(context.Background(), celestial.ConeWindow(1, 1, 60), object.Criteria{})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestWindowPage(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		if q.Offset != 10 || q.Limit != 5 {
			t.Errorf("offset/limit = %d/%d", q.Offset, q.Limit)
		}
		return &db.SearchResult{Total: 11, Entries: []db.SearchEntry{{Key: "k", Fields: hashOf(t, testObject(t, "Z", 3, 3))}}}, nil
	}
	page, err := repo.WindowPage(context.Background(), celestial.BoxWindow(350, 10, -5, 5), object.Criteria{}, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 11 || len(page.Objects) != 1 || page.HasMore() {
		t.Errorf("unexpected page: total=%d n=%d more=%v", page.Total, len(page.Objects), page.HasMore())
	}
}

func TestFind_SortValidation(t *testing.T) {
	repo, ms := newTestRepo(t)
	var sortBy string
	var desc bool
	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		sortBy, desc = q.SortBy, q.Descending
		return &db.SearchResult{}, nil
	}
	_, err := repo.Find(context.Background(), object.Criteria{MinProperMotion: f64(100)},
		object.Sort{Field: object.SortProperMotion, Descending: true}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sortBy != fieldPMTotal || !desc {
		t.Errorf("sort = %s desc=%v", sortBy, desc)
	}

	_, err = repo.Find(context.Background(), object.Criteria{}, object.Sort{Field: "name"}, 0, 10)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNearest(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.VectorField != fieldDirection || q.K != 3 || len(q.Vector) != 3 {
			t.Errorf("unexpected knn query: %+v", q)
		}
		if q.Vector[2] != 1 {
			t.Errorf("north pole direction z = %g", q.Vector[2])
		}
		o := testObject(t, "N", 0, 89.99)
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{Key: "astrocat:obj:N", Score: 1e-6, Fields: hashOf(t, o)}}}, nil
	}
	got, err := repo.Nearest(context.Background(), 0, 90, 3, object.Criteria{Types: []object.Type{object.Star}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ObjectID() != "N" {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestCountAndStats(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(context.Context, *db.ListQuery) (int, error) { return 12, nil }
	n, err := repo.Count(context.Background(), object.Criteria{Types: []object.Type{object.Galaxy}})
	if err != nil || n != 12 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	ms.aggregateFn = func(_ context.Context, q *db.AggregateQuery) ([]map[string]string, error) {
		if q.GroupBy != fieldType {
			t.Errorf("group by %s", q.GroupBy)
		}
		if len(q.Reductions) == 1 {
			return []map[string]string{{"type": "STAR", "count": "5"}, {"type": "GALAXY", "count": "2"}}, nil
		}
		if q.Filters.IsEmpty() {
			t.Error("magnitude stats must exclude objects without magnitude")
		}
		return []map[string]string{{"type": "STAR", "count": "4", "avg": "12.25", "min": "10", "max": "14.5"}}, nil
	}

	counts, err := repo.CountByType(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[object.Star] != 5 || counts[object.Galaxy] != 2 {
		t.Errorf("counts = %v", counts)
	}

	stats, err := repo.MagnitudeStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := object.MagnitudeStats{Count: 4, Avg: 12.25, Min: 10, Max: 14.5}
	if stats[object.Star] != want {
		t.Errorf("stats = %+v, want %+v", stats[object.Star], want)
	}
}

func TestMatchingIDsAndDeleteMany(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithPageSize(2)
	entries := []db.SearchEntry{{Key: "astrocat:obj:a"}, {Key: "astrocat:obj:b"}, {Key: "astrocat:obj:c"}}
	var queries []*db.ScanQuery
	ms.searchScanFn = scanEntries(t, entries, &queries)
	var deleted []string
	ms.delFn = func(_ context.Context, ks ...string) (int64, error) {
		deleted = append(deleted, ks...)
		return int64(len(ks)), nil
	}

	ids, err := repo.MatchingIDs(context.Background(), object.Criteria{
		Types:          object.TransientTypes,
		ObservedBefore: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("ids = %v", ids)
	}
	if len(queries) != 1 || len(queries[0].LoadFields) != 1 || queries[0].LoadFields[0] != fieldObjectID {
		t.Errorf("unexpected scan queries: %+v", queries)
	}

	n, err := repo.DeleteMany(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(deleted) != 3 || deleted[1] != "astrocat:obj:b" {
		t.Errorf("deleted %d (%v), want 3", n, deleted)
	}
}
