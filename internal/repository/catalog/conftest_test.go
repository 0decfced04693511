package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
)

const testPrefix = "astrocat:"

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) []error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	hincrByFn      func(ctx context.Context, key, field string, delta int64) (int64, error)
	delFn          func(ctx context.Context, keys ...string) (int64, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	incrFn         func(ctx context.Context, key string) (int64, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn   func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchCountFn  func(ctx context.Context, q *db.ListQuery) (int, error)
	searchScanFn   func(ctx context.Context, q *db.ScanQuery, fn func([]db.SearchEntry) error) error
	aggregateFn    func(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, &db.Error{Op: db.OpHGetAll, Err: db.ErrNotFound}
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	if m.hincrByFn != nil {
		return m.hincrByFn(ctx, key, field, delta)
	}
	return delta, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return int64(len(keys)), nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrFn != nil {
		return m.incrFn(ctx, key)
	}
	return 1, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, q *db.ListQuery) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, q)
	}
	return 0, nil
}

func (m *mockStore) SearchScan(ctx context.Context, q *db.ScanQuery, fn func([]db.SearchEntry) error) error {
	if m.searchScanFn != nil {
		return m.searchScanFn(ctx, q, fn)
	}
	return nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testPrefix), ms
}

func f64(v float64) *float64 { return &v }

func testObject(t *testing.T, id string, ra, dec float64) object.Object {
	t.Helper()
	o, err := object.New(object.Draft{
		ObjectID:    id,
		Type:        object.Star,
		CatalogName: "GAIA_DR3",
		RA:          ra,
		Dec:         dec,
		Magnitude:   f64(12.5),
		Photometry:  map[string]float64{"G": 12.5, "BP": 12.9},
	}, testNow)
	if err != nil {
		t.Fatalf("object.New: %v", err)
	}
	return o
}

// hashOf renders an object the way the store would return it from a search.
func hashOf(t *testing.T, o object.Object) map[string]string {
	t.Helper()
	m, err := objectToHash(o)
	if err != nil {
		t.Fatalf("objectToHash: %v", err)
	}
	return m
}
