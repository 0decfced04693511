package catalog

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory Repository: window and criteria filters are applied
// like the index applies them, so service tests see realistic candidate sets.
type memRepo struct {
	objs      map[string]object.Object
	seq       int64
	saveErrs  map[string]error
	err       error
	windows   []celestial.Window
	nearestK  int
	deleted   []string
	recordErr error
}

func newMemRepo(objs ...object.Object) *memRepo {
	r := &memRepo{objs: map[string]object.Object{}, saveErrs: map[string]error{}}
	for _, o := range objs {
		r.seq++
		r.objs[o.ObjectID()] = object.Reconstruct(r.seq, o.Attributes(), o.CreatedAt(), o.UpdatedAt())
	}
	return r
}

func (r *memRepo) sorted(c object.Criteria, keep func(object.Object) bool) []object.Object {
	var out []object.Object
	for _, o := range r.objs {
		if c.Matches(o) && (keep == nil || keep(o)) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID() < out[j].ObjectID() })
	return out
}

func (r *memRepo) Create(ctx context.Context, o object.Object) (object.Object, error) {
	if _, ok := r.objs[o.ObjectID()]; ok {
		return object.Object{}, fmt.Errorf("object %s: %w", o.ObjectID(), domain.ErrAlreadyExists)
	}
	return r.Save(ctx, o)
}

func (r *memRepo) Save(_ context.Context, o object.Object) (object.Object, error) {
	if r.err != nil {
		return object.Object{}, r.err
	}
	if err := r.saveErrs[o.ObjectID()]; err != nil {
		return object.Object{}, err
	}
	if o.ID() == 0 {
		r.seq++
		o = object.Reconstruct(r.seq, o.Attributes(), o.CreatedAt(), o.UpdatedAt())
	}
	r.objs[o.ObjectID()] = o
	return o, nil
}

func (r *memRepo) SaveMany(ctx context.Context, objs []object.Object) ([]object.Object, []error) {
	out := make([]object.Object, len(objs))
	errs := make([]error, len(objs))
	failed := false
	for i, o := range objs {
		saved, err := r.Save(ctx, o)
		out[i], errs[i] = saved, err
		failed = failed || err != nil
	}
	if !failed {
		return out, nil
	}
	return out, errs
}

func (r *memRepo) Get(_ context.Context, id string) (object.Object, error) {
	if r.err != nil {
		return object.Object{}, r.err
	}
	o, ok := r.objs[id]
	if !ok {
		return object.Object{}, fmt.Errorf("object %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.objs[id]; !ok {
		return fmt.Errorf("object %s: %w", id, domain.ErrNotFound)
	}
	delete(r.objs, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memRepo) RecordObservation(_ context.Context, id string, at, now time.Time) (object.Object, error) {
	if r.recordErr != nil {
		return object.Object{}, r.recordErr
	}
	o, ok := r.objs[id]
	if !ok {
		return object.Object{}, fmt.Errorf("object %s: %w", id, domain.ErrNotFound)
	}
	o = o.RecordObservation(at, now)
	r.objs[id] = o
	return o, nil
}

func (r *memRepo) InWindow(_ context.Context, w celestial.Window, c object.Criteria) ([]object.Object, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.windows = append(r.windows, w)
	return r.sorted(c, func(o object.Object) bool { return w.Contains(o.RA(), o.Dec()) }), nil
}

func (r *memRepo) WindowPage(
	_ context.Context, w celestial.Window, c object.Criteria, offset, limit int,
) (object.Page, error) {
	r.windows = append(r.windows, w)
	all := r.sorted(c, func(o object.Object) bool { return w.Contains(o.RA(), o.Dec()) })
	return page(all, offset, limit), nil
}

func (r *memRepo) Find(_ context.Context, c object.Criteria, _ object.Sort, offset, limit int) (object.Page, error) {
	if r.err != nil {
		return object.Page{}, r.err
	}
	return page(r.sorted(c, nil), offset, limit), nil
}

func (r *memRepo) Count(_ context.Context, c object.Criteria) (int, error) {
	return len(r.sorted(c, nil)), nil
}

func (r *memRepo) Nearest(_ context.Context, ra, dec float64, k int, c object.Criteria) ([]object.Object, error) {
	r.nearestK = k
	all := r.sorted(c, nil)
	sort.SliceStable(all, func(i, j int) bool {
		return celestialDist(ra, dec, all[i]) < celestialDist(ra, dec, all[j])
	})
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

func celestialDist(ra, dec float64, o object.Object) float64 {
	a := celestial.ToUnitVector(ra, dec)
	b := celestial.ToUnitVector(o.RA(), o.Dec())
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

func (r *memRepo) CountByType(context.Context) (map[object.Type]int, error) {
	out := map[object.Type]int{}
	for _, o := range r.objs {
		out[o.Type()]++
	}
	return out, nil
}

func (r *memRepo) MagnitudeStats(context.Context) (map[object.Type]object.MagnitudeStats, error) {
	return map[object.Type]object.MagnitudeStats{object.Star: {Count: 1, Avg: 12, Min: 12, Max: 12}}, nil
}

func (r *memRepo) MatchingIDs(_ context.Context, c object.Criteria) ([]string, error) {
	var ids []string
	for _, o := range r.sorted(c, nil) {
		ids = append(ids, o.ObjectID())
	}
	return ids, nil
}

func (r *memRepo) DeleteMany(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if r.Delete(ctx, id) == nil {
			n++
		}
	}
	return n, nil
}

func page(all []object.Object, offset, limit int) object.Page {
	p := object.Page{Total: len(all), Offset: offset, Limit: limit}
	if offset < len(all) {
		p.Objects = all[offset:min(offset+limit, len(all))]
	}
	return p
}

type mockDetections struct {
	counts map[string]int64
	err    error
}

func (m *mockDetections) CountForObject(_ context.Context, id string) (int64, error) {
	return m.counts[id], m.err
}

type mockMatches struct{ removed []string }

func (m *mockMatches) DeleteByObject(_ context.Context, id string) (int64, error) {
	m.removed = append(m.removed, id)
	return 1, nil
}

func f64(v float64) *float64 { return &v }

func newObject(t *testing.T, id string, ra, dec float64, mut ...func(*object.Draft)) object.Object {
	t.Helper()
	d := object.Draft{ObjectID: id, Type: object.Star, RA: ra, Dec: dec, Magnitude: f64(12)}
	for _, m := range mut {
		m(&d)
	}
	o, err := object.New(d, testNow)
	if err != nil {
		t.Fatalf("object.New(%s): %v", id, err)
	}
	return o
}

func newService(repo *memRepo) *Service {
	return New(repo).WithClock(func() time.Time { return testNow })
}
