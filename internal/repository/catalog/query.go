package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/celestial"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/query/filter"
)

var sortFields = map[object.SortField]string{
	object.SortDec:          fieldDec,
	object.SortMagnitude:    fieldMagnitude,
	object.SortProperMotion: fieldPMTotal,
	object.SortParallax:     fieldParallax,
	object.SortLastObserved: fieldLastObserved,
}

// InWindow returns every object inside the window that satisfies the criteria.
// It walks a server-side cursor, so the result is unordered and not capped by the
// index's result window. Cancellation is checked after every batch.
func (r *Repo) InWindow(ctx context.Context, w celestial.Window, c object.Criteria) ([]object.Object, error) {
	expr, err := windowExpression(w, c)
	if err != nil {
		return nil, err
	}

	var out []object.Object
	err = r.scan(ctx, expr, returnFields, func(batch []db.SearchEntry) error {
		objs, err := r.entriesToObjects(&db.SearchResult{Entries: batch})
		if err != nil {
			return err
		}
		out = append(out, objs...)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WindowPage returns one page of objects inside the window, ordered by declination.
func (r *Repo) WindowPage(
	ctx context.Context, w celestial.Window, c object.Criteria, offset, limit int,
) (object.Page, error) {
	expr, err := windowExpression(w, c)
	if err != nil {
		return object.Page{}, err
	}
	objs, total, err := r.list(ctx, expr, object.Sort{Field: object.SortDec}, offset, limit)
	if err != nil {
		return object.Page{}, err
	}
	return object.Page{Objects: objs, Total: total, Offset: offset, Limit: limit}, nil
}

// Find returns one page of objects matching the criteria.
func (r *Repo) Find(
	ctx context.Context, c object.Criteria, sort object.Sort, offset, limit int,
) (object.Page, error) {
	expr, err := criteriaExpression(c)
	if err != nil {
		return object.Page{}, err
	}
	objs, total, err := r.list(ctx, expr, sort, offset, limit)
	if err != nil {
		return object.Page{}, err
	}
	return object.Page{Objects: objs, Total: total, Offset: offset, Limit: limit}, nil
}

// Count returns the number of objects matching the criteria.
func (r *Repo) Count(ctx context.Context, c object.Criteria) (int, error) {
	expr, err := criteriaExpression(c)
	if err != nil {
		return 0, err
	}
	n, err := r.store.SearchCount(ctx, &db.ListQuery{IndexName: r.indexName(), Filters: expr})
	if err != nil {
		return 0, db.DomainError(fmt.Errorf("count objects: %w", err))
	}
	return n, nil
}

// Nearest returns up to k objects whose directions are closest to (ra, dec), nearest first.
// The index orders by chord length, which is monotonic in angular separation.
func (r *Repo) Nearest(ctx context.Context, ra, dec float64, k int, c object.Criteria) ([]object.Object, error) {
	expr, err := criteriaExpression(c)
	if err != nil {
		return nil, err
	}
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldDirection,
		Filters:      expr,
		Vector:       celestial.ToVector(ra, dec),
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, db.DomainError(fmt.Errorf("knn objects: %w", err))
	}
	return r.entriesToObjects(res)
}

// CountByType groups every object by classification.
func (r *Repo) CountByType(ctx context.Context) (map[object.Type]int, error) {
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName:  r.indexName(),
		GroupBy:    fieldType,
		Reductions: []db.Reduction{{Reducer: db.ReduceCount, As: "count"}},
	})
	if err != nil {
		return nil, db.DomainError(fmt.Errorf("aggregate counts: %w", err))
	}
	out := make(map[object.Type]int, len(rows))
	for _, row := range rows {
		out[object.Type(row[fieldType])] = parseCount(row["count"])
	}
	return out, nil
}

// MagnitudeStats returns avg/min/max magnitude per type over objects that have a magnitude.
func (r *Repo) MagnitudeStats(ctx context.Context) (map[object.Type]object.MagnitudeStats, error) {
	expr, err := filter.NewExpression([]filter.Condition{filter.AtLeast(fieldMagnitude, object.MinMagnitude)}, nil, nil)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.indexName(),
		Filters:   expr,
		GroupBy:   fieldType,
		Reductions: []db.Reduction{
			{Reducer: db.ReduceCount, As: "count"},
			{Reducer: db.ReduceAvg, Field: fieldMagnitude, As: "avg"},
			{Reducer: db.ReduceMin, Field: fieldMagnitude, As: "min"},
			{Reducer: db.ReduceMax, Field: fieldMagnitude, As: "max"},
		},
	})
	if err != nil {
		return nil, db.DomainError(fmt.Errorf("aggregate magnitudes: %w", err))
	}
	out := make(map[object.Type]object.MagnitudeStats, len(rows))
	for _, row := range rows {
		out[object.Type(row[fieldType])] = object.MagnitudeStats{
			Count: parseCount(row["count"]),
			Avg:   parseFloat(row["avg"]),
			Min:   parseFloat(row["min"]),
			Max:   parseFloat(row["max"]),
		}
	}
	return out, nil
}

// MatchingIDs returns the object ids of every object matching the criteria.
func (r *Repo) MatchingIDs(ctx context.Context, c object.Criteria) ([]string, error) {
	expr, err := criteriaExpression(c)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = r.scan(ctx, expr, []string{fieldObjectID}, func(batch []db.SearchEntry) error {
		for _, e := range batch {
			ids = append(ids, r.objectIDFromKey(e.Key))
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// scan feeds every match to fn in batches of pageSize.
func (r *Repo) scan(
	ctx context.Context, expr filter.Expression, fields []string, fn func([]db.SearchEntry) error,
) error {
	err := r.store.SearchScan(ctx, &db.ScanQuery{
		IndexName:  r.indexName(),
		Filters:    expr,
		BatchSize:  r.pageSize,
		LoadFields: fields,
	}, fn)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return db.DomainError(ctx.Err())
	default:
		return db.DomainError(fmt.Errorf("scan objects: %w", err))
	}
}

// DeleteMany removes objects by id in chunks and returns how many existed.
// Collect ids with MatchingIDs first rather than deleting inside a scan.
func (r *Repo) DeleteMany(ctx context.Context, objectIDs []string) (int, error) {
	var deleted int64
	for start := 0; start < len(objectIDs); start += r.pageSize {
		end := min(start+r.pageSize, len(objectIDs))
		keys := make([]string, 0, end-start)
		for _, id := range objectIDs[start:end] {
			keys = append(keys, r.objectKey(id))
		}
		n, err := r.store.Del(ctx, keys...)
		if err != nil {
			return int(deleted), db.DomainError(fmt.Errorf("del objects: %w", err))
		}
		deleted += n
	}
	return int(deleted), nil
}

func (r *Repo) list(
	ctx context.Context, expr filter.Expression, sort object.Sort, offset, limit int,
) ([]object.Object, int, error) {
	q := &db.ListQuery{
		IndexName:    r.indexName(),
		Filters:      expr,
		Offset:       offset,
		Limit:        limit,
		Descending:   sort.Descending,
		ReturnFields: returnFields,
	}
	if sort.Field != object.SortNone {
		f, ok := sortFields[sort.Field]
		if !ok {
			return nil, 0, domain.NewInvalidArgument("sort", fmt.Sprintf("unsupported field %q", sort.Field))
		}
		q.SortBy = f
	}

	res, err := r.store.SearchList(ctx, q)
	if err != nil {
		return nil, 0, db.DomainError(fmt.Errorf("search objects: %w", err))
	}
	objs, err := r.entriesToObjects(res)
	if err != nil {
		return nil, 0, err
	}
	return objs, res.Total, nil
}

func (r *Repo) entriesToObjects(res *db.SearchResult) ([]object.Object, error) {
	if res == nil || len(res.Entries) == 0 {
		return nil, nil
	}
	out := make([]object.Object, 0, len(res.Entries))
	for _, e := range res.Entries {
		o, err := objectFromHash(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse object %s: %w", r.objectIDFromKey(e.Key), err)
		}
		out = append(out, o)
	}
	return out, nil
}

// windowExpression prefilters on the declination band plus the RA intervals.
// Two intervals (seam crossing) form an OR group.
func windowExpression(w celestial.Window, c object.Criteria) (filter.Expression, error) {
	must, err := criteriaConditions(c)
	if err != nil {
		return filter.Expression{}, err
	}
	must = append(must, filter.Between(fieldDec, w.DecMin, w.DecMax))

	var should []filter.Condition
	switch {
	case w.FullRA():
	case len(w.RARanges) == 1:
		must = append(must, filter.Between(fieldRA, w.RARanges[0].Min, w.RARanges[0].Max))
	default:
		for _, rr := range w.RARanges {
			should = append(should, filter.Between(fieldRA, rr.Min, rr.Max))
		}
	}
	return filter.NewExpression(must, should, nil)
}

func criteriaExpression(c object.Criteria) (filter.Expression, error) {
	must, err := criteriaConditions(c)
	if err != nil {
		return filter.Expression{}, err
	}
	return filter.NewExpression(must, nil, nil)
}

func criteriaConditions(c object.Criteria) ([]filter.Condition, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var conds []filter.Condition
	if len(c.Types) > 0 {
		values := make([]string, len(c.Types))
		for i, t := range c.Types {
			values[i] = string(t)
		}
		cond, err := filter.NewMatch(fieldType, values...)
		if err != nil {
			return nil, domain.NewInvalidArgument("objectTypes", err.Error())
		}
		conds = append(conds, cond)
	}
	if c.CatalogName != "" {
		cond, err := filter.NewMatch(fieldCatalog, c.CatalogName)
		if err != nil {
			return nil, domain.NewInvalidArgument("catalogName", err.Error())
		}
		conds = append(conds, cond)
	}
	if c.MinMagnitude != nil || c.MaxMagnitude != nil {
		rng, err := filter.NewRangeFilter(nil, c.MinMagnitude, nil, c.MaxMagnitude)
		if err != nil {
			return nil, domain.NewInvalidArgument("magnitude", err.Error())
		}
		cond, _ := filter.NewRange(fieldMagnitude, rng)
		conds = append(conds, cond)
	}
	if c.MinSignificance != nil {
		conds = append(conds, filter.AtLeast(fieldSignificance, *c.MinSignificance))
	}
	if c.MinProperMotion != nil {
		conds = append(conds, filter.AtLeast(fieldPMTotal, *c.MinProperMotion))
	}
	if c.MinParallax != nil {
		conds = append(conds, filter.AtLeast(fieldParallax, *c.MinParallax))
	}
	if !c.ObservedAfter.IsZero() {
		conds = append(conds, filter.AtLeast(fieldLastObserved, timeScore(c.ObservedAfter)))
	}
	if !c.ObservedBefore.IsZero() {
		before := timeScore(c.ObservedBefore)
		rng, _ := filter.NewRangeFilter(nil, nil, &before, nil)
		cond, _ := filter.NewRange(fieldLastObserved, rng)
		conds = append(conds, cond)
	}
	if c.ObservationsAtMost > 0 {
		conds = append(conds, filter.AtMost(fieldObservationCount, float64(c.ObservationsAtMost)))
	}
	return conds, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
