// Package catalog stores astronomical objects as Redis hashes under an FT index
// that answers positional window, attribute and nearest-direction queries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
)

// DefaultPageSize is the number of hits fetched per FT.SEARCH round trip when scanning.
const DefaultPageSize = 500

// store is the consumer interface for the catalog (ISP).
//
//nolint:interfacebloat // catalog repo needs hash, counter, index and search operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) []error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, q *db.ListQuery) (int, error)
	SearchScan(ctx context.Context, q *db.ScanQuery, fn func([]db.SearchEntry) error) error
	Aggregate(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error)
}

// Repo implements the catalog repository over a Redis-compatible store.
type Repo struct {
	store    store
	prefix   string
	pageSize int
}

// New creates a catalog repository. Keys live under prefix (e.g. "astrocat:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix, pageSize: DefaultPageSize}
}

// WithPageSize sets the scan page size.
func (r *Repo) WithPageSize(n int) *Repo {
	if n > 0 {
		r.pageSize = n
	}
	return r
}

// Key patterns: {prefix}obj:{objectId}, {prefix}objects:idx, {prefix}objects:seq

func (r *Repo) objectKey(objectID string) string { return r.objectPrefix() + objectID }

func (r *Repo) objectPrefix() string { return r.prefix + "obj:" }

func (r *Repo) indexName() string { return r.prefix + "objects:idx" }

func (r *Repo) sequenceKey() string { return r.prefix + "objects:seq" }

func (r *Repo) objectIDFromKey(key string) string {
	return strings.TrimPrefix(key, r.objectPrefix())
}

// EnsureIndex creates the object index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	name := r.indexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return db.DomainError(fmt.Errorf("check index %s: %w", name, err))
	}
	if exists {
		return nil
	}

	def, err := buildIndex(name, r.objectPrefix())
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return db.DomainError(fmt.Errorf("create index %s: %w", name, err))
	}
	return nil
}

// Create stores a new object; ErrAlreadyExists if the objectId is taken.
func (r *Repo) Create(ctx context.Context, o object.Object) (object.Object, error) {
	exists, err := r.store.Exists(ctx, r.objectKey(o.ObjectID()))
	if err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("check object %s: %w", o.ObjectID(), err))
	}
	if exists {
		return object.Object{}, fmt.Errorf("object %s: %w", o.ObjectID(), domain.ErrAlreadyExists)
	}
	return r.Save(ctx, o)
}

// Save writes the object, assigning an internal id on first write.
func (r *Repo) Save(ctx context.Context, o object.Object) (object.Object, error) {
	o, err := r.assignID(ctx, o)
	if err != nil {
		return object.Object{}, err
	}
	fields, err := objectToHash(o)
	if err != nil {
		return object.Object{}, err
	}
	if err := r.store.HSet(ctx, r.objectKey(o.ObjectID()), fields); err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("hset object %s: %w", o.ObjectID(), err))
	}
	return o, nil
}

// SaveMany writes objects in one pipeline. The returned error slice is nil when every
// write succeeded, otherwise it has one entry per input (nil for successes).
func (r *Repo) SaveMany(ctx context.Context, objs []object.Object) ([]object.Object, []error) {
	out := make([]object.Object, len(objs))
	errs := make([]error, len(objs))
	items := make([]db.HashSetItem, 0, len(objs))
	positions := make([]int, 0, len(objs))
	failed := false

	for i, o := range objs {
		o, err := r.assignID(ctx, o)
		if err == nil {
			var fields map[string]string
			fields, err = objectToHash(o)
			if err == nil {
				out[i] = o
				items = append(items, db.HashSetItem{Key: r.objectKey(o.ObjectID()), Fields: fields})
				positions = append(positions, i)
				continue
			}
		}
		errs[i] = err
		failed = true
	}

	if setErrs := r.store.HSetMulti(ctx, items); setErrs != nil {
		for j, err := range setErrs {
			if err != nil {
				i := positions[j]
				errs[i] = db.DomainError(fmt.Errorf("hset object %s: %w", objs[i].ObjectID(), err))
				failed = true
			}
		}
	}

	if !failed {
		return out, nil
	}
	return out, errs
}

func (r *Repo) assignID(ctx context.Context, o object.Object) (object.Object, error) {
	if o.ID() != 0 {
		return o, nil
	}
	id, err := r.store.Incr(ctx, r.sequenceKey())
	if err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("allocate id: %w", err))
	}
	return object.Reconstruct(id, o.Attributes(), o.CreatedAt(), o.UpdatedAt()), nil
}

// Get loads one object by its objectId.
func (r *Repo) Get(ctx context.Context, objectID string) (object.Object, error) {
	m, err := r.store.HGetAll(ctx, r.objectKey(objectID))
	if err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("hgetall object %s: %w", objectID, err))
	}
	return objectFromHash(m)
}

// GetMany loads objects by objectId, skipping ids that do not exist.
func (r *Repo) GetMany(ctx context.Context, objectIDs []string) ([]object.Object, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(objectIDs))
	for i, id := range objectIDs {
		keys[i] = r.objectKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, db.DomainError(fmt.Errorf("hgetall objects: %w", err))
	}
	out := make([]object.Object, 0, len(hashes))
	for i, m := range hashes {
		if m == nil {
			continue
		}
		o, err := objectFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse object %s: %w", objectIDs[i], err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Delete removes an object; ErrNotFound when it does not exist.
func (r *Repo) Delete(ctx context.Context, objectID string) error {
	n, err := r.store.Del(ctx, r.objectKey(objectID))
	if err != nil {
		return db.DomainError(fmt.Errorf("del object %s: %w", objectID, err))
	}
	if n == 0 {
		return fmt.Errorf("object %s: %w", objectID, domain.ErrNotFound)
	}
	return nil
}

// RecordObservation bumps the observation count atomically and widens the observed interval.
// Concurrent calls may race on the interval bounds; the count is exact.
func (r *Repo) RecordObservation(ctx context.Context, objectID string, at, now time.Time) (object.Object, error) {
	key := r.objectKey(objectID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("hgetall object %s: %w", objectID, err))
	}
	current, err := objectFromHash(m)
	if err != nil {
		return object.Object{}, err
	}

	count, err := r.store.HIncrBy(ctx, key, fieldObservationCount, 1)
	if err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("hincrby object %s: %w", objectID, err))
	}

	updated := current.RecordObservation(at, now)
	fields := map[string]string{
		fieldFirstObserved: formatTime(updated.FirstObserved()),
		fieldLastObserved:  formatTime(updated.LastObserved()),
		fieldUpdatedAt:     formatTime(updated.UpdatedAt()),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return object.Object{}, db.DomainError(fmt.Errorf("hset object %s: %w", objectID, err))
	}

	d := updated.Attributes()
	d.ObservationCount = int(count)
	return object.Reconstruct(updated.ID(), d, updated.CreatedAt(), updated.UpdatedAt()), nil
}

func parseCount(s string) int {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(n)
}
