// Package workflow persists the workflow registry: versions, dependencies and
// the bounded activation history.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/db/postgres"
	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
)

const versionColumns = `name, version, processing_type, is_active, is_default, traffic_split,
	algorithm_config, parameter_overrides, performance_metrics, quality_metrics,
	usage_count, created_at, activated_at, deactivated_at, activated_by, reason`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the registry backed by Postgres. Mutations of one workflow name are
// serialised with a transaction-scoped advisory lock.
type Postgres struct {
	db         *postgres.DB
	historyCap int
}

// NewPostgres creates a Postgres-backed registry store.
func NewPostgres(d *postgres.DB, historyCap int) *Postgres {
	if historyCap <= 0 {
		historyCap = wf.HistoryCap
	}
	return &Postgres{db: d, historyCap: historyCap}
}

// Apply locks the workflow name, loads its versions, and writes the change returned by fn
// in the same transaction.
func (p *Postgres) Apply(ctx context.Context, name string, fn wf.Mutation) ([]wf.HistoryEntry, error) {
	var recorded []wf.HistoryEntry
	err := p.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('workflow:' || $1))`, name); err != nil {
			return postgres.Wrap(db.OpExec, err)
		}

		current, err := listVersions(ctx, tx, `WHERE name = $1`, name)
		if err != nil {
			return err
		}
		change, err := fn(current)
		if err != nil {
			return err
		}
		if err := wf.CheckInvariants(merge(current, change.Versions)); err != nil {
			return err
		}
		if err := writeVersions(ctx, tx, change.Versions); err != nil {
			return err
		}
		recorded, err = p.appendHistory(ctx, tx, change.History)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return recorded, nil
}

// Get loads one version.
func (p *Postgres) Get(ctx context.Context, k wf.Key) (wf.Version, error) {
	vs, err := listVersions(ctx, p.db,
		`WHERE name = $1 AND version = $2 AND processing_type = $3`, k.Name, k.Version, string(k.Type))
	if err != nil {
		return wf.Version{}, translate(err)
	}
	if len(vs) == 0 {
		return wf.Version{}, fmt.Errorf("workflow %s: %w", k, domain.ErrNotFound)
	}
	return vs[0], nil
}

// ListByName returns every version of a workflow, newest first.
func (p *Postgres) ListByName(ctx context.Context, name string) ([]wf.Version, error) {
	vs, err := listVersions(ctx, p.db, `WHERE name = $1`, name)
	if err != nil {
		return nil, translate(err)
	}
	wf.SortNewestFirst(vs)
	return vs, nil
}

// ListActive returns active versions, optionally restricted to one processing type.
func (p *Postgres) ListActive(ctx context.Context, typ processing.Type) ([]wf.Version, error) {
	var (
		vs  []wf.Version
		err error
	)
	if typ == "" {
		vs, err = listVersions(ctx, p.db, `WHERE is_active`)
	} else {
		vs, err = listVersions(ctx, p.db, `WHERE is_active AND processing_type = $1`, string(typ))
	}
	if err != nil {
		return nil, translate(err)
	}
	wf.SortActive(vs)
	return vs, nil
}

// IncrementUsage bumps the usage counter of a version.
func (p *Postgres) IncrementUsage(ctx context.Context, k wf.Key) (int64, error) {
	var n int64
	err := p.db.QueryRow(ctx, `
		UPDATE workflow_versions SET usage_count = usage_count + 1
		WHERE name = $1 AND version = $2 AND processing_type = $3
		RETURNING usage_count`,
		k.Name, k.Version, string(k.Type),
	).Scan(&n)
	if err != nil {
		return 0, translate(fmt.Errorf("increment usage %s: %w", k, postgres.Wrap(db.OpExec, err)))
	}
	return n, nil
}

// History returns up to limit entries for (name, type), newest first.
func (p *Postgres) History(ctx context.Context, name string, typ processing.Type, limit int) ([]wf.HistoryEntry, error) {
	if limit <= 0 || limit > p.historyCap {
		limit = p.historyCap
	}
	rows, err := p.db.Query(ctx, `
		SELECT seq, name, version, processing_type, action, performed_at, performed_by, reason
		FROM workflow_history
		WHERE name = $1 AND processing_type = $2
		ORDER BY seq DESC
		LIMIT $3`,
		name, string(typ), limit,
	)
	if err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	defer rows.Close()

	var out []wf.HistoryEntry
	for rows.Next() {
		var (
			e      wf.HistoryEntry
			typStr string
			action string
		)
		if err := rows.Scan(&e.Seq, &e.Name, &e.Version, &typStr, &action,
			&e.PerformedAt, &e.PerformedBy, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Type = processing.Type(typStr)
		e.Action = wf.Action(action)
		e.PerformedAt = e.PerformedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	return out, nil
}

func (p *Postgres) appendHistory(ctx context.Context, tx pgx.Tx, entries []wf.HistoryEntry) ([]wf.HistoryEntry, error) {
	out := make([]wf.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_history
			WHERE name = $1 AND processing_type = $2`,
			e.Name, string(e.Type),
		).Scan(&e.Seq)
		if err != nil {
			return nil, postgres.Wrap(db.OpQuery, err)
		}
		e.PerformedAt = e.PerformedAt.UTC()

		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_history
				(name, processing_type, seq, version, action, performed_at, performed_by, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.Name, string(e.Type), e.Seq, e.Version, string(e.Action), e.PerformedAt, e.PerformedBy, e.Reason,
		)
		if err != nil {
			return nil, postgres.Wrap(db.OpExec, err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM workflow_history
			WHERE name = $1 AND processing_type = $2 AND seq <= $3`,
			e.Name, string(e.Type), e.Seq-int64(p.historyCap),
		)
		if err != nil {
			return nil, postgres.Wrap(db.OpExec, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// writeVersions upserts versions in two passes: state flags are cleared first and
// set afterwards, so the partial unique indexes never see two holders mid-transaction.
// usage_count is written on insert only; IncrementUsage owns it afterwards.
func writeVersions(ctx context.Context, tx pgx.Tx, versions []wf.Version) error {
	for _, v := range versions {
		spec, st := v.Spec(), v.State()
		algo, params, perf, quality, err := encodeMaps(spec)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_versions (`+versionColumns+`)
			VALUES ($1, $2, $3, FALSE, FALSE, 0, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (name, version, processing_type) DO UPDATE SET
				is_active = FALSE,
				is_default = FALSE,
				traffic_split = 0,
				algorithm_config = EXCLUDED.algorithm_config,
				parameter_overrides = EXCLUDED.parameter_overrides,
				performance_metrics = EXCLUDED.performance_metrics,
				quality_metrics = EXCLUDED.quality_metrics,
				activated_at = EXCLUDED.activated_at,
				deactivated_at = EXCLUDED.deactivated_at,
				activated_by = EXCLUDED.activated_by,
				reason = EXCLUDED.reason`,
			spec.Name, spec.Version, string(spec.Type),
			algo, params, perf, quality,
			st.UsageCount, st.CreatedAt.UTC(), nullTime(st.ActivatedAt), nullTime(st.DeactivatedAt),
			st.ActivatedBy, st.Reason,
		)
		if err != nil {
			return postgres.Wrap(db.OpExec, fmt.Errorf("upsert %s: %w", spec.Key, err))
		}

		for _, dep := range spec.Dependencies {
			_, err = tx.Exec(ctx, `
				INSERT INTO workflow_dependencies
					(name, version, processing_type, depends_on_name, depends_on_version, optional)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT DO NOTHING`,
				spec.Name, spec.Version, string(spec.Type), dep.Name, dep.Version, dep.Optional,
			)
			if err != nil {
				return postgres.Wrap(db.OpExec, fmt.Errorf("insert dependency of %s: %w", spec.Key, err))
			}
		}
	}

	for _, v := range versions {
		st := v.State()
		if !st.Active && !st.Default {
			continue
		}
		k := v.Key()
		_, err := tx.Exec(ctx, `
			UPDATE workflow_versions SET is_active = $4, is_default = $5, traffic_split = $6
			WHERE name = $1 AND version = $2 AND processing_type = $3`,
			k.Name, k.Version, string(k.Type), st.Active, st.Default, st.TrafficSplit,
		)
		if err != nil {
			return postgres.Wrap(db.OpExec, fmt.Errorf("set state of %s: %w", k, err))
		}
	}
	return nil
}

func listVersions(ctx context.Context, q querier, where string, args ...any) ([]wf.Version, error) {
	rows, err := q.Query(ctx, `SELECT `+versionColumns+` FROM workflow_versions `+where+
		` ORDER BY name, processing_type, version`, args...)
	if err != nil {
		return nil, postgres.Wrap(db.OpQuery, err)
	}
	defer rows.Close()

	var (
		out  []wf.Version
		keys []wf.Key
		raws []rawVersion
	)
	for rows.Next() {
		var r rawVersion
		if err := rows.Scan(&r.name, &r.version, &r.typ, &r.st.Active, &r.st.Default, &r.st.TrafficSplit,
			&r.algo, &r.params, &r.perf, &r.quality,
			&r.st.UsageCount, &r.st.CreatedAt, &r.activatedAt, &r.deactivatedAt,
			&r.st.ActivatedBy, &r.st.Reason); err != nil {
			return nil, fmt.Errorf("scan workflow version: %w", err)
		}
		raws = append(raws, r)
		keys = append(keys, r.key())
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpQuery, err)
	}
	rows.Close()

	deps, err := loadDependencies(ctx, q, keys)
	if err != nil {
		return nil, err
	}
	for _, r := range raws {
		v, err := r.toDomain(deps[r.key()])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func loadDependencies(ctx context.Context, q querier, keys []wf.Key) (map[wf.Key][]wf.Dependency, error) {
	out := make(map[wf.Key][]wf.Dependency)
	if len(keys) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(keys))
	seen := make(map[string]bool)
	for _, k := range keys {
		if !seen[k.Name] {
			seen[k.Name] = true
			names = append(names, k.Name)
		}
	}

	rows, err := q.Query(ctx, `
		SELECT name, version, processing_type, depends_on_name, depends_on_version, optional
		FROM workflow_dependencies
		WHERE name = ANY($1)
		ORDER BY depends_on_name, depends_on_version`, names)
	if err != nil {
		return nil, postgres.Wrap(db.OpQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k   wf.Key
			typ string
			d   wf.Dependency
		)
		if err := rows.Scan(&k.Name, &k.Version, &typ, &d.Name, &d.Version, &d.Optional); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		k.Type = processing.Type(typ)
		out[k] = append(out[k], d)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpQuery, err)
	}
	return out, nil
}

type rawVersion struct {
	name, version, typ          string
	st                          wf.State
	algo, params, perf, quality []byte
	activatedAt, deactivatedAt  *time.Time
}

func (r rawVersion) key() wf.Key {
	return wf.Key{Name: r.name, Version: r.version, Type: processing.Type(r.typ)}
}

func (r rawVersion) toDomain(deps []wf.Dependency) (wf.Version, error) {
	spec := wf.Spec{Key: r.key(), Dependencies: deps}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{r.algo, &spec.AlgorithmConfig},
		{r.params, &spec.ParameterOverrides},
		{r.perf, &spec.PerformanceMetrics},
		{r.quality, &spec.QualityMetrics},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return wf.Version{}, fmt.Errorf("decode %s: %w", spec.Key, err)
		}
	}

	st := r.st
	st.CreatedAt = st.CreatedAt.UTC()
	if r.activatedAt != nil {
		st.ActivatedAt = r.activatedAt.UTC()
	}
	if r.deactivatedAt != nil {
		st.DeactivatedAt = r.deactivatedAt.UTC()
	}
	return wf.Reconstruct(spec, st), nil
}

func encodeMaps(s wf.Spec) (algo, params, perf, quality []byte, err error) {
	enc := func(v any) []byte {
		if err != nil {
			return nil
		}
		var b []byte
		b, err = json.Marshal(v)
		return b
	}
	algo = enc(orEmpty(s.AlgorithmConfig))
	params = enc(orEmpty(s.ParameterOverrides))
	perf = enc(orEmptyFloat(s.PerformanceMetrics))
	quality = enc(orEmptyFloat(s.QualityMetrics))
	if err != nil {
		err = fmt.Errorf("encode %s: %w", s.Key, err)
	}
	return algo, params, perf, quality, err
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyFloat(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// merge overlays changed versions on the current set.
func merge(current, changed []wf.Version) []wf.Version {
	out := make([]wf.Version, 0, len(current)+len(changed))
	replaced := make(map[wf.Key]bool, len(changed))
	for _, v := range changed {
		replaced[v.Key()] = true
	}
	for _, v := range current {
		if !replaced[v.Key()] {
			out = append(out, v)
		}
	}
	return append(out, changed...)
}

// translate maps storage errors to domain sentinels. A unique-index violation on the
// registry tables means an invariant was about to break.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ia *domain.InvalidArgumentError
	switch {
	case errors.As(err, &ia),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrConstraintViolation):
		return err
	case errors.Is(err, db.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
	}
	return db.DomainError(err)
}
