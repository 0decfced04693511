// Package crossmatch persists accepted catalog cross-matches.
package crossmatch

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/db/postgres"
	xm "github.com/kailas-cloud/astrocat/internal/domain/crossmatch"
)

const columns = `id, object_id, catalog_name, external_id, separation_arcsec, match_probability,
	significance, catalog_data, method, workflow_version, verified, notes, created_at`

// catalogData is the JSONB document holding the external catalog's measurements.
type catalogData struct {
	RA             float64  `json:"ra"`
	Dec            float64  `json:"dec"`
	Magnitude      *float64 `json:"magnitude,omitempty"`
	MagnitudeBand  string   `json:"magnitudeBand,omitempty"`
	PMRA           *float64 `json:"pmRa,omitempty"`
	PMDec          *float64 `json:"pmDec,omitempty"`
	Parallax       *float64 `json:"parallax,omitempty"`
	RadialVelocity *float64 `json:"radialVelocity,omitempty"`
}

// Repo stores cross-match records in Postgres.
type Repo struct {
	db *postgres.DB
}

// New creates a cross-match repository.
func New(d *postgres.DB) *Repo {
	return &Repo{db: d}
}

// Upsert stores records, replacing the measurements of an existing
// (object, catalog, external id) association. Manual verification is preserved.
func (r *Repo) Upsert(ctx context.Context, records []xm.Record) ([]xm.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]xm.Record, 0, len(records))
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			data, err := json.Marshal(fromExternal(rec.External()))
			if err != nil {
				return fmt.Errorf("encode catalog data: %w", err)
			}
			batch.Queue(`
				INSERT INTO crossmatches (object_id, catalog_name, external_id, separation_arcsec,
					match_probability, significance, catalog_data, method, workflow_version, verified, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (object_id, catalog_name, external_id) DO UPDATE SET
					separation_arcsec = EXCLUDED.separation_arcsec,
					match_probability = EXCLUDED.match_probability,
					significance      = EXCLUDED.significance,
					catalog_data      = EXCLUDED.catalog_data,
					method            = EXCLUDED.method,
					workflow_version  = EXCLUDED.workflow_version
				RETURNING `+columns,
				rec.ObjectID(), rec.CatalogName(), rec.ExternalID(), rec.Separation(),
				rec.Confidence(), rec.Significance(), data, rec.Method(), rec.Version(),
				rec.Verified(), rec.Notes(), rec.CreatedAt())
		}
		br := tx.SendBatch(ctx, batch)
		for range records {
			rec, err := scanRecord(br.QueryRow())
			if err != nil {
				_ = br.Close()
				return err
			}
			out = append(out, rec)
		}
		return postgres.Wrap(db.OpExec, br.Close())
	})
	if err != nil {
		return nil, db.DomainError(err)
	}
	return out, nil
}

// ListByObject returns an object's matches, most probable first.
func (r *Repo) ListByObject(ctx context.Context, objectID string) ([]xm.Record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM crossmatches
		WHERE object_id = $1
		ORDER BY match_probability DESC, separation_arcsec, catalog_name, external_id`, objectID)
	if err != nil {
		return nil, db.DomainError(postgres.Wrap(db.OpQuery, err))
	}
	defer rows.Close()

	var out []xm.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, db.DomainError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.DomainError(postgres.Wrap(db.OpQuery, err))
	}
	return out, nil
}

// DeleteByObject removes every match of an object and returns how many were removed.
func (r *Repo) DeleteByObject(ctx context.Context, objectID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM crossmatches WHERE object_id = $1`, objectID)
	if err != nil {
		return 0, db.DomainError(postgres.Wrap(db.OpExec, err))
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (xm.Record, error) {
	var (
		id                                   int64
		objectID, catalogName, externalID    string
		separation, confidence, significance float64
		raw                                  []byte
		method, version, notes               string
		verified                             bool
		createdAt                            time.Time
	)
	if err := row.Scan(&id, &objectID, &catalogName, &externalID, &separation, &confidence,
		&significance, &raw, &method, &version, &verified, &notes, &createdAt); err != nil {
		return xm.Record{}, postgres.Wrap(db.OpQuery, err)
	}
	var data catalogData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return xm.Record{}, fmt.Errorf("decode catalog data of %s/%s: %w", catalogName, externalID, err)
		}
	}
	return xm.ReconstructRecord(id, objectID, catalogName, externalID,
		separation, confidence, significance, data.external(), method, version,
		createdAt.UTC(), verified, notes), nil
}

func fromExternal(e xm.External) catalogData {
	return catalogData{
		RA: e.RA, Dec: e.Dec, Magnitude: e.Magnitude, MagnitudeBand: e.MagnitudeBand,
		PMRA: e.PMRA, PMDec: e.PMDec, Parallax: e.Parallax, RadialVelocity: e.RadialVelocity,
	}
}

func (c catalogData) external() xm.External {
	return xm.External{
		RA: c.RA, Dec: c.Dec, Magnitude: c.Magnitude, MagnitudeBand: c.MagnitudeBand,
		PMRA: c.PMRA, PMDec: c.PMDec, Parallax: c.Parallax, RadialVelocity: c.RadialVelocity,
	}
}
