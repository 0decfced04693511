// Package observation persists telescope observations and their detections.
package observation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/db/postgres"
	"github.com/kailas-cloud/astrocat/internal/domain"
	obs "github.com/kailas-cloud/astrocat/internal/domain/observation"
)

const observationColumns = `id, observation_id, instrument, telescope, filter_name, ra, dec, observed_at,
	exposure_sec, airmass, seeing_arcsec, sky_brightness, moon_phase, moon_sep_deg,
	field_width_deg, field_height_deg, pixel_scale, rotation_deg, image_path, processing_id,
	status, created_at`

const detectionColumns = `d.id, o.observation_id, d.observed_at, d.filter_name, d.object_id,
	d.x, d.y, d.ra, d.dec, d.magnitude, d.magnitude_error, d.flux, d.flux_error,
	d.fwhm_arcsec, d.ellipticity, d.flags`

// Repo stores observations and detections in Postgres.
type Repo struct {
	db *postgres.DB
}

// New creates an observation repository.
func New(d *postgres.DB) *Repo {
	return &Repo{db: d}
}

// Create inserts a new observation; ErrAlreadyExists when the observation id is taken.
func (r *Repo) Create(ctx context.Context, o obs.Observation) (obs.Observation, error) {
	s := o.Spec()
	c := s.Conditions
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO observations (observation_id, instrument, telescope, filter_name, ra, dec, observed_at,
			exposure_sec, airmass, seeing_arcsec, sky_brightness, moon_phase, moon_sep_deg,
			field_width_deg, field_height_deg, pixel_scale, rotation_deg, image_path, processing_id,
			status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		s.ObservationID, s.Instrument, s.Telescope, s.Filter, s.RA, s.Dec, s.ObservedAt,
		s.ExposureSec, c.Airmass, c.SeeingArcsec, c.SkyBrightness, c.MoonPhase, c.MoonSepDeg,
		s.Field.WidthDeg, s.Field.HeightDeg, s.Field.PixelScale, s.Field.RotationDeg, s.ImagePath, s.ProcessingID,
		string(o.Status()), o.CreatedAt(),
	).Scan(&id)
	if err != nil {
		return obs.Observation{}, translate(fmt.Errorf("create observation %s: %w", s.ObservationID, postgres.Wrap(db.OpExec, err)))
	}
	return obs.Reconstruct(id, s, o.Status(), o.CreatedAt()), nil
}

// Get loads an observation by its external id.
func (r *Repo) Get(ctx context.Context, observationID string) (obs.Observation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+observationColumns+` FROM observations WHERE observation_id = $1`, observationID)
	o, err := scanObservation(row)
	if err != nil {
		return obs.Observation{}, translate(fmt.Errorf("get observation %s: %w", observationID, postgres.Wrap(db.OpQuery, err)))
	}
	return o, nil
}

// ListBetween returns observations taken in [from, to), oldest first.
func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]obs.Observation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+observationColumns+` FROM observations
		WHERE observed_at >= $1 AND observed_at < $2 ORDER BY observed_at, id`, from, to)
	if err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	defer rows.Close()

	var out []obs.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	return out, nil
}

// UpdateStatus stores a status transition.
func (r *Repo) UpdateStatus(ctx context.Context, o obs.Observation) error {
	tag, err := r.db.Exec(ctx, `UPDATE observations SET status = $2 WHERE observation_id = $1`,
		o.ObservationID(), string(o.Status()))
	if err != nil {
		return translate(postgres.Wrap(db.OpExec, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("observation %s: %w", o.ObservationID(), domain.ErrNotFound)
	}
	return nil
}

// Delete removes an observation together with its detections.
func (r *Repo) Delete(ctx context.Context, observationID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM observations WHERE observation_id = $1`, observationID)
	if err != nil {
		return translate(postgres.Wrap(db.OpExec, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("observation %s: %w", observationID, domain.ErrNotFound)
	}
	return nil
}

// AddDetections inserts detections of one observation in a single transaction.
func (r *Repo) AddDetections(ctx context.Context, observationID string, ds []obs.Detection) ([]obs.Detection, error) {
	if len(ds) == 0 {
		return nil, nil
	}
	out := make([]obs.Detection, 0, len(ds))
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var ownerID int64
		err := tx.QueryRow(ctx, `SELECT id FROM observations WHERE observation_id = $1`, observationID).Scan(&ownerID)
		if err != nil {
			return fmt.Errorf("observation %s: %w", observationID, postgres.Wrap(db.OpQuery, err))
		}

		batch := &pgx.Batch{}
		for _, d := range ds {
			s := d.Spec()
			batch.Queue(`
				INSERT INTO detections (observation_id, object_id, observed_at, filter_name, x, y, ra, dec,
					magnitude, magnitude_error, flux, flux_error, fwhm_arcsec, ellipticity, flags)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				RETURNING id`,
				ownerID, s.ObjectID, d.ObservedAt(), d.Filter(), s.X, s.Y, s.RA, s.Dec,
				s.Magnitude, s.MagnitudeError, s.Flux, s.FluxError, s.FWHMArcsec, s.Ellipticity, s.Flags)
		}
		br := tx.SendBatch(ctx, batch)
		for _, d := range ds {
			var id int64
			if err := br.QueryRow().Scan(&id); err != nil {
				_ = br.Close()
				return postgres.Wrap(db.OpExec, err)
			}
			out = append(out, obs.ReconstructDetection(id, d.ObservationID(), d.ObservedAt(), d.Filter(), d.Spec()))
		}
		return postgres.Wrap(db.OpExec, br.Close())
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// LightCurve returns every detection of an object, oldest first. An empty filter means all filters.
func (r *Repo) LightCurve(ctx context.Context, objectID, filter string) ([]obs.Detection, error) {
	q := `SELECT ` + detectionColumns + `
		FROM detections d JOIN observations o ON o.id = d.observation_id
		WHERE d.object_id = $1`
	args := []any{objectID}
	if filter != "" {
		q += ` AND d.filter_name = $2`
		args = append(args, filter)
	}
	q += ` ORDER BY d.observed_at, d.id`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	defer rows.Close()

	var out []obs.Detection
	for rows.Next() {
		var (
			id         int64
			owner      string
			observedAt time.Time
			filterName string
			s          obs.DetectionSpec
		)
		if err := rows.Scan(&id, &owner, &observedAt, &filterName, &s.ObjectID,
			&s.X, &s.Y, &s.RA, &s.Dec, &s.Magnitude, &s.MagnitudeError, &s.Flux, &s.FluxError,
			&s.FWHMArcsec, &s.Ellipticity, &s.Flags); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		out = append(out, obs.ReconstructDetection(id, owner, observedAt.UTC(), filterName, s))
	}
	if err := rows.Err(); err != nil {
		return nil, translate(postgres.Wrap(db.OpQuery, err))
	}
	return out, nil
}

// CountForObject returns how many detections reference an object.
func (r *Repo) CountForObject(ctx context.Context, objectID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM detections WHERE object_id = $1`, objectID).Scan(&n); err != nil {
		return 0, translate(postgres.Wrap(db.OpQuery, err))
	}
	return n, nil
}

func scanObservation(row pgx.Row) (obs.Observation, error) {
	var (
		id        int64
		s         obs.Spec
		status    string
		createdAt time.Time
	)
	c := &s.Conditions
	err := row.Scan(&id, &s.ObservationID, &s.Instrument, &s.Telescope, &s.Filter, &s.RA, &s.Dec, &s.ObservedAt,
		&s.ExposureSec, &c.Airmass, &c.SeeingArcsec, &c.SkyBrightness, &c.MoonPhase, &c.MoonSepDeg,
		&s.Field.WidthDeg, &s.Field.HeightDeg, &s.Field.PixelScale, &s.Field.RotationDeg, &s.ImagePath, &s.ProcessingID,
		&status, &createdAt)
	if err != nil {
		return obs.Observation{}, err
	}
	s.ObservedAt = s.ObservedAt.UTC()
	return obs.Reconstruct(id, s, obs.Status(status), createdAt.UTC()), nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var ia *domain.InvalidArgumentError
	switch {
	case errors.As(err, &ia), errors.Is(err, domain.ErrNotFound):
		return err
	case errors.Is(err, db.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	}
	return db.DomainError(err)
}
