package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, source, market_id, city, state, status,
	listings_found, listings_new, listings_updated, listings_duplicates, listings_errors,
	created_at, started_at, completed_at, error_message`

// CreateJob inserts a new scrape job row.
func (db *DB) CreateJob(ctx context.Context, j *ScrapeJob) error {
	_, err := db.connection.ExecContext(ctx,
		`INSERT INTO scrape_jobs (`+jobColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		j.ID, j.Source, j.MarketID, j.City, j.State, string(j.Status),
		j.ListingsFound, j.ListingsNew, j.ListingsUpdated, j.ListingsDuplicates, j.ListingsErrors,
		j.CreatedAt, j.StartedAt, j.CompletedAt, j.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// UpdateJob rewrites a job's status, metrics and timestamps.
func (db *DB) UpdateJob(ctx context.Context, j *ScrapeJob) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE scrape_jobs SET status = $2,
		   listings_found = $3, listings_new = $4, listings_updated = $5,
		   listings_duplicates = $6, listings_errors = $7,
		   started_at = $8, completed_at = $9, error_message = $10
		 WHERE id = $1`,
		j.ID, string(j.Status),
		j.ListingsFound, j.ListingsNew, j.ListingsUpdated,
		j.ListingsDuplicates, j.ListingsErrors,
		j.StartedAt, j.CompletedAt, j.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// FinishJob records a terminal state for a job that is still pending or
// running. It reports false when the job already reached a terminal state,
// for example when the sweeper timed it out while the run was finishing;
// the caller must then skip its completion callback.
func (db *DB) FinishJob(ctx context.Context, j *ScrapeJob) (bool, error) {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE scrape_jobs SET status = $2,
		   listings_found = $3, listings_new = $4, listings_updated = $5,
		   listings_duplicates = $6, listings_errors = $7,
		   completed_at = $8, error_message = $9
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		j.ID, string(j.Status),
		j.ListingsFound, j.ListingsNew, j.ListingsUpdated,
		j.ListingsDuplicates, j.ListingsErrors,
		j.CompletedAt, j.ErrorMessage,
	)
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	return n > 0, nil
}

// GetJob returns one scrape job by id.
func (db *DB) GetJob(ctx context.Context, id string) (*ScrapeJob, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListJobs returns the most recent jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]*ScrapeJob, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*ScrapeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// InFlightMarkets returns market ids that already have a pending or running
// job. Dispatch must skip these to stay idempotent.
func (db *DB) InFlightMarkets(ctx context.Context) (map[string]bool, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT DISTINCT market_id FROM scrape_jobs
		 WHERE status IN ('pending', 'running')`)
	if err != nil {
		return nil, fmt.Errorf("in-flight markets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// TimeOutStuckJobs marks jobs still running past the cutoff as timed out,
// releasing their markets for the next dispatch. Returns ids of the markets
// released.
func (db *DB) TimeOutStuckJobs(ctx context.Context, startedBefore time.Time) ([]string, error) {
	rows, err := db.connection.QueryContext(ctx,
		`UPDATE scrape_jobs SET status = 'timed_out', completed_at = NOW(),
		   error_message = 'exceeded maximum job duration'
		 WHERE status = 'running' AND started_at < $1
		 RETURNING market_id`,
		startedBefore)
	if err != nil {
		return nil, fmt.Errorf("time out stuck jobs: %w", err)
	}
	defer rows.Close()

	var markets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		markets = append(markets, id)
	}
	return markets, rows.Err()
}

func scanJob(row rowScanner) (*ScrapeJob, error) {
	j := &ScrapeJob{}
	var (
		status             string
		started, completed sql.NullTime
	)
	err := row.Scan(
		&j.ID, &j.Source, &j.MarketID, &j.City, &j.State, &status,
		&j.ListingsFound, &j.ListingsNew, &j.ListingsUpdated, &j.ListingsDuplicates, &j.ListingsErrors,
		&j.CreatedAt, &started, &completed, &j.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Status = JobStatus(status)
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return j, nil
}
