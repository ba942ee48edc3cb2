package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sourceColumns = `id, name, is_enabled, is_healthy,
	rate_limit_per_hour, rate_limit_per_day, current_hour_calls, current_day_calls,
	rate_limit_reset_hour, rate_limit_reset_day,
	total_listings_scraped, successful_scrapes, failed_scrapes`

// GetSource returns one data-source configuration.
func (db *DB) GetSource(ctx context.Context, id string) (*SourceConfig, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM source_configs WHERE id = $1`, id)
	return scanSource(row)
}

// CanMakeRequest reports whether the source's rate limits allow another call.
func (s *SourceConfig) CanMakeRequest() bool {
	if !s.IsEnabled {
		return false
	}
	if s.CurrentHourCalls >= s.RateLimitPerHour {
		return false
	}
	if s.CurrentDayCalls >= s.RateLimitPerDay {
		return false
	}
	return true
}

// RecordSourceCall increments the source's rate-limit counters and scrape
// metrics after a dispatch.
func (db *DB) RecordSourceCall(ctx context.Context, id string, listings int, ok bool) error {
	succ, fail := 0, 1
	if ok {
		succ, fail = 1, 0
	}
	_, err := db.connection.ExecContext(ctx,
		`UPDATE source_configs SET
		   current_hour_calls = current_hour_calls + 1,
		   current_day_calls = current_day_calls + 1,
		   total_listings_scraped = total_listings_scraped + $2,
		   successful_scrapes = successful_scrapes + $3,
		   failed_scrapes = failed_scrapes + $4,
		   is_healthy = $5
		 WHERE id = $1`,
		id, listings, succ, fail, ok)
	if err != nil {
		return fmt.Errorf("record source call: %w", err)
	}
	return nil
}

// ResetRateLimits zeroes counters whose reset timestamp has passed and
// schedules the next reset. Returns the number of sources touched.
func (db *DB) ResetRateLimits(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE source_configs SET
		   current_hour_calls = CASE WHEN rate_limit_reset_hour IS NULL OR rate_limit_reset_hour <= $1
		                             THEN 0 ELSE current_hour_calls END,
		   rate_limit_reset_hour = CASE WHEN rate_limit_reset_hour IS NULL OR rate_limit_reset_hour <= $1
		                                THEN $1 + INTERVAL '1 hour' ELSE rate_limit_reset_hour END,
		   current_day_calls = CASE WHEN rate_limit_reset_day IS NULL OR rate_limit_reset_day <= $1
		                            THEN 0 ELSE current_day_calls END,
		   rate_limit_reset_day = CASE WHEN rate_limit_reset_day IS NULL OR rate_limit_reset_day <= $1
		                               THEN $1 + INTERVAL '1 day' ELSE rate_limit_reset_day END
		 WHERE (rate_limit_reset_hour IS NULL OR rate_limit_reset_hour <= $1)
		    OR (rate_limit_reset_day IS NULL OR rate_limit_reset_day <= $1)`,
		now)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return res.RowsAffected()
}

func scanSource(row rowScanner) (*SourceConfig, error) {
	s := &SourceConfig{}
	var resetHour, resetDay sql.NullTime
	err := row.Scan(
		&s.ID, &s.Name, &s.IsEnabled, &s.IsHealthy,
		&s.RateLimitPerHour, &s.RateLimitPerDay, &s.CurrentHourCalls, &s.CurrentDayCalls,
		&resetHour, &resetDay,
		&s.TotalListingsScraped, &s.SuccessfulScrapes, &s.FailedScrapes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	if resetHour.Valid {
		t := resetHour.Time
		s.RateLimitResetHour = &t
	}
	if resetDay.Valid {
		t := resetDay.Time
		s.RateLimitResetDay = &t
	}
	return s, nil
}
