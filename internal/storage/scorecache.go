package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetScoreCache returns a cached provider response if present and not yet
// expired at `now`. Expired rows are treated as misses; the sweeper purges
// them later.
func (db *DB) GetScoreCache(ctx context.Context, key string, now time.Time) (*ScoreCacheEntry, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT cache_key, scores, created_at, expires_at
		 FROM score_cache WHERE cache_key = $1 AND expires_at > $2`,
		key, now)

	e := &ScoreCacheEntry{}
	var raw []byte
	err := row.Scan(&e.Key, &raw, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get score cache: %w", err)
	}
	if err := json.Unmarshal(raw, &e.Scores); err != nil {
		return nil, fmt.Errorf("decode cached scores: %w", err)
	}
	return e, nil
}

// PutScoreCache stores a provider response. A concurrent writer for the same
// key simply wins the upsert; entries are never mutated afterwards.
func (db *DB) PutScoreCache(ctx context.Context, e *ScoreCacheEntry) error {
	raw, err := json.Marshal(e.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = db.connection.ExecContext(ctx,
		`INSERT INTO score_cache (cache_key, scores, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   scores = EXCLUDED.scores,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		e.Key, raw, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put score cache: %w", err)
	}
	return nil
}

// PurgeExpiredScores deletes cache rows past their TTL.
func (db *DB) PurgeExpiredScores(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.connection.ExecContext(ctx,
		`DELETE FROM score_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired scores: %w", err)
	}
	return res.RowsAffected()
}
