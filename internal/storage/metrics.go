package storage

import (
	"context"
	"fmt"
	"time"
)

// Metrics is the aggregate operational snapshot served by the admin API.
type Metrics struct {
	TotalListings    int            `json:"total_listings"`
	ActiveListings   int            `json:"active_listings"`
	ListingsBySource map[string]int `json:"listings_by_source"`
	AvgQualityScore  float64        `json:"avg_quality_score"`
	JobsLast24h      int            `json:"jobs_last_24h"`
	SucceededLast24h int            `json:"succeeded_last_24h"`
	DedupRate        float64        `json:"dedup_rate"` // duplicates / found, last 24h
}

// Snapshot computes the aggregate metrics in one pass.
func (db *DB) Snapshot(ctx context.Context, now time.Time) (*Metrics, error) {
	m := &Metrics{ListingsBySource: make(map[string]int)}

	err := db.connection.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COALESCE(AVG(data_quality_score), 0)
		 FROM listings`).
		Scan(&m.TotalListings, &m.ActiveListings, &m.AvgQualityScore)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}

	rows, err := db.connection.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM listings WHERE is_active GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("source metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		m.ListingsBySource[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cutoff := now.Add(-24 * time.Hour)
	var found, dups int
	err = db.connection.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'succeeded'),
		        COALESCE(SUM(listings_found), 0),
		        COALESCE(SUM(listings_duplicates), 0)
		 FROM scrape_jobs WHERE created_at > $1`, cutoff).
		Scan(&m.JobsLast24h, &m.SucceededLast24h, &found, &dups)
	if err != nil {
		return nil, fmt.Errorf("job metrics: %w", err)
	}
	if found > 0 {
		m.DedupRate = float64(dups) / float64(found)
	}

	return m, nil
}
