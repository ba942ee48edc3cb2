package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const marketColumns = `id, display_name, city, state, source, tier, is_enabled,
	max_listings_per_scrape, scrape_interval_hours,
	breaker_state, consecutive_failures, cooldown_hours, cooldown_until,
	last_attempt_at, last_success_at, last_status`

// UpsertMarket creates or replaces a market configuration row.
func (db *DB) UpsertMarket(ctx context.Context, m *MarketConfig) error {
	query := `INSERT INTO market_configs (` + marketColumns + `)
	          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	          ON CONFLICT (id) DO UPDATE SET
	            display_name = EXCLUDED.display_name,
	            tier = EXCLUDED.tier,
	            is_enabled = EXCLUDED.is_enabled,
	            max_listings_per_scrape = EXCLUDED.max_listings_per_scrape,
	            scrape_interval_hours = EXCLUDED.scrape_interval_hours,
	            breaker_state = EXCLUDED.breaker_state,
	            consecutive_failures = EXCLUDED.consecutive_failures,
	            cooldown_hours = EXCLUDED.cooldown_hours,
	            cooldown_until = EXCLUDED.cooldown_until,
	            last_attempt_at = EXCLUDED.last_attempt_at,
	            last_success_at = EXCLUDED.last_success_at,
	            last_status = EXCLUDED.last_status`

	_, err := db.connection.ExecContext(ctx, query,
		m.ID, m.DisplayName, m.City, m.State, m.Source, string(m.Tier), m.IsEnabled,
		m.MaxListingsPerScrape, m.ScrapeIntervalHours,
		string(m.BreakerState), m.ConsecutiveFailures, m.CooldownHours, m.CooldownUntil,
		m.LastAttemptAt, m.LastSuccessAt, m.LastStatus,
	)
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}
	return nil
}

// GetMarket returns one market configuration.
func (db *DB) GetMarket(ctx context.Context, id string) (*MarketConfig, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT `+marketColumns+` FROM market_configs WHERE id = $1`, id)
	return scanMarket(row)
}

// ListMarkets returns every market configuration.
func (db *DB) ListMarkets(ctx context.Context) ([]*MarketConfig, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+marketColumns+` FROM market_configs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []*MarketConfig
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListEnabledMarkets returns markets eligible for scheduling.
func (db *DB) ListEnabledMarkets(ctx context.Context) ([]*MarketConfig, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+marketColumns+` FROM market_configs WHERE is_enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled markets: %w", err)
	}
	defer rows.Close()

	var out []*MarketConfig
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveBreakerState persists the breaker fields after a transition so a
// process restart does not forget backoff history.
func (db *DB) SaveBreakerState(ctx context.Context, m *MarketConfig) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE market_configs SET
		   breaker_state = $2, consecutive_failures = $3,
		   cooldown_hours = $4, cooldown_until = $5,
		   last_attempt_at = $6, last_success_at = $7, last_status = $8
		 WHERE id = $1`,
		m.ID, string(m.BreakerState), m.ConsecutiveFailures,
		m.CooldownHours, m.CooldownUntil,
		m.LastAttemptAt, m.LastSuccessAt, m.LastStatus,
	)
	if err != nil {
		return fmt.Errorf("save breaker state: %w", err)
	}
	return nil
}

// ReverifyCounts returns, per market, how many active listings have decayed
// below the re-verification threshold. The scheduler uses this as a soft
// priority hint.
func (db *DB) ReverifyCounts(ctx context.Context, threshold int) (map[string]int, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT market_id, COUNT(*) FROM listings
		 WHERE is_active AND market_id <> '' AND freshness_confidence < $1
		 GROUP BY market_id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("reverify counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func scanMarket(row rowScanner) (*MarketConfig, error) {
	m := &MarketConfig{}
	var (
		tier, state           string
		cooldownUntil         sql.NullTime
		lastAttempt, lastSucc sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.DisplayName, &m.City, &m.State, &m.Source, &tier, &m.IsEnabled,
		&m.MaxListingsPerScrape, &m.ScrapeIntervalHours,
		&state, &m.ConsecutiveFailures, &m.CooldownHours, &cooldownUntil,
		&lastAttempt, &lastSucc, &m.LastStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan market: %w", err)
	}
	m.Tier = Tier(tier)
	m.BreakerState = BreakerState(state)
	if cooldownUntil.Valid {
		t := cooldownUntil.Time
		m.CooldownUntil = &t
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		m.LastAttemptAt = &t
	}
	if lastSucc.Valid {
		t := lastSucc.Time
		m.LastSuccessAt = &t
	}
	return m, nil
}
