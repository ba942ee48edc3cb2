package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const listingColumns = `id, external_id, source, source_url, address, address_normalized,
	city, state, zip_code, neighborhood, latitude, longitude,
	rent, bedrooms, bathrooms, sqft, property_type, available_date,
	description, amenities, images, images_cached,
	content_hash, data_quality_score, is_active,
	first_seen_at, last_seen_at, freshness_confidence, times_seen,
	zero_confidence_runs, market_id, merged_into`

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The reconciler uses it to detect a concurrent insert race on
// content_hash and fall back to the update path.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// InsertListing stores a new canonical listing.
func (db *DB) InsertListing(ctx context.Context, l *Listing) error {
	query := `INSERT INTO listings (` + listingColumns + `)
	          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
	                  $19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)`

	_, err := db.connection.ExecContext(ctx, query,
		l.ID, l.ExternalID, l.Source, l.SourceURL, l.Address, l.AddressNormalized,
		l.City, l.State, l.ZipCode, l.Neighborhood, l.Latitude, l.Longitude,
		l.Rent, l.Bedrooms, l.Bathrooms, l.Sqft, string(l.PropertyType), l.AvailableDate,
		l.Description, pq.Array(l.Amenities), pq.Array(l.Images), pq.Array(l.ImagesCached),
		l.ContentHash, l.DataQualityScore, l.IsActive,
		l.FirstSeenAt, l.LastSeenAt, l.FreshnessConfidence, l.TimesSeen,
		l.ZeroConfidenceRuns, l.MarketID, l.MergedInto,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// UpdateListing rewrites every mutable field of an existing listing.
// The internal id, source identifiers and first_seen_at never change.
func (db *DB) UpdateListing(ctx context.Context, l *Listing) error {
	query := `UPDATE listings SET
		address = $2, address_normalized = $3, city = $4, state = $5,
		zip_code = $6, neighborhood = $7, latitude = $8, longitude = $9,
		rent = $10, bedrooms = $11, bathrooms = $12, sqft = $13,
		property_type = $14, available_date = $15, description = $16,
		amenities = $17, images = $18, images_cached = $19,
		content_hash = $20, data_quality_score = $21, is_active = $22,
		last_seen_at = $23, freshness_confidence = $24, times_seen = $25,
		zero_confidence_runs = $26
	  WHERE id = $1`

	res, err := db.connection.ExecContext(ctx, query,
		l.ID, l.Address, l.AddressNormalized, l.City, l.State,
		l.ZipCode, l.Neighborhood, l.Latitude, l.Longitude,
		l.Rent, l.Bedrooms, l.Bathrooms, l.Sqft,
		string(l.PropertyType), l.AvailableDate, l.Description,
		pq.Array(l.Amenities), pq.Array(l.Images), pq.Array(l.ImagesCached),
		l.ContentHash, l.DataQualityScore, l.IsActive,
		l.LastSeenAt, l.FreshnessConfidence, l.TimesSeen,
		l.ZeroConfidenceRuns,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetListing returns a single listing by internal id.
func (db *DB) GetListing(ctx context.Context, id string) (*Listing, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

// FindByContentHash looks up a listing by its content hash among active rows
// and rows deactivated after `since`. If the hit was retired into a survivor
// (fuzzy merge), the survivor is returned so lookups stay idempotent.
func (db *DB) FindByContentHash(ctx context.Context, hash string, since time.Time) (*Listing, error) {
	row := db.connection.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE content_hash = $1 AND (is_active OR last_seen_at >= $2)`,
		hash, since)
	l, err := scanListing(row)
	if err != nil {
		return nil, err
	}
	if l.MergedInto != "" {
		return db.GetListing(ctx, l.MergedInto)
	}
	return l, nil
}

// FuzzyCandidates returns active listings sharing city and bedroom count,
// the pre-filter for fuzzy duplicate matching.
func (db *DB) FuzzyCandidates(ctx context.Context, city string, bedrooms int) ([]*Listing, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE is_active AND city ILIKE $1 AND bedrooms = $2
		 ORDER BY last_seen_at DESC LIMIT 500`,
		city, bedrooms)
	if err != nil {
		return nil, fmt.Errorf("fuzzy candidates: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// RetireListing deactivates a fuzzy-merge loser and records the survivor so
// future hash hits on the loser resolve to the surviving record.
func (db *DB) RetireListing(ctx context.Context, loserID, survivorID string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE, merged_into = $2 WHERE id = $1`,
		loserID, survivorID)
	if err != nil {
		return fmt.Errorf("retire listing: %w", err)
	}
	return nil
}

// SearchListings filters active, sufficiently fresh listings by criteria.
// Listings more than 10% over budget are excluded here, upstream of scoring.
func (db *DB) SearchListings(ctx context.Context, c *SearchCriteria) ([]*Listing, error) {
	where := []string{
		"is_active",
		"freshness_confidence >= 40",
		"merged_into = ''",
	}
	var args []interface{}
	i := 1

	add := func(cond string, vals ...interface{}) {
		where = append(where, cond)
		args = append(args, vals...)
		i += len(vals)
	}

	cityName := c.City
	if idx := strings.Index(cityName, ","); idx >= 0 {
		cityName = strings.TrimSpace(cityName[:idx])
	}
	add(fmt.Sprintf("(city ILIKE $%d OR address ILIKE $%d)", i, i+1),
		cityName, "%"+c.City+"%")

	// Hard ceiling at 10% over budget; scoring handles the decay below it.
	add(fmt.Sprintf("rent <= $%d", i), (c.Budget*110)/100)

	if c.Bedrooms != nil {
		add(fmt.Sprintf("bedrooms = $%d", i), *c.Bedrooms)
	}
	if c.Bathrooms > 0 {
		add(fmt.Sprintf("bathrooms >= $%d", i), c.Bathrooms)
	}
	if len(c.PropertyTypes) > 0 {
		add(fmt.Sprintf("property_type = ANY($%d)", i), pq.Array(c.PropertyTypes))
	}
	if c.MoveInDate != "" {
		add(fmt.Sprintf("(available_date = '' OR available_date <= $%d)", i), c.MoveInDate)
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY rent`

	rows, err := db.connection.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// ListListings returns active listings with optional filters, paginated,
// for the browse/admin endpoints.
func (db *DB) ListListings(ctx context.Context, city string, limit, offset int) ([]*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE is_active`
	var args []interface{}
	if city != "" {
		query += ` AND city ILIKE $1`
		args = append(args, "%"+city+"%")
	}
	query += fmt.Sprintf(` ORDER BY city, rent LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.connection.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// ActiveListings streams every active listing; the decay sweep walks these.
func (db *DB) ActiveListings(ctx context.Context) ([]*Listing, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("active listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// UpdateFreshness writes the decayed confidence and the zero-confidence
// sweep counter back for one listing.
func (db *DB) UpdateFreshness(ctx context.Context, id string, confidence, zeroRuns int) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE listings SET freshness_confidence = $2, zero_confidence_runs = $3 WHERE id = $1`,
		id, confidence, zeroRuns)
	if err != nil {
		return fmt.Errorf("update freshness: %w", err)
	}
	return nil
}

// DeactivateListing soft-deletes a listing. Rows are never physically removed.
func (db *DB) DeactivateListing(ctx context.Context, id string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate listing: %w", err)
	}
	return nil
}

// DeactivateExhausted soft-deletes listings whose confidence has sat at zero
// for at least minRuns consecutive sweeps. Returns the number deactivated.
func (db *DB) DeactivateExhausted(ctx context.Context, minRuns int) (int64, error) {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE
		 WHERE is_active AND freshness_confidence = 0 AND zero_confidence_runs >= $1`,
		minRuns)
	if err != nil {
		return 0, fmt.Errorf("deactivate exhausted: %w", err)
	}
	return res.RowsAffected()
}

// DeactivatePastAvailable soft-deletes listings whose available date has
// passed and that have not been re-seen since the cutoff.
func (db *DB) DeactivatePastAvailable(ctx context.Context, today string, lastSeenBefore time.Time) (int64, error) {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE
		 WHERE is_active AND available_date <> '' AND available_date < $1 AND last_seen_at < $2`,
		today, lastSeenBefore)
	if err != nil {
		return 0, fmt.Errorf("deactivate past available: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*Listing, error) {
	l := &Listing{}
	var (
		lat, lng sql.NullFloat64
		ptype    string
	)
	err := row.Scan(
		&l.ID, &l.ExternalID, &l.Source, &l.SourceURL, &l.Address, &l.AddressNormalized,
		&l.City, &l.State, &l.ZipCode, &l.Neighborhood, &lat, &lng,
		&l.Rent, &l.Bedrooms, &l.Bathrooms, &l.Sqft, &ptype, &l.AvailableDate,
		&l.Description, pq.Array(&l.Amenities), pq.Array(&l.Images), pq.Array(&l.ImagesCached),
		&l.ContentHash, &l.DataQualityScore, &l.IsActive,
		&l.FirstSeenAt, &l.LastSeenAt, &l.FreshnessConfidence, &l.TimesSeen,
		&l.ZeroConfidenceRuns, &l.MarketID, &l.MergedInto,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.PropertyType = PropertyType(ptype)
	if lat.Valid {
		l.Latitude = &lat.Float64
	}
	if lng.Valid {
		l.Longitude = &lng.Float64
	}
	return l, nil
}

func scanListings(rows *sql.Rows) ([]*Listing, error) {
	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
