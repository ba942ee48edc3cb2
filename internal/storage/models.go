package storage

import "time"

// PropertyType is the closed set of property categories a listing can have.
type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyCondo     PropertyType = "Condo"
	PropertyHouse     PropertyType = "House"
	PropertyTownhouse PropertyType = "Townhouse"
	PropertyStudio    PropertyType = "Studio"
	PropertyOther     PropertyType = "Other"
)

// Tier controls how aggressively a market is polled and how fast
// freshness confidence decays for its listings.
type Tier string

const (
	TierHot      Tier = "hot"
	TierStandard Tier = "standard"
	TierCool     Tier = "cool"
)

// DecayRatePerHour returns confidence points lost per hour for the tier.
func (t Tier) DecayRatePerHour() int {
	switch t {
	case TierHot:
		return 3
	case TierStandard:
		return 2
	default:
		return 1
	}
}

// BreakerState is the circuit breaker state for a (market, source) pair.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// JobStatus tracks the lifecycle of a scrape job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// RawListing is the unprocessed record an adapter hands to the pipeline.
// All fields are free text straight from the source; the normalizer owns
// turning them into a Listing. Raw records are never persisted.
type RawListing struct {
	Source        string   `json:"source"`
	ExternalID    string   `json:"external_id"`
	SourceURL     string   `json:"source_url"`
	Address       string   `json:"address"`
	Rent          string   `json:"rent"`
	Bedrooms      string   `json:"bedrooms"`
	Bathrooms     string   `json:"bathrooms"`
	Sqft          string   `json:"sqft"`
	PropertyType  string   `json:"property_type"`
	AvailableDate string   `json:"available_date"`
	Neighborhood  string   `json:"neighborhood"`
	Latitude      string   `json:"latitude"`
	Longitude     string   `json:"longitude"`
	Description   string   `json:"description"`
	Amenities     []string `json:"amenities"`
	Images        []string `json:"images"`
}

// Listing is the canonical, deduplicated record of one rental unit.
type Listing struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	Source     string `json:"source"`
	SourceURL  string `json:"source_url,omitempty"`

	Address           string   `json:"address"`
	AddressNormalized string   `json:"address_normalized,omitempty"`
	City              string   `json:"city,omitempty"`
	State             string   `json:"state,omitempty"`
	ZipCode           string   `json:"zip_code,omitempty"`
	Neighborhood      string   `json:"neighborhood,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`

	Rent          int          `json:"rent"`
	Bedrooms      int          `json:"bedrooms"` // 0 = studio
	Bathrooms     float64      `json:"bathrooms"`
	Sqft          int          `json:"sqft,omitempty"`
	PropertyType  PropertyType `json:"property_type"`
	AvailableDate string       `json:"available_date,omitempty"` // YYYY-MM-DD

	Description  string   `json:"description,omitempty"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
	ImagesCached []string `json:"images_cached,omitempty"`

	ContentHash      string `json:"-"`
	DataQualityScore int    `json:"data_quality_score"`
	IsActive         bool   `json:"is_active"`

	FirstSeenAt         time.Time `json:"first_seen_at"`
	LastSeenAt          time.Time `json:"last_seen_at"`
	FreshnessConfidence int       `json:"freshness_confidence"`
	TimesSeen           int       `json:"times_seen"`
	ZeroConfidenceRuns  int       `json:"-"` // consecutive sweeps at confidence 0

	MarketID   string `json:"market_id,omitempty"`
	MergedInto string `json:"-"` // survivor id when retired as a fuzzy duplicate
}

// MarketConfig drives the scrape schedule for one (market, source) pair.
type MarketConfig struct {
	ID          string `json:"id"` // e.g. "philadelphia-pa"
	DisplayName string `json:"display_name"`
	City        string `json:"city"`
	State       string `json:"state"`
	Source      string `json:"source"`

	Tier                 Tier `json:"tier"`
	IsEnabled            bool `json:"is_enabled"`
	MaxListingsPerScrape int  `json:"max_listings_per_scrape"`
	ScrapeIntervalHours  int  `json:"scrape_interval_hours"`

	BreakerState        BreakerState `json:"breaker_state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	CooldownHours       int          `json:"cooldown_hours"` // current backoff, doubles per re-open
	CooldownUntil       *time.Time   `json:"cooldown_until,omitempty"`

	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastStatus    string     `json:"last_status,omitempty"`
}

// ScrapeJob tracks one dispatched scrape and its metrics.
type ScrapeJob struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	MarketID string    `json:"market_id"`
	City     string    `json:"city"`
	State    string    `json:"state"`
	Status   JobStatus `json:"status"`

	ListingsFound      int `json:"listings_found"`
	ListingsNew        int `json:"listings_new"`
	ListingsUpdated    int `json:"listings_updated"`
	ListingsDuplicates int `json:"listings_duplicates"`
	ListingsErrors     int `json:"listings_errors"`

	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// SourceConfig holds per-source rate limits and health counters.
type SourceConfig struct {
	ID        string `json:"id"` // e.g. "apartments_com"
	Name      string `json:"name"`
	IsEnabled bool   `json:"is_enabled"`
	IsHealthy bool   `json:"is_healthy"`

	RateLimitPerHour   int        `json:"rate_limit_per_hour"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	CurrentHourCalls   int        `json:"current_hour_calls"`
	CurrentDayCalls    int        `json:"current_day_calls"`
	RateLimitResetHour *time.Time `json:"rate_limit_reset_hour,omitempty"`
	RateLimitResetDay  *time.Time `json:"rate_limit_reset_day,omitempty"`

	TotalListingsScraped int `json:"total_listings_scraped"`
	SuccessfulScrapes    int `json:"successful_scrapes"`
	FailedScrapes        int `json:"failed_scrapes"`
}

// SearchCriteria is the user-facing ranking query.
// Bedrooms is a pointer because 0 (studio) is a valid requested value.
type SearchCriteria struct {
	City          string   `json:"city"`
	Budget        int      `json:"budget"`
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     float64  `json:"bathrooms"`
	PropertyTypes []string `json:"property_types"`
	MoveInDate    string   `json:"move_in_date"` // YYYY-MM-DD
	Preferences   string   `json:"preferences"`
}

// ListingScore is one per-candidate result from the external scoring provider.
type ListingScore struct {
	ListingID  string   `json:"listing_id"`
	Score      int      `json:"match_score"`
	Reasoning  string   `json:"reasoning"`
	Highlights []string `json:"highlights"`
}

// ScoreCacheEntry is a cached provider response, keyed by criteria+candidates.
type ScoreCacheEntry struct {
	Key       string         `json:"key"`
	Scores    []ListingScore `json:"scores"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}
