// Package scraper defines the source adapter capability and its variants.
// The pipeline depends only on the Adapter interface; each source decides
// whether it scrapes a rendered page or calls an aggregator API.
package scraper

import (
	"context"

	"rentscout/internal/storage"
)

// Adapter fetches raw listings for one market from one source. Any failure
// is returned as an error (wrapped in storage.AdapterError by callers that
// need the source attached) and feeds the circuit breaker; adapters never
// touch the canonical store.
type Adapter interface {
	// Source returns the source id this adapter scrapes, e.g. "apartments_com".
	Source() string

	// Scrape fetches up to maxListings raw listings for the market.
	Scrape(ctx context.Context, market *storage.MarketConfig, maxListings int) ([]storage.RawListing, error)
}
