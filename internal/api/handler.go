package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"rentscout/internal/storage"
)

// Caller tiers. Only the pro tier reaches the AI re-ranker; free and
// anonymous callers get heuristic scores with qualitative labels.
const (
	TierPro       = "pro"
	TierFree      = "free"
	TierAnonymous = "anonymous"
)

// Store is the slice of the storage layer the handlers need.
type Store interface {
	SearchListings(ctx context.Context, c *storage.SearchCriteria) ([]*storage.Listing, error)
	ListListings(ctx context.Context, city string, limit, offset int) ([]*storage.Listing, error)
	GetListing(ctx context.Context, id string) (*storage.Listing, error)

	ListJobs(ctx context.Context, limit int) ([]*storage.ScrapeJob, error)
	GetJob(ctx context.Context, id string) (*storage.ScrapeJob, error)

	ListMarkets(ctx context.Context) ([]*storage.MarketConfig, error)
	GetMarket(ctx context.Context, id string) (*storage.MarketConfig, error)
	UpsertMarket(ctx context.Context, m *storage.MarketConfig) error
	SaveBreakerState(ctx context.Context, m *storage.MarketConfig) error

	Snapshot(ctx context.Context, now time.Time) (*storage.Metrics, error)
}

// Ranker is the AI re-ranking surface.
type Ranker interface {
	Rerank(ctx context.Context, c *storage.SearchCriteria, candidates []*storage.Listing, heuristics map[string]int) ([]storage.ListingScore, error)
	TopK() int
}

// Dispatcher triggers ad-hoc scrapes for the admin surface.
type Dispatcher interface {
	Dispatch(ctx context.Context, m *storage.MarketConfig) (*storage.ScrapeJob, error)
}

type API struct {
	store      Store
	ranker     Ranker
	dispatcher Dispatcher
	now        func() time.Time
}

func NewAPI(store Store, ranker Ranker, dispatcher Dispatcher) *API {
	return &API{
		store:      store,
		ranker:     ranker,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
