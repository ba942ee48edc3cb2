package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(a *API) http.Handler {
	mux := http.NewServeMux()

	// Swagger documentation - must be registered first
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Search
	mux.HandleFunc("/api/search", a.SearchHandler)

	// Listings
	mux.HandleFunc("/api/listings", a.ListingsHandler)
	mux.HandleFunc("/api/listings/", a.ListingHandler)

	// Admin & operations
	mux.HandleFunc("/api/admin/scrape", a.ScrapeHandler)
	mux.HandleFunc("/api/admin/jobs", a.JobsHandler)
	mux.HandleFunc("/api/admin/jobs/", a.JobHandler)
	mux.HandleFunc("/api/admin/markets", a.MarketsHandler)
	mux.HandleFunc("/api/admin/markets/", a.MarketHandler)
	mux.HandleFunc("/api/metrics", a.MetricsHandler)

	return mux
}
