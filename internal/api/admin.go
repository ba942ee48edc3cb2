package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rentscout/internal/storage"
)

// ScrapeHandler triggers an ad-hoc scrape
// @Summary Trigger a scrape for one market
// @Description Creates a scrape job for the market and runs it in the background, bypassing the schedule (but not the circuit breaker bookkeeping)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body map[string]string true "market_id to scrape"
// @Success 202 {object} storage.ScrapeJob
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/scrape [post]
func (a *API) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		MarketID string `json:"market_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "market_id is required")
		return
	}

	m, err := a.store.GetMarket(r.Context(), req.MarketID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}

	job, err := a.dispatcher.Dispatch(r.Context(), m)
	if errors.Is(err, storage.ErrJobInFlight) {
		writeError(w, http.StatusConflict, "market already has a scrape in flight")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to dispatch scrape")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// JobsHandler lists scrape jobs
// @Summary List scrape jobs
// @Tags admin
// @Produce json
// @Param limit query int false "Max jobs to return (default 50)"
// @Success 200 {array} storage.ScrapeJob
// @Router /admin/jobs [get]
func (a *API) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobs, err := a.store.ListJobs(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*storage.ScrapeJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// JobHandler fetches one scrape job
// @Summary Get a scrape job
// @Tags admin
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} storage.ScrapeJob
// @Failure 404 {object} map[string]string
// @Router /admin/jobs/{id} [get]
func (a *API) JobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/jobs/")
	job, err := a.store.GetJob(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// MarketsHandler lists market configurations
// @Summary List markets
// @Tags admin
// @Produce json
// @Success 200 {array} storage.MarketConfig
// @Router /admin/markets [get]
func (a *API) MarketsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	markets, err := a.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []*storage.MarketConfig{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// marketUpdate is the mutable subset of a market configuration. Pointer
// fields distinguish "leave unchanged" from an explicit value.
type marketUpdate struct {
	Tier                *string `json:"tier"`
	IsEnabled           *bool   `json:"is_enabled"`
	ScrapeIntervalHours *int    `json:"scrape_interval_hours"`
	MaxListings         *int    `json:"max_listings_per_scrape"`
	ResetBreaker        bool    `json:"reset_breaker"`
}

// MarketHandler updates one market configuration
// @Summary Update a market
// @Description Adjusts tier, enablement, scrape interval or listing cap, and optionally resets the circuit breaker to closed
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Market id"
// @Param request body marketUpdate true "Fields to change"
// @Success 200 {object} storage.MarketConfig
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/markets/{id} [patch]
func (a *API) MarketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/markets/")
	m, err := a.store.GetMarket(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}

	var upd marketUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if upd.Tier != nil {
		switch storage.Tier(*upd.Tier) {
		case storage.TierHot, storage.TierStandard, storage.TierCool:
			m.Tier = storage.Tier(*upd.Tier)
		default:
			writeError(w, http.StatusBadRequest, "unknown tier")
			return
		}
	}
	if upd.IsEnabled != nil {
		m.IsEnabled = *upd.IsEnabled
	}
	if upd.ScrapeIntervalHours != nil && *upd.ScrapeIntervalHours > 0 {
		m.ScrapeIntervalHours = *upd.ScrapeIntervalHours
	}
	if upd.MaxListings != nil && *upd.MaxListings > 0 {
		m.MaxListingsPerScrape = *upd.MaxListings
	}
	if upd.ResetBreaker {
		m.BreakerState = storage.BreakerClosed
		m.ConsecutiveFailures = 0
		m.CooldownHours = 1
		m.CooldownUntil = nil
	}

	if err := a.store.UpsertMarket(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// MetricsHandler returns aggregate pipeline metrics
// @Summary Aggregate metrics
// @Description Totals for stored and active listings, per-source counts, job throughput over the last day and the dedup rate
// @Tags admin
// @Produce json
// @Success 200 {object} storage.Metrics
// @Router /metrics [get]
func (a *API) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics, err := a.store.Snapshot(r.Context(), a.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}
