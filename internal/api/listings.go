package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rentscout/internal/storage"
)

// ListingsHandler lists stored listings
// @Summary List listings
// @Description Returns stored listings, optionally filtered by city, newest first
// @Tags listings
// @Produce json
// @Param city query string false "Filter by city"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {array} storage.Listing
// @Failure 500 {object} map[string]string
// @Router /listings [get]
func (a *API) ListingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	listings, err := a.store.ListListings(r.Context(), r.URL.Query().Get("city"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []*storage.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// ListingHandler fetches one listing
// @Summary Get a listing
// @Tags listings
// @Produce json
// @Param id path string true "Listing id"
// @Success 200 {object} storage.Listing
// @Failure 404 {object} map[string]string
// @Router /listings/{id} [get]
func (a *API) ListingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/listings/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "listing id is required")
		return
	}

	l, err := a.store.GetListing(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load listing")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
