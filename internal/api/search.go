package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"rentscout/internal/scoring"
	"rentscout/internal/storage"
)

// SearchRequest is the ranking query plus the caller's tier.
type SearchRequest struct {
	storage.SearchCriteria
	Tier string `json:"tier"`
}

// SearchResult is one ranked listing. AIScore and its companions are set
// only for pro-tier responses that went through the re-ranker; everyone
// else gets the qualitative label.
type SearchResult struct {
	Listing        *storage.Listing `json:"listing"`
	HeuristicScore int              `json:"heuristic_score"`
	Label          string           `json:"label,omitempty"`
	AIScore        *int             `json:"ai_score,omitempty"`
	Reasoning      string           `json:"reasoning,omitempty"`
	Highlights     []string         `json:"highlights,omitempty"`
}

type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Count    int            `json:"count"`
	AIRanked bool           `json:"ai_ranked"`
}

// SearchHandler ranks listings for the caller
// @Summary Search and rank rental listings
// @Description Filters active listings by the criteria, scores them heuristically, and for pro-tier callers re-ranks the top candidates with AI scores
// @Tags search
// @Accept json
// @Produce json
// @Param request body SearchRequest true "Search criteria and caller tier"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /search [post]
func (a *API) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.City) == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}
	if req.Budget <= 0 {
		writeError(w, http.StatusBadRequest, "budget must be positive")
		return
	}

	listings, err := a.store.SearchListings(r.Context(), &req.SearchCriteria)
	if err != nil {
		log.Printf("[API] Search query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	now := a.now()
	heuristics := make(map[string]int, len(listings))
	for _, l := range listings {
		heuristics[l.ID] = scoring.Score(l, &req.SearchCriteria, now)
	}
	sort.SliceStable(listings, func(i, j int) bool {
		si, sj := heuristics[listings[i].ID], heuristics[listings[j].ID]
		if si != sj {
			return si > sj
		}
		if listings[i].Rent != listings[j].Rent {
			return listings[i].Rent < listings[j].Rent
		}
		return listings[i].ID < listings[j].ID
	})

	resp := &SearchResponse{Count: len(listings)}
	resp.Results = make([]SearchResult, len(listings))
	for i, l := range listings {
		resp.Results[i] = SearchResult{
			Listing:        l,
			HeuristicScore: heuristics[l.ID],
			Label:          scoring.Label(heuristics[l.ID]),
		}
	}

	if req.Tier == TierPro && a.ranker != nil && len(listings) > 0 {
		a.applyAIRanking(r, &req, resp, listings, heuristics)
	}

	writeJSON(w, http.StatusOK, resp)
}

// applyAIRanking re-ranks the top candidates in place. Scoring failure
// leaves the heuristic ordering untouched; the request still succeeds.
func (a *API) applyAIRanking(r *http.Request, req *SearchRequest, resp *SearchResponse, listings []*storage.Listing, heuristics map[string]int) {
	top := listings
	if len(top) > a.ranker.TopK() {
		top = top[:a.ranker.TopK()]
	}

	scores, err := a.ranker.Rerank(r.Context(), &req.SearchCriteria, top, heuristics)
	if err != nil {
		if !errors.Is(err, storage.ErrScoringUnavailable) {
			log.Printf("[API] Unexpected rerank error: %v", err)
		} else {
			log.Printf("[API] AI scoring unavailable, serving heuristic ranking: %v", err)
		}
		return
	}

	byID := make(map[string]*storage.ListingScore, len(scores))
	for i := range scores {
		byID[scores[i].ListingID] = &scores[i]
	}
	for i := range resp.Results[:len(top)] {
		res := &resp.Results[i]
		if sc, ok := byID[res.Listing.ID]; ok {
			score := sc.Score
			res.AIScore = &score
			res.Reasoning = sc.Reasoning
			res.Highlights = sc.Highlights
			res.Label = ""
		}
	}

	// AI scores order the re-ranked head; the tail keeps heuristic order.
	head := resp.Results[:len(top)]
	sort.SliceStable(head, func(i, j int) bool {
		ai, aj := head[i].AIScore, head[j].AIScore
		switch {
		case ai != nil && aj != nil:
			return *ai > *aj
		case ai != nil:
			return true
		default:
			return false
		}
	})
	resp.AIRanked = true
}
