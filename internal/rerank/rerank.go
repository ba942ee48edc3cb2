// Package rerank scores top candidates through the external AI provider,
// fronted by a durable TTL cache keyed on criteria plus candidate set.
package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"rentscout/internal/storage"
)

const cacheKeyPrefix = "ai_score:"

// Provider produces per-candidate scores from the external collaborator.
type Provider interface {
	ScoreBatch(ctx context.Context, c *storage.SearchCriteria, candidates []*storage.Listing, heuristics map[string]int) ([]storage.ListingScore, error)
}

// Store is the cache slice of the storage layer.
type Store interface {
	GetScoreCache(ctx context.Context, key string, now time.Time) (*storage.ScoreCacheEntry, error)
	PutScoreCache(ctx context.Context, e *storage.ScoreCacheEntry) error
}

// Reranker coordinates cache lookups and provider calls.
type Reranker struct {
	store    Store
	provider Provider
	ttl      time.Duration
	timeout  time.Duration
	topK     int
	now      func() time.Time
}

func New(store Store, provider Provider, ttl, timeout time.Duration, topK int) *Reranker {
	return &Reranker{
		store:    store,
		provider: provider,
		ttl:      ttl,
		timeout:  timeout,
		topK:     topK,
		now:      time.Now,
	}
}

// TopK returns how many candidates the reranker considers.
func (r *Reranker) TopK() int { return r.topK }

// CacheKey builds the deterministic cache key for a criteria and candidate
// set. Candidate order does not matter: ids are sorted before hashing, so
// the same search hitting the same listings reuses one entry.
func CacheKey(c *storage.SearchCriteria, candidateIDs []string) string {
	ids := make([]string, len(candidateIDs))
	copy(ids, candidateIDs)
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|", strings.ToLower(strings.TrimSpace(c.City)), c.Budget)
	if c.Bedrooms != nil {
		fmt.Fprintf(&b, "%d", *c.Bedrooms)
	}
	fmt.Fprintf(&b, "|%g|%s|%s|%s|",
		c.Bathrooms,
		strings.ToLower(strings.Join(c.PropertyTypes, ",")),
		c.MoveInDate,
		strings.ToLower(strings.TrimSpace(c.Preferences)),
	)
	b.WriteString(strings.Join(ids, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Rerank scores up to topK candidates. On a cache hit within the TTL it
// returns the stored scores without touching the provider; on a miss it
// calls the provider under a timeout and caches the full response. Provider
// failure or timeout surfaces as ErrScoringUnavailable so the caller can
// fall back to heuristic-only ranking.
//
// The check-then-write is deliberately not atomic: two racing requests may
// both call the provider once, which is idempotent and cost-bounded.
func (r *Reranker) Rerank(ctx context.Context, c *storage.SearchCriteria, candidates []*storage.Listing, heuristics map[string]int) ([]storage.ListingScore, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}

	ids := make([]string, len(candidates))
	for i, l := range candidates {
		ids[i] = l.ID
	}
	key := CacheKey(c, ids)
	now := r.now()

	entry, err := r.store.GetScoreCache(ctx, key, now)
	if err == nil {
		return entry.Scores, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[Rerank] Cache read failed, proceeding to provider: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.provider.ScoreBatch(callCtx, c, candidates, heuristics)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrScoringUnavailable, err)
	}

	if err := r.store.PutScoreCache(ctx, &storage.ScoreCacheEntry{
		Key:       key,
		Scores:    scores,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}); err != nil {
		// A failed cache write costs one extra provider call later.
		log.Printf("[Rerank] Cache write failed for %s: %v", key, err)
	}
	return scores, nil
}
