package dedup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"rentscout/internal/storage"
)

const (
	// fuzzyThreshold is the minimum address similarity for a duplicate merge.
	fuzzyThreshold = 0.90

	// rentTolerance is the max relative rent gap for a fuzzy duplicate.
	rentTolerance = 0.10

	// defaultLookback bounds how far back the pre-insert hash match
	// considers inactive listings. A unit relisted past the window still
	// folds into its old row when the insert collides on the hash index.
	defaultLookback = 30 * 24 * time.Hour
)

// Store is the slice of the storage layer the reconciler needs.
type Store interface {
	InsertListing(ctx context.Context, l *storage.Listing) error
	UpdateListing(ctx context.Context, l *storage.Listing) error
	FindByContentHash(ctx context.Context, hash string, since time.Time) (*storage.Listing, error)
	FuzzyCandidates(ctx context.Context, city string, bedrooms int) ([]*storage.Listing, error)
	RetireListing(ctx context.Context, loserID, survivorID string) error
}

// Outcome classifies what reconciliation did with a draft.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeUpdated         Outcome = "updated"
	OutcomeMergedDuplicate Outcome = "merged_duplicate"
)

// Result is the reconciliation verdict plus the canonical listing id the
// draft resolved to.
type Result struct {
	Outcome   Outcome
	ListingID string
}

// Reconciler folds normalized drafts into the canonical store.
type Reconciler struct {
	store    Store
	lookback time.Duration
	now      func() time.Time
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:    store,
		lookback: defaultLookback,
		now:      time.Now,
	}
}

// Reconcile resolves one draft to a canonical listing. Atomicity per
// content hash comes from the unique index on the hash column: a losing
// concurrent insert detects the violation and retries down the update path.
func (r *Reconciler) Reconcile(ctx context.Context, draft *storage.Listing) (*Result, error) {
	now := r.now()
	draft.ContentHash = ContentHash(draft.AddressNormalized, draft.Rent, draft.Bedrooms, draft.Bathrooms)

	existing, err := r.store.FindByContentHash(ctx, draft.ContentHash, now.Add(-r.lookback))
	if err == nil {
		return r.resight(ctx, existing, draft, now)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("hash lookup: %w", err)
	}

	match, found, err := r.fuzzyMatch(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("fuzzy match: %w", err)
	}
	if found {
		return r.mergeDuplicate(ctx, match, draft, now)
	}

	return r.insert(ctx, draft, now)
}

// resight handles an exact content-hash hit: same unit seen again.
func (r *Reconciler) resight(ctx context.Context, existing, draft *storage.Listing, now time.Time) (*Result, error) {
	Merge(existing, draft)
	existing.LastSeenAt = now
	existing.TimesSeen++
	existing.FreshnessConfidence = 100
	existing.ZeroConfidenceRuns = 0
	existing.IsActive = true
	if err := r.store.UpdateListing(ctx, existing); err != nil {
		return nil, fmt.Errorf("update listing %s: %w", existing.ID, err)
	}
	return &Result{Outcome: OutcomeUpdated, ListingID: existing.ID}, nil
}

func (r *Reconciler) fuzzyMatch(ctx context.Context, draft *storage.Listing) (*storage.Listing, bool, error) {
	if draft.City == "" {
		return nil, false, nil
	}
	candidates, err := r.store.FuzzyCandidates(ctx, draft.City, draft.Bedrooms)
	if err != nil {
		return nil, false, err
	}

	var best *storage.Listing
	bestSim := 0.0
	tied := false
	for _, cand := range candidates {
		if !rentWithinTolerance(draft.Rent, cand.Rent) {
			continue
		}
		sim := Similarity(draft.AddressNormalized, cand.AddressNormalized)
		if sim < fuzzyThreshold {
			continue
		}
		switch {
		case sim > bestSim:
			best, bestSim, tied = cand, sim, false
		case sim == bestSim && best != nil:
			tied = true
		}
	}
	if best == nil {
		return nil, false, nil
	}
	if tied {
		// Ambiguous: merging into the wrong unit is worse than a
		// transient duplicate the next exact scrape will collapse.
		log.Printf("[Dedup] Ambiguous fuzzy match for %q (similarity %.2f), inserting as new", draft.Address, bestSim)
		return nil, false, nil
	}
	return best, true, nil
}

// mergeDuplicate resolves a fuzzy hit: the higher-quality version survives,
// the other's unique data folds into it.
func (r *Reconciler) mergeDuplicate(ctx context.Context, cand, draft *storage.Listing, now time.Time) (*Result, error) {
	if cand.DataQualityScore >= draft.DataQualityScore {
		Merge(cand, draft)
		cand.LastSeenAt = now
		cand.TimesSeen++
		cand.FreshnessConfidence = 100
		cand.ZeroConfidenceRuns = 0
		if err := r.store.UpdateListing(ctx, cand); err != nil {
			return nil, fmt.Errorf("update survivor %s: %w", cand.ID, err)
		}
		return &Result{Outcome: OutcomeMergedDuplicate, ListingID: cand.ID}, nil
	}

	// The draft wins: it becomes the canonical row and the stored
	// candidate is retired, mapped to the new id for future lookups.
	Merge(draft, cand)
	draft.ID = uuid.NewString()
	draft.IsActive = true
	draft.FirstSeenAt = cand.FirstSeenAt
	draft.LastSeenAt = now
	draft.TimesSeen = cand.TimesSeen + 1
	draft.FreshnessConfidence = 100
	draft.MarketID = firstNonEmpty(draft.MarketID, cand.MarketID)
	if err := r.store.InsertListing(ctx, draft); err != nil {
		return nil, fmt.Errorf("insert survivor: %w", err)
	}
	if err := r.store.RetireListing(ctx, cand.ID, draft.ID); err != nil {
		return nil, fmt.Errorf("retire %s: %w", cand.ID, err)
	}
	log.Printf("[Dedup] Merged %s into %s (quality %d > %d)", cand.ID, draft.ID, draft.DataQualityScore, cand.DataQualityScore)
	return &Result{Outcome: OutcomeMergedDuplicate, ListingID: draft.ID}, nil
}

func (r *Reconciler) insert(ctx context.Context, draft *storage.Listing, now time.Time) (*Result, error) {
	draft.ID = uuid.NewString()
	draft.IsActive = true
	draft.FirstSeenAt = now
	draft.LastSeenAt = now
	draft.TimesSeen = 1
	draft.FreshnessConfidence = 100

	err := r.store.InsertListing(ctx, draft)
	if err == nil {
		return &Result{Outcome: OutcomeCreated, ListingID: draft.ID}, nil
	}
	if !storage.IsUniqueViolation(err) {
		return nil, fmt.Errorf("insert listing: %w", err)
	}

	// Some row holds this hash: either a concurrent insert won the race or
	// an old inactive row sits outside the lookback window. Look up without
	// the window and fold into whatever holds the hash, reactivating it.
	var res *Result
	backoff := retry.WithMaxRetries(1, retry.NewConstant(25*time.Millisecond))
	retryErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		existing, err := r.store.FindByContentHash(ctx, draft.ContentHash, time.Time{})
		if errors.Is(err, storage.ErrNotFound) {
			return retry.RetryableError(storage.ErrReconcileConflict)
		}
		if err != nil {
			return err
		}
		res, err = r.resight(ctx, existing, draft, now)
		return err
	})
	if retryErr != nil {
		return nil, fmt.Errorf("content hash %s: %w: %v", draft.ContentHash, storage.ErrReconcileConflict, retryErr)
	}
	return res, nil
}

func rentWithinTolerance(a, b int) bool {
	base := b
	if a > b {
		base = a
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(base)*rentTolerance
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
