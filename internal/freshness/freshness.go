// Package freshness maintains per-listing freshness confidence, decaying it
// over time since the unit was last sighted by a scrape.
package freshness

import (
	"context"
	"log"
	"time"

	"rentscout/internal/storage"
)

// ReverifyThreshold is the confidence below which a listing is flagged for
// priority re-scrape of its market.
const ReverifyThreshold = 40

// Decay computes the current confidence for a listing purely from how long
// ago it was last seen and its market tier's decay rate. Computing from
// last-seen rather than the running value keeps sweeps idempotent: running
// the sweep twice in a row changes nothing.
func Decay(lastSeen, now time.Time, tier storage.Tier) int {
	if !now.After(lastSeen) {
		return 100
	}
	hours := int(now.Sub(lastSeen).Hours())
	conf := 100 - hours*tier.DecayRatePerHour()
	if conf < 0 {
		return 0
	}
	return conf
}

// Store is the slice of the storage layer the tracker needs.
type Store interface {
	ActiveListings(ctx context.Context) ([]*storage.Listing, error)
	ListMarkets(ctx context.Context) ([]*storage.MarketConfig, error)
	UpdateFreshness(ctx context.Context, id string, confidence, zeroRuns int) error
}

// Tracker runs the periodic decay sweep.
type Tracker struct {
	store Store
	now   func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// SweepOnce decays every active listing once and persists the new
// confidence and the count of consecutive sweeps spent at zero. Listings in
// unknown markets decay at the slowest tier rate.
func (t *Tracker) SweepOnce(ctx context.Context) (int, error) {
	now := t.now()

	markets, err := t.store.ListMarkets(ctx)
	if err != nil {
		return 0, err
	}
	tiers := make(map[string]storage.Tier, len(markets))
	for _, m := range markets {
		tiers[m.ID] = m.Tier
	}

	listings, err := t.store.ActiveListings(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	belowThreshold := 0
	for _, l := range listings {
		tier, ok := tiers[l.MarketID]
		if !ok {
			tier = storage.TierCool
		}
		conf := Decay(l.LastSeenAt, now, tier)

		zeroRuns := 0
		if conf == 0 {
			zeroRuns = l.ZeroConfidenceRuns + 1
		}
		if conf == l.FreshnessConfidence && zeroRuns == l.ZeroConfidenceRuns {
			continue
		}
		if err := t.store.UpdateFreshness(ctx, l.ID, conf, zeroRuns); err != nil {
			log.Printf("[Freshness] Failed to update listing %s: %v", l.ID, err)
			continue
		}
		updated++
		if conf < ReverifyThreshold {
			belowThreshold++
		}
	}
	log.Printf("[Freshness] Decay sweep complete: %d updated, %d below re-verify threshold", updated, belowThreshold)
	return updated, nil
}

// Run decays listings on a fixed interval until the context is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Freshness] Tracker started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Freshness] Tracker stopped")
			return
		case <-ticker.C:
			if _, err := t.SweepOnce(ctx); err != nil {
				log.Printf("[Freshness] Decay sweep failed: %v", err)
			}
		}
	}
}
