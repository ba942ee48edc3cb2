// Package sweeper runs the periodic maintenance pass: retiring dead
// listings, failing stuck jobs, resetting rate-limit windows and purging
// expired score cache entries.
package sweeper

import (
	"context"
	"log"
	"time"
)

const (
	// zeroRunLimit is how many consecutive decay sweeps a listing may
	// spend at zero confidence before it is deactivated.
	zeroRunLimit = 2

	// staleListingWindow is how long a listing with a passed available
	// date may go unseen before deactivation.
	staleListingWindow = 7 * 24 * time.Hour
)

// Store is the slice of the storage layer the sweeper needs.
type Store interface {
	DeactivateExhausted(ctx context.Context, minRuns int) (int64, error)
	DeactivatePastAvailable(ctx context.Context, today string, lastSeenBefore time.Time) (int64, error)
	ResetRateLimits(ctx context.Context, now time.Time) (int64, error)
	TimeOutStuckJobs(ctx context.Context, startedBefore time.Time) ([]string, error)
	PurgeExpiredScores(ctx context.Context, now time.Time) (int64, error)
}

// JobCloser receives the completion callback for jobs the sweeper times
// out, so a timed-out scrape feeds the market's circuit breaker exactly
// like an ordinary failure.
type JobCloser interface {
	OnJobDone(ctx context.Context, marketID string, listings int, ok bool)
}

// Report summarizes one maintenance pass.
type Report struct {
	ListingsDeactivated int64
	StaleDeactivated    int64
	SourcesReset        int64
	JobsTimedOut        int
	ScoresPurged        int64
}

// Sweeper runs the maintenance pass.
type Sweeper struct {
	store      Store
	jobs       JobCloser
	jobTimeout time.Duration
	now        func() time.Time
}

func New(store Store, jobs JobCloser, jobTimeout time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		jobs:       jobs,
		jobTimeout: jobTimeout,
		now:        time.Now,
	}
}

// SweepOnce performs every maintenance task once. Each task failure is
// logged and the rest still run; maintenance is best-effort.
func (s *Sweeper) SweepOnce(ctx context.Context) *Report {
	now := s.now()
	report := &Report{}

	n, err := s.store.DeactivateExhausted(ctx, zeroRunLimit)
	if err != nil {
		log.Printf("[Sweeper] Deactivate exhausted failed: %v", err)
	}
	report.ListingsDeactivated = n

	stale, err := s.store.DeactivatePastAvailable(ctx, now.Format("2006-01-02"), now.Add(-staleListingWindow))
	if err != nil {
		log.Printf("[Sweeper] Deactivate stale failed: %v", err)
	}
	report.StaleDeactivated = stale

	reset, err := s.store.ResetRateLimits(ctx, now)
	if err != nil {
		log.Printf("[Sweeper] Rate limit reset failed: %v", err)
	}
	report.SourcesReset = reset

	markets, err := s.store.TimeOutStuckJobs(ctx, now.Add(-s.jobTimeout))
	if err != nil {
		log.Printf("[Sweeper] Stuck job sweep failed: %v", err)
	}
	report.JobsTimedOut = len(markets)
	for _, marketID := range markets {
		log.Printf("[Sweeper] Job for %s exceeded %s, marked timed out", marketID, s.jobTimeout)
		if s.jobs != nil {
			s.jobs.OnJobDone(ctx, marketID, 0, false)
		}
	}

	purged, err := s.store.PurgeExpiredScores(ctx, now)
	if err != nil {
		log.Printf("[Sweeper] Score cache purge failed: %v", err)
	}
	report.ScoresPurged = purged

	log.Printf("[Sweeper] Maintenance pass: %d exhausted, %d stale, %d sources reset, %d jobs timed out, %d scores purged",
		report.ListingsDeactivated, report.StaleDeactivated, report.SourcesReset,
		report.JobsTimedOut, report.ScoresPurged)
	return report
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Sweeper] Started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] Stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
