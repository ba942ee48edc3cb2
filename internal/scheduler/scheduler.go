// Package scheduler decides which markets to scrape and when, runs the
// scrape pipeline for each dispatched job, and guards flaky sources with a
// per-market circuit breaker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"rentscout/internal/dedup"
	"rentscout/internal/freshness"
	"rentscout/internal/scraper"
	"rentscout/internal/storage"
)

// Store is the slice of the storage layer the scheduler needs.
type Store interface {
	ListEnabledMarkets(ctx context.Context) ([]*storage.MarketConfig, error)
	GetMarket(ctx context.Context, id string) (*storage.MarketConfig, error)
	SaveBreakerState(ctx context.Context, m *storage.MarketConfig) error
	ReverifyCounts(ctx context.Context, threshold int) (map[string]int, error)

	InFlightMarkets(ctx context.Context) (map[string]bool, error)
	CreateJob(ctx context.Context, j *storage.ScrapeJob) error
	UpdateJob(ctx context.Context, j *storage.ScrapeJob) error
	FinishJob(ctx context.Context, j *storage.ScrapeJob) (bool, error)

	GetSource(ctx context.Context, id string) (*storage.SourceConfig, error)
	RecordSourceCall(ctx context.Context, id string, listings int, ok bool) error
}

// Normalizer turns one raw listing into a canonical draft.
type Normalizer func(storage.RawListing) (*storage.Listing, error)

// Reconciler folds a draft into the canonical store.
type Reconciler interface {
	Reconcile(ctx context.Context, draft *storage.Listing) (*dedup.Result, error)
}

// Scheduler owns dispatch, job execution and breaker bookkeeping.
type Scheduler struct {
	store     Store
	normalize Normalizer
	rec       Reconciler
	adapters  map[string]scraper.Adapter

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time

	// syncExec runs jobs inline instead of in a goroutine; tests only.
	syncExec bool
}

func New(store Store, normalize Normalizer, rec Reconciler, adapters []scraper.Adapter) *Scheduler {
	byID := make(map[string]scraper.Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.Source()] = a
	}
	return &Scheduler{
		store:     store,
		normalize: normalize,
		rec:       rec,
		adapters:  byID,
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
	}
}

// DueMarkets returns the markets eligible for a scrape right now. A Closed
// market is due when its tier interval has elapsed since the last attempt,
// or sooner when listings have decayed below the re-verify threshold. An
// Open market whose cooldown has elapsed is flipped to HalfOpen and gets a
// single probe; markets with a job already in flight are never returned.
func (s *Scheduler) DueMarkets(ctx context.Context) ([]*storage.MarketConfig, error) {
	now := s.now()

	markets, err := s.store.ListEnabledMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	inFlight, err := s.store.InFlightMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("in-flight markets: %w", err)
	}
	reverify, err := s.store.ReverifyCounts(ctx, freshness.ReverifyThreshold)
	if err != nil {
		return nil, fmt.Errorf("reverify counts: %w", err)
	}

	var due []*storage.MarketConfig
	srcOK := make(map[string]bool)
	for _, m := range markets {
		if inFlight[m.ID] {
			continue
		}
		avail, checked := srcOK[m.Source]
		if !checked {
			avail = s.sourceAvailable(ctx, m.Source)
			srcOK[m.Source] = avail
		}
		if !avail {
			continue
		}
		switch m.BreakerState {
		case storage.BreakerClosed:
			if s.closedMarketDue(m, now, reverify[m.ID]) {
				due = append(due, m)
			}
		case storage.BreakerOpen:
			if cooldownElapsed(m, now) {
				m.BreakerState = storage.BreakerHalfOpen
				if err := s.store.SaveBreakerState(ctx, m); err != nil {
					log.Printf("[Scheduler] Failed to persist half-open for %s: %v", m.ID, err)
					continue
				}
				log.Printf("[Scheduler] Market %s cooldown elapsed, probing", m.ID)
				due = append(due, m)
			}
		case storage.BreakerHalfOpen:
			// No probe in flight (checked above), so allow one.
			due = append(due, m)
		}
	}
	return due, nil
}

// sourceAvailable reports whether a source can take a request right now.
// Disabled or rate-limit-exhausted sources make their markets not due; they
// are skipped, never failed, so the breaker only sees real scrape outcomes.
func (s *Scheduler) sourceAvailable(ctx context.Context, id string) bool {
	src, err := s.store.GetSource(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		log.Printf("[Scheduler] Source %s lookup failed: %v", id, err)
		return true
	}
	return src.IsEnabled && src.CanMakeRequest()
}

func (s *Scheduler) closedMarketDue(m *storage.MarketConfig, now time.Time, reverifyCount int) bool {
	if m.LastAttemptAt == nil {
		return true
	}
	if reverifyCount > 0 {
		return true
	}
	interval := time.Duration(m.ScrapeIntervalHours) * time.Hour
	return now.Sub(*m.LastAttemptAt) >= interval
}

// Dispatch creates a Pending job for the market and runs it asynchronously.
// The returned job is the Pending record; its terminal state lands in the
// store when the run finishes. A market with a job already in flight is
// refused with ErrJobInFlight, so ad-hoc dispatch stays idempotent too.
func (s *Scheduler) Dispatch(ctx context.Context, m *storage.MarketConfig) (*storage.ScrapeJob, error) {
	inFlight, err := s.store.InFlightMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("in-flight markets: %w", err)
	}
	if inFlight[m.ID] {
		return nil, fmt.Errorf("market %s: %w", m.ID, storage.ErrJobInFlight)
	}

	job := &storage.ScrapeJob{
		ID:        uuid.NewString(),
		Source:    m.Source,
		MarketID:  m.ID,
		City:      m.City,
		State:     m.State,
		Status:    storage.JobPending,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	now := s.now()
	m.LastAttemptAt = &now
	if err := s.store.SaveBreakerState(ctx, m); err != nil {
		log.Printf("[Scheduler] Failed to record attempt for %s: %v", m.ID, err)
	}

	if s.syncExec {
		if err := s.ExecuteJob(ctx, job, m); err != nil {
			log.Printf("[Scheduler] Job %s for %s failed: %v", job.ID, m.ID, err)
		}
		return job, nil
	}
	go func() {
		// Job execution outlives the dispatch request.
		if err := s.ExecuteJob(context.Background(), job, m); err != nil {
			log.Printf("[Scheduler] Job %s for %s failed: %v", job.ID, m.ID, err)
		}
	}()
	return job, nil
}

// ExecuteJob runs one scrape end to end: adapter fetch, then per-record
// normalize and reconcile. Per-record errors are counted, never fatal; an
// adapter error fails the whole job and feeds the breaker.
func (s *Scheduler) ExecuteJob(ctx context.Context, job *storage.ScrapeJob, m *storage.MarketConfig) error {
	started := s.now()
	job.Status = storage.JobRunning
	job.StartedAt = &started
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	raws, err := s.runAdapter(ctx, m)
	if err != nil {
		if errors.Is(err, storage.ErrSourceUnavailable) {
			// A throttled or disabled source is not a scrape outcome.
			s.finishJob(ctx, job, m, err)
		} else {
			s.finishJob(ctx, job, m, &storage.AdapterError{Source: m.Source, Err: err})
		}
		return err
	}

	job.ListingsFound = len(raws)
	for _, raw := range raws {
		draft, err := s.normalize(raw)
		if err != nil {
			if !errors.Is(err, storage.ErrMissingRequiredField) {
				log.Printf("[Scheduler] Unexpected normalize error: %v", err)
			}
			job.ListingsErrors++
			continue
		}
		draft.MarketID = m.ID

		res, err := s.rec.Reconcile(ctx, draft)
		if err != nil {
			log.Printf("[Scheduler] Reconcile failed for %q: %v", draft.Address, err)
			job.ListingsErrors++
			continue
		}
		switch res.Outcome {
		case dedup.OutcomeCreated:
			job.ListingsNew++
		case dedup.OutcomeUpdated:
			job.ListingsUpdated++
		case dedup.OutcomeMergedDuplicate:
			job.ListingsDuplicates++
		}
	}

	s.finishJob(ctx, job, m, nil)
	return nil
}

func (s *Scheduler) runAdapter(ctx context.Context, m *storage.MarketConfig) ([]storage.RawListing, error) {
	adapter, ok := s.adapters[m.Source]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", m.Source)
	}

	src, err := s.store.GetSource(ctx, m.Source)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load source config: %w", err)
	}
	if src != nil {
		if !src.IsEnabled {
			return nil, fmt.Errorf("%w: source %s is disabled", storage.ErrSourceUnavailable, m.Source)
		}
		if !src.CanMakeRequest() {
			return nil, fmt.Errorf("%w: source %s is over its rate limit", storage.ErrSourceUnavailable, m.Source)
		}
		if !s.limiter(src).Allow() {
			return nil, fmt.Errorf("%w: source %s exceeded in-process rate limit", storage.ErrSourceUnavailable, m.Source)
		}
	}
	return adapter.Scrape(ctx, m, m.MaxListingsPerScrape)
}

// limiter returns the in-process token bucket for a source, smoothing
// bursts below the persisted hourly ceiling.
func (s *Scheduler) limiter(src *storage.SourceConfig) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters[src.ID]
	if !ok {
		perHour := src.RateLimitPerHour
		if perHour <= 0 {
			perHour = 60
		}
		lim = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
		s.limiters[src.ID] = lim
	}
	return lim
}

// finishJob records the terminal job state and advances the breaker. The
// terminal write is guarded: a job the sweeper already timed out stays
// timed out and its breaker callback is not fired a second time. A source
// throttle is recorded as a failed job but is not a breaker signal.
func (s *Scheduler) finishJob(ctx context.Context, job *storage.ScrapeJob, m *storage.MarketConfig, jobErr error) {
	done := s.now()
	job.CompletedAt = &done
	if jobErr != nil {
		job.Status = storage.JobFailed
		job.ErrorMessage = jobErr.Error()
	} else {
		job.Status = storage.JobSucceeded
	}
	applied, err := s.store.FinishJob(ctx, job)
	if err != nil {
		log.Printf("[Scheduler] Failed to finish job %s: %v", job.ID, err)
		return
	}
	if !applied {
		log.Printf("[Scheduler] Job %s for %s already closed, skipping callback", job.ID, m.ID)
		return
	}

	if jobErr == nil || !errors.Is(jobErr, storage.ErrSourceUnavailable) {
		s.OnJobDone(ctx, m.ID, job.ListingsFound, jobErr == nil)
	}

	log.Printf("[Scheduler] Job %s for %s: %s (found=%d new=%d updated=%d dupes=%d errors=%d)",
		job.ID, m.ID, job.Status, job.ListingsFound, job.ListingsNew,
		job.ListingsUpdated, job.ListingsDuplicates, job.ListingsErrors)
}

// OnJobDone is the completion callback: it advances the market's breaker
// and the source health counters. The sweeper also calls it when it times
// out a stuck job.
func (s *Scheduler) OnJobDone(ctx context.Context, marketID string, listings int, ok bool) {
	now := s.now()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		log.Printf("[Scheduler] Breaker update skipped, market %s: %v", marketID, err)
		return
	}
	before := m.BreakerState
	if ok {
		recordSuccess(m, now)
	} else {
		recordFailure(m, now)
	}
	if err := s.store.SaveBreakerState(ctx, m); err != nil {
		log.Printf("[Scheduler] Failed to persist breaker for %s: %v", m.ID, err)
	}
	if before != m.BreakerState {
		log.Printf("[Scheduler] Market %s breaker %s -> %s (failures=%d, cooldown=%dh)",
			m.ID, before, m.BreakerState, m.ConsecutiveFailures, m.CooldownHours)
	}

	if err := s.store.RecordSourceCall(ctx, m.Source, listings, ok); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[Scheduler] Failed to record source call for %s: %v", m.Source, err)
	}
}

// RunOnce dispatches every due market once.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.DueMarkets(ctx)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, m := range due {
		if _, err := s.Dispatch(ctx, m); err != nil {
			log.Printf("[Scheduler] Dispatch failed for %s: %v", m.ID, err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		log.Printf("[Scheduler] Dispatched %d of %d due markets", dispatched, len(due))
	}
	return dispatched, nil
}

// Run dispatches due markets on a fixed interval until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Scheduler] Started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] Stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("[Scheduler] Dispatch pass failed: %v", err)
			}
		}
	}
}
