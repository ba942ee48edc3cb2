package scheduler

import (
	"time"

	"rentscout/internal/storage"
)

// Circuit breaker transition table, per (market, source) pair:
//
//	Closed    --3 consecutive failures-->  Open
//	Open      --cooldown elapsed------->   HalfOpen (one probe)
//	HalfOpen  --probe succeeds-------->    Closed
//	HalfOpen  --probe fails---------->     Open, cooldown doubled (capped)
//
// State lives on MarketConfig and is persisted after every transition, so a
// restart does not forget backoff history.
const (
	failureThreshold  = 3
	baseCooldownHours = 1
	maxCooldownHours  = 24
)

// recordSuccess moves any state back to Closed and resets backoff.
func recordSuccess(m *storage.MarketConfig, now time.Time) {
	m.BreakerState = storage.BreakerClosed
	m.ConsecutiveFailures = 0
	m.CooldownHours = baseCooldownHours
	m.CooldownUntil = nil
	m.LastSuccessAt = &now
	m.LastStatus = "success"
}

// recordFailure counts a failed scrape and opens the breaker once the
// threshold is crossed. A failed HalfOpen probe reopens with the cooldown
// doubled, capped at maxCooldownHours.
func recordFailure(m *storage.MarketConfig, now time.Time) {
	m.ConsecutiveFailures++
	m.LastStatus = "failure"

	switch m.BreakerState {
	case storage.BreakerClosed:
		if m.ConsecutiveFailures >= failureThreshold {
			open(m, now, baseCooldownHours)
		}
	case storage.BreakerHalfOpen:
		next := m.CooldownHours * 2
		if next > maxCooldownHours {
			next = maxCooldownHours
		}
		open(m, now, next)
	case storage.BreakerOpen:
		// Already open; a stray late failure does not extend the cooldown.
	}
}

func open(m *storage.MarketConfig, now time.Time, cooldownHours int) {
	m.BreakerState = storage.BreakerOpen
	m.CooldownHours = cooldownHours
	until := now.Add(time.Duration(cooldownHours) * time.Hour)
	m.CooldownUntil = &until
}

// cooldownElapsed reports whether an Open breaker may move to HalfOpen.
func cooldownElapsed(m *storage.MarketConfig, now time.Time) bool {
	return m.BreakerState == storage.BreakerOpen &&
		(m.CooldownUntil == nil || !now.Before(*m.CooldownUntil))
}
