// Package stats implements the rolling 24h market-stats tracker (C9): on
// each trade it updates last_price/volume_24h/high_24h/low_24h/
// price_change_24h, and it prunes samples older than 24h so those
// quantities stay correct within the rolling window without needing any
// particular storage representation (spec.md §4.9 is explicit that the
// window representation is implementation-free).
package stats

import (
	"sync"
	"time"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

const window = 24 * time.Hour

type sample struct {
	at    time.Time
	price decimal.Decimal
	base  decimal.Decimal
}

// Tracker maintains rolling stats for every market it has seen a trade for.
type Tracker struct {
	mu      sync.Mutex
	samples map[string][]sample
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{samples: make(map[string][]sample)}
}

// Record folds a trade into the rolling window for its market and returns
// the recomputed stats row.
func (t *Tracker) Record(marketID string, price, baseAmount decimal.Decimal, at time.Time) domain.MarketStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := append(t.samples[marketID], sample{at: at, price: price, base: baseAmount})
	samples = pruneOlderThan(samples, at.Add(-window))
	t.samples[marketID] = samples

	return computeLocked(marketID, samples)
}

// Snapshot returns the current stats for marketID without recording a new
// trade, pruning samples older than 24h relative to now first.
func (t *Tracker) Snapshot(marketID string, now time.Time) domain.MarketStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := pruneOlderThan(t.samples[marketID], now.Add(-window))
	t.samples[marketID] = samples
	return computeLocked(marketID, samples)
}

// PruneAll sweeps every tracked market's window, dropping samples older
// than 24h relative to now. Driven by a background ticker
// (see internal/engine.Engine.StartStatsSweeper) independently of trade
// arrival, since a quiet market would otherwise never prune.
func (t *Tracker) PruneAll(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.Add(-window)
	for marketID, samples := range t.samples {
		t.samples[marketID] = pruneOlderThan(samples, cutoff)
	}
}

func pruneOlderThan(samples []sample, cutoff time.Time) []sample {
	i := 0
	for i < len(samples) && samples[i].at.Before(cutoff) {
		i++
	}
	if i == 0 {
		return samples
	}
	return append([]sample(nil), samples[i:]...)
}

func computeLocked(marketID string, samples []sample) domain.MarketStats {
	if len(samples) == 0 {
		return domain.MarketStats{MarketID: marketID}
	}
	first := samples[0]
	last := samples[len(samples)-1]

	high := first.price
	low := first.price
	volume := decimal.Zero
	for _, s := range samples {
		if s.price.GreaterThan(high) {
			high = s.price
		}
		if s.price.LessThan(low) {
			low = s.price
		}
		volume = volume.Add(s.base)
	}

	return domain.MarketStats{
		MarketID:       marketID,
		High24h:        high,
		Low24h:         low,
		Volume24h:      volume,
		PriceChange24h: last.price.Sub(first.price),
		LastPrice:      last.price,
		LastUpdateTime: last.at,
	}
}
