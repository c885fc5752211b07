// Package ratelimit provides the per-source request pacing shared by the
// enrichment and download stages.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Canonical per-source calls-per-second. Sources not listed fall back to
// DefaultRate.
var defaultRates = map[string]float64{
	"arxiv":            0.1,
	"crossref":         1.0,
	"openalex":         5.0,
	"europepmc":        2.0,
	"pubmed":           3.0,
	"semantic-scholar": 5.0,
	"unpaywall":        5.0,
	"preprints":        2.0,
}

// DefaultRate applies to sources without an explicit entry.
const DefaultRate = 1.0

// Table holds one token-bucket limiter per source. Limiters are created
// lazily on first use; a single OS mutex guards the map, which is enough
// because goroutines share one table per process.
type Table struct {
	mu       sync.Mutex
	rates    map[string]float64
	limiters map[string]*rate.Limiter
}

// NewTable builds a table with the canonical rates.
func NewTable() *Table {
	rates := make(map[string]float64, len(defaultRates))
	for src, r := range defaultRates {
		rates[src] = r
	}
	return &Table{
		rates:    rates,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetRate overrides the calls-per-second for a source. Must be called
// before the first Wait for that source.
func (t *Table) SetRate(source string, callsPerSecond float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[source] = callsPerSecond
	delete(t.limiters, source)
}

// Rate returns the configured calls-per-second for a source.
func (t *Table) Rate(source string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rates[source]; ok {
		return r
	}
	return DefaultRate
}

// Wait blocks until the source's limiter grants a token or the context
// is cancelled. Burst is 1, so consecutive grants for one source are at
// least 1/rate apart.
func (t *Table) Wait(ctx context.Context, source string) error {
	return t.limiter(source).Wait(ctx)
}

func (t *Table) limiter(source string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.limiters[source]; ok {
		return lim
	}
	r, ok := t.rates[source]
	if !ok {
		r = DefaultRate
	}
	lim := rate.NewLimiter(rate.Limit(r), 1)
	t.limiters[source] = lim
	return lim
}
