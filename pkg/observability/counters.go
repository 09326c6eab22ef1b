package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Counters implements every hook interface with atomic counters.
// The zero value is ready to use.
type Counters struct {
	scanned       atomic.Int64
	skipped       atomic.Int64
	licenses      atomic.Int64
	licensesFound atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	requests      atomic.Int64
	httpErrors    atomic.Int64
	httpTime      atomic.Int64
}

// Stats is a point-in-time copy of [Counters].
type Stats struct {
	Scanned       int64
	Skipped       int64
	Licenses      int64
	LicensesFound int64
	CacheHits     int64
	CacheMisses   int64
	Requests      int64
	HTTPErrors    int64
	HTTPTime      time.Duration
}

// Stats returns the current counts.
func (c *Counters) Stats() Stats {
	return Stats{
		Scanned:       c.scanned.Load(),
		Skipped:       c.skipped.Load(),
		Licenses:      c.licenses.Load(),
		LicensesFound: c.licensesFound.Load(),
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		Requests:      c.requests.Load(),
		HTTPErrors:    c.httpErrors.Load(),
		HTTPTime:      time.Duration(c.httpTime.Load()),
	}
}

func (c *Counters) OnScanComplete(_ context.Context, _ string, included bool, _ int, _ time.Duration) {
	if included {
		c.scanned.Add(1)
	} else {
		c.skipped.Add(1)
	}
}

func (c *Counters) OnLicenseComplete(_ context.Context, _ string, found bool, _ time.Duration) {
	c.licenses.Add(1)
	if found {
		c.licensesFound.Add(1)
	}
}

func (c *Counters) OnCacheHit(context.Context, string)      { c.cacheHits.Add(1) }
func (c *Counters) OnCacheMiss(context.Context, string)     { c.cacheMisses.Add(1) }
func (c *Counters) OnCacheSet(context.Context, string, int) {}

func (c *Counters) OnRequest(context.Context, string, string, string) { c.requests.Add(1) }

func (c *Counters) OnResponse(_ context.Context, _, _, _ string, _ int, d time.Duration) {
	c.httpTime.Add(int64(d))
}

func (c *Counters) OnError(context.Context, string, string, string, error) { c.httpErrors.Add(1) }
