package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter { return &Counter{name: name} }

// Inc adds one.
func (c *Counter) Inc() {
	if enabled.Load() {
		c.n.Add(1)
	}
}

// Add adds delta.
func (c *Counter) Add(delta int64) {
	if enabled.Load() {
		c.n.Add(delta)
	}
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Value() int64 { return c.n.Load() }
func (c *Counter) Reset() { c.n.Store(0) }

var (
	// ChunkCacheHits counts chunks skipped because their cache file existed.
	ChunkCacheHits = newCounter("chunk_cache_hits")
	// ChunkExtractions counts successful extraction calls.
	ChunkExtractions = newCounter("chunk_extractions")
	// ExtractionRetries counts retried extraction attempts.
	ExtractionRetries = newCounter("extraction_retries")
	// BackgroundFetches counts background fetch attempts, skipped ones included.
	BackgroundFetches = newCounter("background_fetches")
)

// AllCounters lists the registered counters.
func AllCounters() []*Counter {
	return []*Counter{ChunkCacheHits, ChunkExtractions, ExtractionRetries, BackgroundFetches}
}
