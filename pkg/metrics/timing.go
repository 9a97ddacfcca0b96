// Package metrics collects in-process timings and counters for ember's hot
// paths: layout builds, frame steps, cache loads and chunk extraction.
//
// Collection is on unless EMBER_METRICS=0.
//
//	func buildFrame() {
//	    defer metrics.Timer(metrics.FrameStep)()
//	    ...
//	}
package metrics

import (
	"os"
	"sort"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("EMBER_METRICS") != "0")
}

// Enabled reports whether collection is on.
func Enabled() bool { return enabled.Load() }

// SetEnabled toggles collection at runtime.
func SetEnabled(on bool) { enabled.Store(on) }

// TimingMetric aggregates durations of one named operation.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for {
		cur := m.max.Load()
		if ns <= cur || m.max.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := m.min.Load()
		if cur != 0 && ns >= cur {
			break
		}
		if m.min.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (m *TimingMetric) Name() string { return m.name }
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats snapshots the metric.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.total.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.max.Load()) / 1e6,
		MinMs:   float64(m.min.Load()) / 1e6,
	}
}

// Reset clears all samples.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts a measurement and returns the func that ends it.
func Timer(m *TimingMetric) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// TimerWithCallback is Timer that also hands the duration to cb.
func TimerWithCallback(m *TimingMetric, cb func(time.Duration)) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		m.Record(d)
		if cb != nil {
			cb(d)
		}
	}
}

var (
	LayoutBuild     = newTimingMetric("layout_build")
	FrameStep       = newTimingMetric("frame_step")
	CacheLoad       = newTimingMetric("cache_load")
	ChunkExtraction = newTimingMetric("chunk_extraction")
	SnapshotRender  = newTimingMetric("snapshot_render")
)

// AllTimingMetrics lists the registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{LayoutBuild, FrameStep, CacheLoad, ChunkExtraction, SnapshotRender}
}

// AllTimingStats returns stats for metrics that have samples, by name.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, m := range AllTimingMetrics() {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetAll clears every timing metric and counter.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCounters() {
		c.Reset()
	}
}
