package metrics

import (
	"testing"
	"time"
)

func TestTimingMetricRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("count = %d, want 2", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 || s.AvgMs != 3 {
		t.Errorf("stats = %+v", s)
	}

	m.Reset()
	if m.Count() != 0 || m.Stats().MaxMs != 0 {
		t.Errorf("reset left data: %+v", m.Stats())
	}
}

func TestDisabledIsNoop(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Second)
	c := newCounter("off")
	c.Inc()
	if m.Count() != 0 || c.Value() != 0 {
		t.Errorf("disabled metrics recorded: timing=%d counter=%d", m.Count(), c.Value())
	}
}

func TestTimerNilMetric(t *testing.T) {
	Timer(nil)()
}

func TestAllTimingStatsOnlyWithData(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	FrameStep.Record(time.Millisecond)
	ChunkCacheHits.Add(3)

	stats := AllTimingStats()
	if len(stats) != 1 || stats[0].Name != "frame_step" {
		t.Fatalf("stats = %+v", stats)
	}
	if ChunkCacheHits.Value() != 3 {
		t.Errorf("counter = %d", ChunkCacheHits.Value())
	}
	ResetAll()
	if ChunkCacheHits.Value() != 0 {
		t.Errorf("ResetAll kept counter value %d", ChunkCacheHits.Value())
	}
}
