package merge

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// StatsSnapshot is a point-in-time aggregate of merge latency samples.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Stats tracks recent merge call latencies per provider within a rolling
// window.
type Stats struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one call. Failed calls count toward Errors but not latency.
func (s *Stats) Record(provider string, d time.Duration, err error) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[provider] = append(prune(s.samples[provider], now.Add(-s.maxAge)), sample{
		timestamp:  now,
		durationMs: ms,
		failed:     err != nil,
	})
}

// Snapshot aggregates every provider seen within the window.
func (s *Stats) Snapshot() map[string]StatsSnapshot {
	cutoff := s.now().Add(-s.maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StatsSnapshot, len(s.samples))
	for provider, samples := range s.samples {
		samples = prune(samples, cutoff)
		s.samples[provider] = samples
		if len(samples) == 0 {
			delete(s.samples, provider)
			continue
		}
		out[provider] = aggregate(samples)
	}
	return out
}

func aggregate(samples []sample) StatsSnapshot {
	snap := StatsSnapshot{}
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		if sm.failed {
			snap.Errors++
			continue
		}
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	snap.Count = len(values)
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func prune(samples []sample, cutoff time.Time) []sample {
	writeIdx := 0
	for _, sm := range samples {
		if !sm.timestamp.Before(cutoff) {
			samples[writeIdx] = sm
			writeIdx++
		}
	}
	return samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
