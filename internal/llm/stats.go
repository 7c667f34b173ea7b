package llm

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type sample struct {
	at     time.Time
	model  string
	ms     int64
	failed bool
}

// LatencySummary aggregates call latencies.
type LatencySummary struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time view of recent LLM calls, overall and
// per model.
type StatsSnapshot struct {
	WindowSeconds int64                     `json:"window_seconds"`
	Overall       LatencySummary            `json:"overall"`
	ByModel       map[string]LatencySummary `json:"by_model"`
}

// Stats tracks LLM call latencies within a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		window:  window,
	}
}

// Record adds one call. Failed calls count toward Errors but not latency.
func (s *Stats) Record(model string, d time.Duration, failed bool) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, model: model, ms: ms, failed: failed})
}

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	s.pruneLocked(now)
	samples := append([]sample(nil), s.samples...)
	s.mu.Unlock()

	byModel := make(map[string][]sample)
	for _, sm := range samples {
		byModel[sm.model] = append(byModel[sm.model], sm)
	}
	snap := StatsSnapshot{
		WindowSeconds: int64(s.window / time.Second),
		Overall:       summarize(samples),
		ByModel:       make(map[string]LatencySummary, len(byModel)),
	}
	for model, ss := range byModel {
		snap.ByModel[model] = summarize(ss)
	}
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[keep] = sm
			keep++
		}
	}
	s.samples = s.samples[:keep]
}

func summarize(samples []sample) LatencySummary {
	var out LatencySummary
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		if sm.failed {
			out.Errors++
			continue
		}
		values = append(values, sm.ms)
		sum += sm.ms
	}
	out.Count = len(values)
	if len(values) == 0 {
		return out
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	out.MinMs = values[0]
	out.MaxMs = values[len(values)-1]
	out.AvgMs = float64(sum) / float64(len(values))
	out.P50Ms = percentile(values, 50)
	out.P95Ms = percentile(values, 95)
	out.P99Ms = percentile(values, 99)
	return out
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	idx := float64(len(sorted)-1) * pct / 100
	lower := int(idx)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	w := idx - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*w
}

// Instrumented wraps a Client, recording the latency of every call and
// logging failures.
type Instrumented struct {
	inner Client
	stats *Stats
	log   *slog.Logger
}

func NewInstrumented(inner Client, stats *Stats, log *slog.Logger) *Instrumented {
	return &Instrumented{inner: inner, stats: stats, log: log}
}

func (c *Instrumented) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.inner.Generate(ctx, req)
	c.observe(req.Model, "generate", start, resp, err)
	return resp, err
}

func (c *Instrumented) Stream(ctx context.Context, req Request, onToken func(string) error) (*Response, error) {
	start := time.Now()
	resp, err := c.inner.Stream(ctx, req, onToken)
	c.observe(req.Model, "stream", start, resp, err)
	return resp, err
}

func (c *Instrumented) observe(model, mode string, start time.Time, resp *Response, err error) {
	d := time.Since(start)
	c.stats.Record(model, d, err != nil)
	if err != nil {
		c.log.Error("llm call failed", "model", model, "mode", mode, "duration_ms", d.Milliseconds(), "error", err)
		return
	}
	c.log.Info("llm call", "model", model, "mode", mode, "duration_ms", d.Milliseconds(),
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
}
