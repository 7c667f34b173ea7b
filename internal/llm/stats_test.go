package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record("m", time.Duration(ms)*time.Millisecond, false)
	}

	snap := stats.Snapshot().Overall
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestStatsByModelAndErrors(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("small", 100*time.Millisecond, false)
	stats.Record("small", 300*time.Millisecond, false)
	stats.Record("large", 900*time.Millisecond, false)
	stats.Record("large", 5*time.Millisecond, true)

	snap := stats.Snapshot()
	if snap.WindowSeconds != 3600 {
		t.Errorf("expected window 3600s, got %d", snap.WindowSeconds)
	}
	if snap.Overall.Count != 3 || snap.Overall.Errors != 1 {
		t.Errorf("expected 3 ok + 1 error, got %+v", snap.Overall)
	}
	if got := snap.ByModel["small"].AvgMs; got != 200 {
		t.Errorf("expected small avg=200, got %f", got)
	}
	large := snap.ByModel["large"]
	if large.Count != 1 || large.Errors != 1 || large.MinMs != 900 {
		t.Errorf("unexpected large summary %+v", large)
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewStats(10 * time.Millisecond)
	stats.Record("m", 100*time.Millisecond, false)
	time.Sleep(25 * time.Millisecond)

	if n := stats.Snapshot().Overall.Count; n != 0 {
		t.Fatalf("expected count=0 after prune, got %d", n)
	}
	stats.Record("m", 200*time.Millisecond, false)
	if n := stats.Snapshot().Overall.Count; n != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", n)
	}
}

func TestStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record("m", -5*time.Millisecond, false)
	if got := stats.Snapshot().Overall.MinMs; got != 0 {
		t.Fatalf("expected clamped min=0, got %d", got)
	}
}

type fakeClient struct{ err error }

func (f fakeClient) Generate(context.Context, Request) (*Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: "ok"}, nil
}

func (f fakeClient) Stream(ctx context.Context, req Request, onToken func(string) error) (*Response, error) {
	if err := onToken("ok"); err != nil {
		return nil, err
	}
	return f.Generate(ctx, req)
}

func TestInstrumentedRecordsCalls(t *testing.T) {
	stats := NewStats(time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ok := NewInstrumented(fakeClient{}, stats, log)
	if _, err := ok.Generate(context.Background(), Request{Model: "small"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ok.Stream(context.Background(), Request{Model: "small"}, func(string) error { return nil }); err != nil {
		t.Fatal(err)
	}

	bad := NewInstrumented(fakeClient{err: errors.New("down")}, stats, log)
	if _, err := bad.Generate(context.Background(), Request{Model: "large"}); err == nil {
		t.Fatal("expected error")
	}

	snap := stats.Snapshot()
	if snap.ByModel["small"].Count != 2 {
		t.Errorf("expected 2 small calls, got %+v", snap.ByModel["small"])
	}
	if snap.ByModel["large"].Errors != 1 {
		t.Errorf("expected 1 large error, got %+v", snap.ByModel["large"])
	}
}
