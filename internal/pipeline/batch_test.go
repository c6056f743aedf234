package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/linkguardian/internal/model"
)

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	factory := func(string) (*Pipeline, error) { return New(), nil }

	t.Run("defaults to one target at a time", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(model.ModeSite, factory)
		if bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultBatchConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithConcurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(model.ModeSite, factory, WithConcurrency(4)); bp.concurrency != 4 {
			t.Errorf("expected concurrency 4, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(model.ModeSite, factory, WithConcurrency(0)); bp.concurrency != DefaultBatchConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns one report per target in order", func(t *testing.T) {
		t.Parallel()

		factory := func(string) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "noop"})
			return p, nil
		}
		bp := NewBatchProcessor(model.ModeGitHub, factory, WithConcurrency(3), WithBatchLogger(discardLogger()))

		targets := []string{"https://github.com/a/one", "https://github.com/b/two", "https://github.com/c/three"}
		reports, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(targets) {
			t.Fatalf("expected %d reports, got %d", len(targets), len(reports))
		}
		for i, r := range reports {
			if r.Target != targets[i] {
				t.Errorf("report %d: expected target %q, got %q", i, targets[i], r.Target)
			}
			if r.Mode != model.ModeGitHub {
				t.Errorf("report %d: expected github mode, got %q", i, r.Mode)
			}
		}
	})

	t.Run("failing target does not stop others", func(t *testing.T) {
		t.Parallel()

		factory := func(target string) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "step", doFunc: func(context.Context, *model.ScanReport) error {
				if target == "bad" {
					return errors.New("unreachable")
				}
				return nil
			}})
			return p, nil
		}
		bp := NewBatchProcessor(model.ModeSite, factory, WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(context.Background(), []string{"good", "bad", "good2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[1].Error != "unreachable" {
			t.Errorf("expected error in report, got %q", reports[1].Error)
		}
		if reports[0].Error != "" || reports[2].Error != "" {
			t.Error("expected other reports to succeed")
		}
	})

	t.Run("factory error is recorded", func(t *testing.T) {
		t.Parallel()

		factory := func(string) (*Pipeline, error) { return nil, errors.New("bad config") }
		bp := NewBatchProcessor(model.ModeSite, factory, WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(context.Background(), []string{"x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[0].Error != "bad config" {
			t.Errorf("expected factory error in report, got %q", reports[0].Error)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(string) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.ScanReport) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			}})
			return p, nil
		}
		bp := NewBatchProcessor(model.ModeSite, factory, WithConcurrency(2), WithBatchLogger(discardLogger()))

		if _, err := bp.ProcessBatch(context.Background(), []string{"a", "b", "c", "d", "e", "f"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent scans, got %d", peak.Load())
		}
	})

	t.Run("cancelled context returns error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(model.ModeSite, func(string) (*Pipeline, error) { return New(), nil }, WithBatchLogger(discardLogger()))
		if _, err := bp.ProcessBatch(ctx, []string{"a", "b"}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	factory := func(string) (*Pipeline, error) { return New(WithLogger(discardLogger())), nil }
	bp := NewBatchProcessor(model.ModeSite, factory, WithConcurrency(4), WithBatchLogger(discardLogger()))

	var (
		mu   sync.Mutex
		seen = make(map[int]string)
	)
	targets := []string{"a", "b", "c", "d", "e"}
	err := bp.ProcessBatchWithCallback(context.Background(), targets, func(r *model.ScanReport, i int) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = r.Target
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != len(targets) {
		t.Fatalf("expected %d callbacks, got %d", len(targets), len(seen))
	}
	for i, target := range targets {
		if seen[i] != target {
			t.Errorf("index %d: expected %q, got %q", i, target, seen[i])
		}
	}
}
