package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

func TestEnqueue_EagerRunsInlineAndReturnsError(t *testing.T) {
	s := New(true, 3)
	boom := errors.New("boom")

	err := s.Enqueue(context.Background(), Func{Name: "failing", Fn: func(ctx context.Context) error { return boom }})
	if !errors.Is(err, boom) {
		t.Fatalf("eager mode must surface the job's error to the caller, got %v", err)
	}

	ran := false
	if err := s.Enqueue(context.Background(), Func{Name: "ok", Fn: func(ctx context.Context) error { ran = true; return nil }}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !ran {
		t.Fatal("eager mode must run the job before returning")
	}
}

func TestGroup_RunsEveryJobAndJoins(t *testing.T) {
	s := New(true, 3)
	var count atomic.Int32

	tasks := make([]Job, 5)
	for i := range tasks {
		tasks[i] = Func{Name: "page", Fn: func(ctx context.Context) error {
			count.Add(1)
			return nil
		}}
	}
	if err := s.Group(context.Background(), tasks); err != nil {
		t.Fatalf("Group: %v", err)
	}
	if count.Load() != 5 {
		t.Fatalf("expected all 5 jobs to run before Group returns, got %d", count.Load())
	}
}

func TestGroup_PropagatesFirstError(t *testing.T) {
	s := New(true, 3)
	boom := errors.New("page 3 failed")

	tasks := []Job{
		Func{Name: "page-1", Fn: func(ctx context.Context) error { return nil }},
		Func{Name: "page-3", Fn: func(ctx context.Context) error { return boom }},
	}
	if err := s.Group(context.Background(), tasks); !errors.Is(err, boom) {
		t.Fatalf("expected the failing page's error, got %v", err)
	}
}

// An async job failing with RateLimited is re-enqueued at the declared
// reset instant, not dropped and not retried immediately.
func TestEnqueue_RateLimitedJobIsRescheduledAtReset(t *testing.T) {
	s := New(false, 3)

	var mu sync.Mutex
	var runTimes []time.Time
	reset := time.Now().Add(150 * time.Millisecond)

	done := make(chan struct{})
	job := Func{Name: "rate-limited-once", Fn: func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		runTimes = append(runTimes, time.Now())
		if len(runTimes) == 1 {
			return &apierr.RateLimitedError{Reset: reset}
		}
		close(done)
		return nil
	}}

	if err := s.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("the rate-limited job was never rescheduled")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(runTimes) != 2 {
		t.Fatalf("expected exactly 2 runs, got %d", len(runTimes))
	}
	if runTimes[1].Before(reset.Add(-20 * time.Millisecond)) {
		t.Fatalf("second run fired before the declared reset: %v < %v", runTimes[1], reset)
	}
}

// TestEnqueue_IntegrityErrorIsRetriedUpToMaxAttempts covers the
// backed-off retry policy's cap: a job that keeps racing on a
// unique constraint is re-attempted with backoff and abandoned after
// MaxAttempts.
func TestEnqueue_IntegrityErrorIsRetriedUpToMaxAttempts(t *testing.T) {
	s := New(false, 2)

	var count atomic.Int32
	job := Func{Name: "always-racing", Fn: func(ctx context.Context) error {
		count.Add(1)
		return &apierr.IntegrityError{Table: "users"}
	}}

	if err := s.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for count.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected %d attempts, saw %d", 2, count.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Outlast the next backoff window to prove it stopped at the cap.
	time.Sleep(1200 * time.Millisecond)
	if got := count.Load(); got != 2 {
		t.Fatalf("expected the job abandoned after 2 attempts, got %d", got)
	}
}
