package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// Scheduler is the facade the Scanner and load-endpoint handlers use to
// enqueue work: Enqueue (async, or inline when Eager), Group (parallel
// set that waits for all its jobs, backing the Scanner's page-worker
// task groups), and RetryAt (task-level retry with a scheduled eta, on
// the same timer path settle uses for rate-limit rescheduling). The concrete
// implementation is in-process; it is the production default for a
// single-process deployment and the one exercised by tests, and a real
// broker can be slotted behind the same facade.
type Scheduler struct {
	Eager       bool
	MaxAttempts int

	mu      sync.Mutex
	pending int
	timers  []*time.Timer
}

// New returns a Scheduler. eager makes Enqueue run each job
// synchronously on the calling goroutine (tests, the sync command);
// Group runs its jobs concurrently in either mode.
func New(eager bool, maxAttempts int) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Scheduler{Eager: eager, MaxAttempts: maxAttempts}
}

// Enqueue runs job asynchronously (a detached goroutine) unless Eager,
// in which case it runs synchronously and its error is returned
// directly to the caller, while async execution routes a RateLimited
// failure to a reschedule instead.
func (s *Scheduler) Enqueue(ctx context.Context, job Job) error {
	if s.Eager {
		name, _ := job.Describe()
		if err := job.Run(ctx); err != nil {
			return fmt.Errorf("job %s failed: %w", name, err)
		}
		return nil
	}

	s.track(1)
	go func() {
		defer s.track(-1)
		s.settle(job, job.Run(context.Background()), 1)
	}()
	return nil
}

// Group runs jobs as a parallel set and waits for all of them, returning
// the first error; it backs the scanner's page-worker task groups, whose
// finalizer runs after Group returns. In eager mode the jobs still run
// concurrently (errgroup), since the scanner's ordering — finalize
// runs after all page workers complete — depends on that shape
// regardless of queue mode.
func (s *Scheduler) Group(ctx context.Context, jobs []Job) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			name, _ := job.Describe()
			if err := job.Run(gctx); err != nil {
				return fmt.Errorf("job %s failed: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RetryAt schedules job to run at eta. In eager mode (tests, the sync
// command) there is no queue to reschedule onto, so the caller's
// RateLimited error is expected to propagate instead of reaching here —
// callers should check s.Eager before calling RetryAt.
func (s *Scheduler) RetryAt(job Job, eta time.Time) {
	s.scheduleAt(job, eta, 1)
}

// settle routes a finished async job's outcome: recovered no-op kinds
// are dropped quietly, a RateLimited failure is re-enqueued at exactly
// the upstream-declared reset instant, an IntegrityError
// (concurrent-insert race) is re-attempted with backoff up to
// MaxAttempts, everything else is logged as a task failure.
func (s *Scheduler) settle(job Job, err error, attempt int) {
	if err == nil {
		return
	}
	name, args := job.Describe()

	var stale *apierr.StaleDataError
	var skip *apierr.NothingToDoError
	if errors.As(err, &stale) || errors.As(err, &skip) {
		slog.Debug("job finished as a no-op", "job", name, "reason", err)
		return
	}

	var rl *apierr.RateLimitedError
	if errors.As(err, &rl) {
		slog.Warn("job rate limited, rescheduling at reset", "job", name, "reset", rl.Reset)
		s.scheduleAt(job, rl.Reset, attempt)
		return
	}

	var integrity *apierr.IntegrityError
	if errors.As(err, &integrity) {
		if attempt >= s.MaxAttempts {
			slog.Error("job abandoned after repeated integrity errors", "job", name, "args", args, "attempts", attempt, "error", err)
			return
		}
		delay := time.Duration(attempt) * 500 * time.Millisecond
		slog.Warn("job hit integrity error, retrying", "job", name, "attempt", attempt, "delay", delay)
		s.scheduleAt(job, time.Now().Add(delay), attempt+1)
		return
	}

	slog.Error("job failed", "job", name, "args", args, "error", err)
}

func (s *Scheduler) scheduleAt(job Job, eta time.Time, attempt int) {
	d := time.Until(eta)
	if d < 0 {
		d = 0
	}
	s.track(1)
	t := time.AfterFunc(d, func() {
		defer s.track(-1)
		s.settle(job, job.Run(context.Background()), attempt)
	})
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
}

// Pending returns the number of in-flight async jobs, used by the
// internal/httpapi status endpoint.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) track(delta int) {
	s.mu.Lock()
	s.pending += delta
	s.mu.Unlock()
}
