// Package scanner implements the paginated full-scan fan-out: spawn
// (acquire a named mutex, discover page count via HEAD + Link header),
// fan out (parallel page workers via an errgroup task group), and
// finalize (stamp the parent's *_last_scanned_at, reap unseen children,
// release the mutex).
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

const defaultPerPage = 100

// pageRetries bounds how often a single page worker is re-run after a
// concurrent-insert race before its error is allowed to propagate.
const pageRetries = 3

// Engine holds the collaborators every scan kind shares.
type Engine struct {
	DB        database.DB
	Upstream  *upstream.Client
	Scheduler *jobs.Scheduler
	// PullFileThreshold overrides defaultInlineFileThreshold; wired from
	// config.ServerConfig.PullFileThreshold.
	PullFileThreshold int
}

// FetchPage fetches and processes one page of a listing, returning the
// number of items it processed. Implementations live alongside each
// scan kind (repos.go, issues.go, ...).
type FetchPage func(ctx context.Context, page, perPage int) (count int, err error)

// Finalizer runs once after all page workers complete (success, skip,
// or failure): it reads the parent's previous *_last_scanned_at, stamps
// the new one, and reaps unseen children.
type Finalizer func(ctx context.Context, startedAt time.Time) error

// Run executes the three scan phases for one scope. Returns nil with
// no work done when the scope's mutex is already held by a concurrent
// scan: "already running" is a successful no-op, not an error.
func (e *Engine) Run(ctx context.Context, scope mutex.Scope, headPath string, perPage int, fetch FetchPage, finalize Finalizer) error {
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	if err := mutex.Acquire(ctx, e.DB, scope, nil); err != nil {
		if errors.Is(err, mutex.ErrAlreadyHeld) {
			slog.Debug("scan already running, skipping spawn", "scope", scope.Name())
			return nil
		}
		return fmt.Errorf("acquiring scan mutex: %w", err)
	}

	startedAt := time.Now().UTC()

	lastPage, err := e.Upstream.LastPage(ctx, headPath)
	if err != nil {
		_ = mutex.Release(ctx, e.DB, scope)
		return fmt.Errorf("discovering page count for %s: %w", scope.Name(), err)
	}

	pageJobs := make([]jobs.Job, lastPage)
	for i := 1; i <= lastPage; i++ {
		page := i
		pageJobs[i-1] = jobs.Func{
			Name: fmt.Sprintf("scan-page:%s", scope.Name()),
			Args: map[string]any{"page": page, "scope": scope.Name()},
			Fn: func(ctx context.Context) error {
				return runPageWithRetry(ctx, page, perPage, fetch)
			},
		}
	}

	fanErr := e.Scheduler.Group(ctx, pageJobs)

	// Finalize runs after all page workers complete, success or not.
	finErr := finalize(ctx, startedAt)

	if relErr := mutex.Release(ctx, e.DB, scope); relErr != nil && fanErr == nil {
		fanErr = relErr
	}

	if fanErr != nil {
		return fmt.Errorf("scanning %s: %w", scope.Name(), fanErr)
	}
	return finErr
}

func runPageWithRetry(ctx context.Context, page, perPage int, fetch FetchPage) error {
	var lastErr error
	for attempt := 0; attempt <= pageRetries; attempt++ {
		_, err := fetch(ctx, page, perPage)
		if err == nil {
			return nil
		}
		var integrity *apierr.IntegrityError
		if !errors.As(err, &integrity) {
			return err
		}
		lastErr = err
		slog.Warn("page worker hit integrity error, retrying", "page", page, "attempt", attempt, "error", err)
	}
	return lastErr
}
