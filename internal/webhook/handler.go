// Package webhook implements the webhook intake: a single endpoint that
// dispatches on the X-Github-Event header using
// go-github's own typed event structs, routes each to internal/process
// with via=webhook and fetched_at=now(), and echoes back the outcome
// that matters to GitHub's delivery retry logic — 400 for a malformed
// payload or missing data, 503 when rate limited, 500 for any other
// failure, and 200 otherwise, including a stale write.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/process"
	"github.com/webhookdb/webhookdb/internal/scanner"
)

// Handler serves the replication webhook endpoint(s).
type Handler struct {
	DB        database.DB
	Scanner   *scanner.Engine
	Scheduler *jobs.Scheduler
	// Secret is the webhook's configured signing secret. Empty disables
	// signature verification (local/dev use only).
	Secret []byte
}

// ServeHTTP implements the single POST /replication entry point. The
// legacy POST /replication/{event} aliases (registered separately in
// internal/httpapi) call this same method — the event type comes from
// the header either way, so the path segment is cosmetic.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, h.Secret)
	if err != nil {
		writeText(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	eventType := github.WebHookType(r)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		writeText(w, http.StatusBadRequest, "unrecognized event: "+err.Error())
		return
	}

	if _, ok := event.(*github.PingEvent); ok {
		writeText(w, http.StatusOK, "pong")
		return
	}

	if err := h.dispatch(r.Context(), event); err != nil {
		var missing *apierr.MissingDataError
		if errors.As(err, &missing) {
			writeText(w, http.StatusBadRequest, err.Error())
			return
		}
		var stale *apierr.StaleDataError
		if errors.As(err, &stale) {
			writeText(w, http.StatusOK, "stale data")
			return
		}
		var skip *apierr.NothingToDoError
		if errors.As(err, &skip) {
			writeText(w, http.StatusOK, "nothing to do")
			return
		}
		var rl *apierr.RateLimitedError
		if errors.As(err, &rl) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset.Unix(), 10))
			w.Header().Set("Retry-After", strconv.Itoa(rl.WaitSeconds()))
			writeText(w, http.StatusServiceUnavailable, fmt.Sprintf("rate limited, try again in %d seconds", rl.WaitSeconds()))
			return
		}
		slog.Error("webhook dispatch failed", "event", eventType, "error", err)
		writeText(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeText(w, http.StatusOK, "success")
}

func (h *Handler) dispatch(ctx context.Context, event any) error {
	fetchedAt := time.Now().UTC()
	switch ev := event.(type) {
	case *github.PingEvent:
		return nil
	case *github.RepositoryEvent:
		_, err := process.ProcessRepository(ctx, h.DB, ev.Repo, ev.Org, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true})
		return err
	case *github.IssuesEvent:
		repoID, err := h.upsertRepo(ctx, ev.Repo, nil, fetchedAt)
		if err != nil {
			return err
		}
		_, err = process.ProcessIssue(ctx, h.DB, repoID, ev.Issue, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true})
		return err
	case *github.MilestoneEvent:
		repoID, err := h.upsertRepo(ctx, ev.Repo, ev.Org, fetchedAt)
		if err != nil {
			return err
		}
		_, err = process.ProcessMilestone(ctx, h.DB, repoID, ev.Milestone, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true})
		return err
	case *github.LabelEvent:
		repoID, err := h.upsertRepo(ctx, ev.Repo, ev.Org, fetchedAt)
		if err != nil {
			return err
		}
		_, err = process.ProcessLabel(ctx, h.DB, repoID, ev.Label, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true})
		return err
	case *github.PullRequestEvent:
		return h.handlePullRequest(ctx, ev, fetchedAt)
	default:
		return &apierr.NothingToDoError{Reason: fmt.Sprintf("unhandled event type %T", event)}
	}
}

// handlePullRequest upserts the PR row and either replaces its file set
// synchronously (small diffs, below the configured changed-files
// threshold) or enqueues a file scan job for the scanner to run
// out-of-band.
func (h *Handler) handlePullRequest(ctx context.Context, ev *github.PullRequestEvent, fetchedAt time.Time) error {
	repoID, err := h.upsertRepo(ctx, ev.Repo, ev.Organization, fetchedAt)
	if err != nil {
		return err
	}
	res, err := process.ProcessPullRequest(ctx, h.DB, repoID, ev.PullRequest, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true})
	if err != nil {
		return err
	}

	owner := ev.Repo.GetOwner().GetLogin()
	name := ev.Repo.GetName()
	number := ev.GetNumber()
	changed := ev.PullRequest.GetChangedFiles()

	pullRequestID, _ := res.Key.(int64)
	if pullRequestID == 0 {
		row, lookupErr := model.PullRequestStore{DB: h.DB}.ByRepoNumber(ctx, repoID, number)
		if lookupErr != nil || row == nil {
			return lookupErr
		}
		pullRequestID = row.ID
	}

	if h.Scanner.ShouldSyncFilesInline(changed) {
		return h.Scanner.SyncPullRequestFilesInline(ctx, pullRequestID, owner, name, number)
	}
	return h.Scheduler.Enqueue(ctx, jobs.Func{
		Name: "pull_request_files",
		Args: map[string]any{"owner": owner, "repo": name, "number": number},
		Fn:   func(ctx context.Context) error { return h.Scanner.PullRequestFiles(ctx, owner, name, number) },
	})
}

// upsertRepo processes the event's embedded repository payload, which
// is always a full object on webhook deliveries (unlike REST list
// responses, which sometimes trim it), and returns its id for the
// child processor's FK.
func (h *Handler) upsertRepo(ctx context.Context, repo *github.Repository, org *github.Organization, fetchedAt time.Time) (int64, error) {
	if repo == nil || repo.GetID() == 0 {
		return 0, &apierr.MissingDataError{Field: "repository", Payload: repo}
	}
	if _, err := process.ProcessRepository(ctx, h.DB, repo, org, process.Options{FetchedAt: fetchedAt, Via: freshness.ViaWebhook, Commit: true}); err != nil {
		var stale *apierr.StaleDataError
		if !errors.As(err, &stale) {
			return 0, err
		}
	}
	return repo.GetID(), nil
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

