package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

// A second spawn for a held scope returns without touching the
// upstream — fetch and finalize are never invoked, and the held mutex
// row survives.
func TestRun_SkipsWhenMutexAlreadyHeld(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := mutex.RepoScope("octocat", "Hello-World", "pulls")

	if err := mutex.Acquire(ctx, db, scope, nil); err != nil {
		t.Fatalf("seeding held mutex: %v", err)
	}

	e := &Engine{DB: db, Scheduler: jobs.New(true, 3)}
	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		t.Fatal("a skipped spawn must never fetch from the upstream")
		return 0, nil
	}
	finalize := func(ctx context.Context, startedAt time.Time) error {
		t.Fatal("a skipped spawn must never finalize")
		return nil
	}

	if err := e.Run(ctx, scope, "repos/octocat/Hello-World/pulls", 0, fetch, finalize); err != nil {
		t.Fatalf("a held mutex is a successful no-op, not an error: %v", err)
	}

	held, err := mutex.Held(ctx, db, scope)
	if err != nil || !held {
		t.Fatalf("the original holder's mutex must survive the skipped spawn: held=%v err=%v", held, err)
	}
}

func TestRunPageWithRetry_RetriesIntegrityErrors(t *testing.T) {
	attempts := 0
	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, &apierr.IntegrityError{Table: "users"}
		}
		return 1, nil
	}
	if err := runPageWithRetry(context.Background(), 1, 100, fetch); err != nil {
		t.Fatalf("expected the third attempt to succeed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunPageWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0
	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		attempts++
		return 0, &apierr.UpstreamError{StatusCode: 500, URL: "repos/o/r/pulls"}
	}
	if err := runPageWithRetry(context.Background(), 1, 100, fetch); err == nil {
		t.Fatal("a non-integrity error must propagate")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", attempts)
	}
}

// TestPullRequests_FullScanWithReaping walks the whole Spawn → FanOut →
// Finalize pipeline against a stub upstream: the repo holds PRs #1, #2,
// #3 from an earlier scan, the upstream now lists only #1 and #3. After
// the scan, #2 is reaped, the survivors carry a fresh api provenance,
// the parent's pull_requests_last_scanned_at is advanced, and the scope
// mutex is released.
func TestPullRequests_FullScanWithReaping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/Hello-World/pulls" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK) // no Link header: a single page
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 101, "number": 1, "state": "open", "title": "first"},
			{"id": 103, "number": 3, "state": "open", "title": "third"},
		})
	}))
	defer srv.Close()

	up, err := upstream.New(config.GitHubConfig{Token: "test-token", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("building upstream client: %v", err)
	}

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prevScan := t0.Add(time.Hour)
	repo := model.Repository{ID: 1, Name: "Hello-World", OwnerID: 583231, OwnerLogin: "octocat", PullRequestsLastScanned: &prevScan}
	if _, err := db.Insert(ctx, "repositories", repo); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}
	seedPullRequest(t, db, 1, 101, 1, t0)
	seedPullRequest(t, db, 1, 102, 2, t0)
	seedPullRequest(t, db, 1, 103, 3, t0)

	e := &Engine{DB: db, Upstream: up, Scheduler: jobs.New(true, 3)}
	if err := e.PullRequests(ctx, "octocat", "Hello-World", "open"); err != nil {
		t.Fatalf("PullRequests scan: %v", err)
	}

	remaining, err := model.PullRequestStore{DB: db}.ByRepo(ctx, 1)
	if err != nil {
		t.Fatalf("listing pull requests: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected #2 reaped and #1/#3 surviving, got %d rows", len(remaining))
	}
	for _, pr := range remaining {
		if pr.Number == 2 {
			t.Fatal("pull request #2 should have been reaped")
		}
		if pr.LastReplicatedViaAPIAt == nil || !pr.LastReplicatedViaAPIAt.After(prevScan) {
			t.Fatalf("expected #%d re-stamped via api after the previous scan, got %v", pr.Number, pr.LastReplicatedViaAPIAt)
		}
	}

	repoRow, err := model.RepositoryStore{DB: db}.Get(ctx, 1)
	if err != nil {
		t.Fatalf("loading repository: %v", err)
	}
	if repoRow.PullRequestsLastScanned == nil || !repoRow.PullRequestsLastScanned.After(prevScan) {
		t.Fatalf("expected pull_requests_last_scanned_at advanced past the previous scan, got %v", repoRow.PullRequestsLastScanned)
	}

	held, err := mutex.Held(ctx, db, mutex.RepoScope("octocat", "Hello-World", "pulls"))
	if err != nil {
		t.Fatalf("checking mutex: %v", err)
	}
	if held {
		t.Fatal("the scope mutex must be released by the finalizer")
	}
}
