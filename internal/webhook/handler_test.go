package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/scanner"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

func newTestDB(t *testing.T) database.DB {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newIssuesEvent() *github.IssuesEvent {
	return &github.IssuesEvent{
		Action: github.String("opened"),
		Repo: &github.Repository{
			ID:    github.Int64(1296269),
			Name:  github.String("Hello-World"),
			Owner: &github.User{ID: github.Int64(583231), Login: github.String("octocat")},
		},
		Issue: &github.Issue{
			ID:     github.Int64(1),
			Number: github.Int(1347),
			Title:  github.String("Found a bug"),
			State:  github.String("open"),
			User:   &github.User{ID: github.Int64(1), Login: github.String("reporter")},
		},
	}
}

// A webhook for a brand new entity leaves rows for every entity it
// references — here the issue, its repository, and both users.
func TestDispatch_NewIssueWebhookCreatesReferencedRows(t *testing.T) {
	db := newTestDB(t)
	h := &Handler{DB: db}
	ctx := context.Background()

	if err := h.dispatch(ctx, newIssuesEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	repo, err := model.RepositoryStore{DB: db}.Get(ctx, 1296269)
	if err != nil || repo == nil {
		t.Fatalf("expected the referenced repository to exist, got %v, err=%v", repo, err)
	}
	owner, err := model.UserStore{DB: db}.Get(ctx, 583231)
	if err != nil || owner == nil {
		t.Fatalf("expected the repository owner to exist, got %v, err=%v", owner, err)
	}
	reporter, err := model.UserStore{DB: db}.Get(ctx, 1)
	if err != nil || reporter == nil {
		t.Fatalf("expected the issue's reporting user to exist, got %v, err=%v", reporter, err)
	}
	issue, err := model.IssueStore{DB: db}.Get(ctx, 1)
	if err != nil || issue == nil {
		t.Fatalf("expected the issue row to exist, got %v, err=%v", issue, err)
	}
	if issue.Title != "Found a bug" || issue.Number != 1347 {
		t.Fatalf("unexpected issue row: %+v", issue)
	}
}

// GitHub's at-least-once delivery means the same payload can arrive
// twice; the second dispatch must not error out loudly, and the issue
// row keeps its identity.
func TestDispatch_DuplicateDeliveryIsANoOp(t *testing.T) {
	db := newTestDB(t)
	h := &Handler{DB: db}
	ctx := context.Background()

	ev := newIssuesEvent()
	if err := h.dispatch(ctx, ev); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	before, err := model.IssueStore{DB: db}.Get(ctx, 1)
	if err != nil || before == nil {
		t.Fatalf("expected the issue to exist after the first delivery: %v", err)
	}

	// A redelivery of the exact same event races ahead of the clock:
	// dispatch stamps fetchedAt as time.Now() at call time, so a second
	// call milliseconds later still carries a strictly later fetchedAt
	// and is accepted — the documented idempotent case is the *identical*
	// fetchedAt, which the freshness clock unit tests already cover, so
	// this exercises the practical delivery-replay path instead: the
	// handler must not fail or duplicate the issue row either way.
	if err := h.dispatch(ctx, ev); err != nil {
		t.Fatalf("redelivered event should not error: %v", err)
	}

	after, err := model.IssueStore{DB: db}.Get(ctx, 1)
	if err != nil || after == nil {
		t.Fatalf("expected exactly one issue row to remain: %v", err)
	}
	if after.ID != before.ID || after.RepoID != before.RepoID {
		t.Fatalf("redelivery must not change the issue's identity: before=%+v after=%+v", before, after)
	}
}

// TestDispatch_NewPullRequestWebhook covers the brand-new-PR delivery:
// a pull_request event referencing two previously-unseen users and two
// previously-unseen repositories (base and head fork) leaves two user
// rows, two repository rows, and one pull request with webhook-channel
// provenance only. The PR reports few changed files, so the file set is
// replaced inline from the stub upstream — including silently skipping
// a renamed entry that carries no sha.
func TestDispatch_NewPullRequestWebhook(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/Hello-World/pulls/1/files" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"sha": "abc123", "filename": "README.md", "status": "modified", "additions": 1, "deletions": 0, "changes": 1},
			{"filename": "moved.go", "status": "renamed"}, // no sha: skipped
		})
	}))
	defer srv.Close()

	up, err := upstream.New(config.GitHubConfig{Token: "test-token", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("building upstream client: %v", err)
	}
	eng := &scanner.Engine{DB: db, Upstream: up, Scheduler: jobs.New(true, 3)}
	h := &Handler{DB: db, Scanner: eng, Scheduler: jobs.New(true, 3)}

	baseRepo := &github.Repository{
		ID:    github.Int64(1296269),
		Name:  github.String("Hello-World"),
		Owner: &github.User{ID: github.Int64(583231), Login: github.String("octocat")},
	}
	headRepo := &github.Repository{
		ID:    github.Int64(1724195),
		Name:  github.String("Hello-World"),
		Owner: &github.User{ID: github.Int64(777449), Login: github.String("unoju")},
	}
	ev := &github.PullRequestEvent{
		Action: github.String("opened"),
		Number: github.Int(1),
		Repo:   baseRepo,
		PullRequest: &github.PullRequest{
			ID:           github.Int64(140900),
			Number:       github.Int(1),
			State:        github.String("open"),
			Title:        github.String("Amazing new feature"),
			Body:         github.String("Please pull these awesome changes"),
			User:         &github.User{ID: github.Int64(777449), Login: github.String("unoju")},
			Base:         &github.PullRequestBranch{Ref: github.String("master"), Repo: baseRepo},
			Head:         &github.PullRequestBranch{Ref: github.String("new-topic"), Repo: headRepo},
			ChangedFiles: github.Int(2),
		},
	}

	if err := h.dispatch(ctx, ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, userID := range []int64{583231, 777449} {
		u, err := model.UserStore{DB: db}.Get(ctx, userID)
		if err != nil || u == nil {
			t.Fatalf("expected user %d to exist: %v", userID, err)
		}
	}
	for _, repoID := range []int64{1296269, 1724195} {
		r, err := model.RepositoryStore{DB: db}.Get(ctx, repoID)
		if err != nil || r == nil {
			t.Fatalf("expected repository %d to exist: %v", repoID, err)
		}
	}

	pr, err := model.PullRequestStore{DB: db}.Get(ctx, 140900)
	if err != nil || pr == nil {
		t.Fatalf("expected the pull request row to exist: %v", err)
	}
	if pr.Title != "Amazing new feature" || pr.Body != "Please pull these awesome changes" {
		t.Fatalf("unexpected pull request content: %+v", pr)
	}
	if pr.LastReplicatedViaWebhookAt == nil {
		t.Fatal("expected webhook provenance to be stamped")
	}
	if pr.LastReplicatedViaAPIAt != nil {
		t.Fatalf("a webhook delivery must not stamp api provenance, got %v", pr.LastReplicatedViaAPIAt)
	}

	files, err := model.PullRequestFileStore{DB: db}.ByPullRequest(ctx, 140900)
	if err != nil {
		t.Fatalf("listing pull request files: %v", err)
	}
	if len(files) != 1 || files[0].SHA != "abc123" {
		t.Fatalf("expected exactly the sha-bearing file to be stored, got %+v", files)
	}
}

// TestDispatch_PingEventIsANoOp confirms the ping event (sent when a
// hook is first configured) short-circuits without touching the DB.
func TestDispatch_PingEventIsANoOp(t *testing.T) {
	db := newTestDB(t)
	h := &Handler{DB: db}
	if err := h.dispatch(context.Background(), &github.PingEvent{}); err != nil {
		t.Fatalf("ping event should always succeed: %v", err)
	}
}

// TestDispatch_UnhandledEventTypeIsNothingToDo confirms an event type
// with no case in the switch is a recovered no-op, not an error.
func TestDispatch_UnhandledEventTypeIsNothingToDo(t *testing.T) {
	db := newTestDB(t)
	h := &Handler{DB: db}
	err := h.dispatch(context.Background(), &github.StarEvent{})
	if err == nil {
		t.Fatal("expected a NothingToDo error for an unhandled event type")
	}
}

// TestDispatch_RepositoryEventUpsertsOwner exercises the standalone
// RepositoryEvent path (repo created/renamed/transferred) separately
// from the child-entity events above.
func TestDispatch_RepositoryEventUpsertsOwner(t *testing.T) {
	db := newTestDB(t)
	h := &Handler{DB: db}
	ctx := context.Background()

	ev := &github.RepositoryEvent{
		Action: github.String("created"),
		Repo: &github.Repository{
			ID:    github.Int64(2),
			Name:  github.String("new-repo"),
			Owner: &github.User{ID: github.Int64(10), Login: github.String("someone")},
		},
	}
	if err := h.dispatch(ctx, ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	repo, err := model.RepositoryStore{DB: db}.Get(ctx, 2)
	if err != nil || repo == nil {
		t.Fatalf("expected the repository row to exist: %v", err)
	}
	if repo.OwnerID != 10 || repo.OwnerLogin != "someone" {
		t.Fatalf("unexpected owner FK: %+v", repo)
	}
}
