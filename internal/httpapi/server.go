package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/scanner"
	"github.com/webhookdb/webhookdb/internal/upstream"
	"github.com/webhookdb/webhookdb/internal/webhook"
)

// Server wires the scanner engine, scheduler, and webhook intake onto
// an http.Handler.
type Server struct {
	DB        database.DB
	Engine    *scanner.Engine
	Scheduler *jobs.Scheduler
	Webhook   *webhook.Handler
	upstream  *upstream.Client
	startedAt time.Time
	tasks     *taskRegistry
}

// New builds a Server. webhookSecret may be empty to disable signature
// verification (local/dev use only).
func New(db database.DB, eng *scanner.Engine, sched *jobs.Scheduler, up *upstream.Client, webhookSecret string) *Server {
	s := &Server{
		DB:        db,
		Engine:    eng,
		Scheduler: sched,
		upstream:  up,
		startedAt: time.Now().UTC(),
		tasks:     newTaskRegistry(),
	}
	s.Webhook = &webhook.Handler{DB: db, Scanner: eng, Scheduler: sched, Secret: []byte(webhookSecret)}
	return s
}

// Handler builds the complete routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)

	mux.Handle("POST /replication", s.Webhook)
	for _, event := range []string{"ping", "push", "issues", "pull_request", "repository", "milestone", "label"} {
		mux.Handle("POST /replication/"+event, s.Webhook)
	}

	mux.HandleFunc("POST /repos/{owner}/{repo}", s.handleRepo)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", s.handlePulls)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls/{number}", s.handlePull)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls/{number}/files", s.handlePullFiles)
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", s.handleIssues)
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues/{number}", s.handleIssue)
	mux.HandleFunc("POST /repos/{owner}/{repo}/labels", s.handleLabels)
	mux.HandleFunc("POST /repos/{owner}/{repo}/labels/{name}", s.handleLabel)
	mux.HandleFunc("POST /repos/{owner}/{repo}/milestones", s.handleMilestones)
	mux.HandleFunc("POST /repos/{owner}/{repo}/milestones/{number}", s.handleMilestone)
	mux.HandleFunc("POST /repos/{owner}/{repo}/hooks", s.handleHooks)
	mux.HandleFunc("POST /repos/{owner}/{repo}/hooks/{hook_id}", s.handleHook)
	mux.HandleFunc("POST /user/repos", s.handleAuthenticatedUserRepos)
	mux.HandleFunc("POST /user/{username}/repos", s.handleUserRepos)

	return s.rateLimitEcho(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRow struct {
	N int `db:"n"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var held statusRow
	_ = s.DB.Get(r.Context(), &held, `SELECT COUNT(*) AS n FROM mutexes`)
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"pending_jobs":   s.Scheduler.Pending(),
		"active_scans":   held.N,
	})
}

// runLoad implements the inline/async dispatch every load endpoint
// shares: inline=true runs fn synchronously and maps
// its outcome straight onto the response; otherwise fn is handed to the
// Scheduler and the caller gets 202 with a Location pointing at the
// task-status endpoint.
func (s *Server) runLoad(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context) error) {
	inline := r.URL.Query().Get("inline") == "true"
	if inline {
		if err := fn(r.Context()); err != nil {
			s.writeLoadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	t := s.tasks.new()
	wrapped := jobs.Func{Name: name, Fn: func(ctx context.Context) error {
		err := fn(ctx)
		s.tasks.settle(t.ID, err)
		return err
	}}
	if err := s.Scheduler.Enqueue(r.Context(), wrapped); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%s", t.ID))
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": t.ID})
}

func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	var nf *apierr.NotFoundError
	if errors.As(err, &nf) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var rl *apierr.RateLimitedError
	if errors.As(err, &rl) {
		writeRateLimited(w, rl.Reset.Unix())
		return
	}
	// Recovered-locally kinds are a successful no-op to the caller.
	var stale *apierr.StaleDataError
	if errors.As(err, &stale) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "stale data"})
		return
	}
	var skip *apierr.NothingToDoError
	if errors.As(err, &skip) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "nothing to do"})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// cascadeAfter runs the repository child cascade once the primary load
// completes, when the caller asked for children=true. The pull-request
// cascade is run by handlePull itself.
func (s *Server) cascadeAfter(r *http.Request, owner, repo string) {
	if r.URL.Query().Get("children") != "true" {
		return
	}
	_ = s.Engine.RepositoryCascade(context.Background(), owner, repo)
}
