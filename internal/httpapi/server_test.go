package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/scanner"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sched := jobs.New(true, 10)
	return New(db, nil, sched, nil, "")
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandleStatus_ReportsPendingAndActiveScans(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := body["active_scans"]; !ok {
		t.Fatalf("expected an active_scans field, got %v", body)
	}
}

// newTestServerWithUpstream wires a real Engine against a stub upstream
// so the load endpoints can be exercised end to end.
func newTestServerWithUpstream(t *testing.T, stub http.HandlerFunc) *Server {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	up, err := upstream.New(config.GitHubConfig{Token: "test-token", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("building upstream client: %v", err)
	}
	sched := jobs.New(true, 3)
	eng := &scanner.Engine{DB: db, Upstream: up, Scheduler: sched}
	return New(db, eng, sched, up, "")
}

// A synchronous (inline=true) load whose upstream 404s answers 404 to
// the caller.
func TestLoadEndpoint_InlineNotFound(t *testing.T) {
	s := newTestServerWithUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	req := httptest.NewRequest(http.MethodPost, "/repos/octocat/missing?inline=true", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an inline load of an unknown repo, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestLoadEndpoint_AsyncReturnsTaskLocation confirms the default
// (non-inline) contract: 202 with a Location header pointing at a
// pollable task-status resource.
func TestLoadEndpoint_AsyncReturnsTaskLocation(t *testing.T) {
	s := newTestServerWithUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 5, "name": "r", "owner": {"id": 9, "login": "o"}}`))
	})
	req := httptest.NewRequest(http.MethodPost, "/repos/o/r", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for an async load, got %d: %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if loc == "" {
		t.Fatal("expected a Location header pointing at the task-status endpoint")
	}

	statusReq := httptest.NewRequest(http.MethodGet, loc, nil)
	statusRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(statusRec, statusReq)

	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected the task-status endpoint to answer 200, got %d", statusRec.Code)
	}
	var status struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(statusRec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding task status: %v", err)
	}
	if status.State != "done" {
		t.Fatalf("an eager-scheduler task should have settled to done, got %q", status.State)
	}
}

// TestReplicationEndpoint_PingIsAccepted confirms the webhook route is
// wired through to the Handler and that a ping delivery (no signing
// secret configured) is accepted with 200.
func TestReplicationEndpoint_PingIsAccepted(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"zen":"Responsive is better than fast."}`)
	req := httptest.NewRequest(http.MethodPost, "/replication", body)
	req.Header.Set("X-Github-Event", "ping")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a ping delivery, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestReplicationEndpoint_MissingEventHeaderIsBadRequest confirms a
// malformed delivery (no event header) is rejected with 400 rather
// than panicking or falling through silently.
func TestReplicationEndpoint_MissingEventHeaderIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/replication", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a delivery with no event header, got %d", rec.Code)
	}
}
