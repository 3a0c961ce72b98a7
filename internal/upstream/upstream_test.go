package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/config"
)

type stubRoundTripper struct {
	headers http.Header
	status  int
}

func (s stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Header:     s.headers,
		Body:       http.NoBody,
		Request:    req,
	}, nil
}

// A response with X-RateLimit-Remaining: 0 fails the round trip with a
// RateLimitedError carrying the declared reset, so call sites never see
// a half-usable response.
func TestRateLimitTransport_RaisesWhenWindowExhausted(t *testing.T) {
	reset := time.Now().Add(60 * time.Second).Unix()
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "5000")
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

	tr := &rateLimitTransport{next: stubRoundTripper{headers: h, status: http.StatusForbidden}}
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/rate_limit", nil)

	_, err := tr.RoundTrip(req)
	var rl *apierr.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *apierr.RateLimitedError, got %T: %v", err, err)
	}
	if rl.Reset.Unix() != reset {
		t.Fatalf("expected reset %d, got %d", reset, rl.Reset.Unix())
	}
}

func TestRateLimitTransport_RecordsLastObservedWindow(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "5000")
	h.Set("X-RateLimit-Remaining", "4998")
	h.Set("X-RateLimit-Reset", "1767225600")

	tr := &rateLimitTransport{next: stubRoundTripper{headers: h, status: http.StatusOK}}
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/user", nil)

	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("a response with remaining budget must pass through: %v", err)
	}
	limit, remaining, resetUnix, ok := tr.last()
	if !ok || limit != 5000 || remaining != 4998 || resetUnix != 1767225600 {
		t.Fatalf("unexpected recorded window: %d/%d/%d ok=%v", limit, remaining, resetUnix, ok)
	}
}

func TestLastPageFromLinkHeader(t *testing.T) {
	cases := []struct {
		link string
		want int
	}{
		{`<https://api.github.com/repos/o/r/pulls?page=2>; rel="next", <https://api.github.com/repos/o/r/pulls?page=14>; rel="last"`, 14},
		{`<https://api.github.com/repos/o/r/pulls?state=open&page=3>; rel="last"`, 3},
		{"", 0},
		{`<https://api.github.com/repos/o/r/pulls?page=2>; rel="next"`, 0},
		{"not a link header", 0},
	}
	for _, c := range cases {
		if got := lastPageFromLinkHeader(c.link); got != c.want {
			t.Errorf("lastPageFromLinkHeader(%q) = %d, want %d", c.link, got, c.want)
		}
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(config.GitHubConfig{Token: "test-token", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("building upstream client: %v", err)
	}
	return c
}

// TestLastPage_DefaultsToOneWithoutLinkHeader covers the Scanner's "N
// must be ≥1" tie-break: a HEAD response with no Link header means a
// single page, never zero.
func TestLastPage_DefaultsToOneWithoutLinkHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected a HEAD request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv).LastPage(context.Background(), "repos/o/r/pulls")
	if err != nil {
		t.Fatalf("LastPage: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 page when Link is absent, got %d", n)
	}
}

func TestLastPage_ReadsLinkHeader(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/pulls?page=2>; rel="next", <%s/repos/o/r/pulls?page=7>; rel="last"`, srv.URL, srv.URL))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv).LastPage(context.Background(), "repos/o/r/pulls")
	if err != nil {
		t.Fatalf("LastPage: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 pages, got %d", n)
	}
}

func TestLastPage_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).LastPage(context.Background(), "repos/o/missing")
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *apierr.NotFoundError, got %T: %v", err, err)
	}
}
