package upstream

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// rateLimitTransport inspects every response's X-RateLimit-* headers and
// fails synchronously with apierr.RateLimitedError when the window is
// exhausted. Doing this once in a http.RoundTripper middleware keeps
// every call site simple: no caller ever has to remember to check the
// headers itself.
type rateLimitTransport struct {
	next http.RoundTripper

	mu        sync.Mutex
	limit     int
	remaining int
	reset     int64
	seen      bool
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	limit := atoiOr(resp.Header.Get("X-RateLimit-Limit"), -1)
	remaining := atoiOr(resp.Header.Get("X-RateLimit-Remaining"), -1)
	reset := atoi64Or(resp.Header.Get("X-RateLimit-Reset"), -1)

	if remaining >= 0 {
		t.mu.Lock()
		t.limit, t.remaining, t.reset, t.seen = limit, remaining, reset, true
		t.mu.Unlock()
	}

	if remaining == 0 {
		resp.Body.Close()
		return nil, &apierr.RateLimitedError{
			Limit:     limit,
			Remaining: remaining,
			Reset:     time.Unix(reset, 0),
		}
	}
	return resp, nil
}

func (t *rateLimitTransport) last() (limit, remaining int, resetUnix int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit, t.remaining, t.reset, t.seen
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atoi64Or(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
