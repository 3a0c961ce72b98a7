package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

// rateLimitEcho populates X-RateLimit-Limit/-Remaining/-Reset on every
// response from the most recently observed upstream window. We echo the
// upstream's declared limit rather than enforcing one of our own, since
// this process has no local rate budget to enforce.
func (s *Server) rateLimitEcho(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.upstream == nil {
			next.ServeHTTP(w, r)
			return
		}
		if limit, remaining, resetUnix, ok := s.upstream.LastRateLimit(); ok {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimited replies 503 with a human message and a Retry-After
// header carrying the wait-seconds — how an inline request surfaces an
// exhausted upstream window to its caller.
func writeRateLimited(w http.ResponseWriter, resetUnix int64) {
	wait := int(time.Until(time.Unix(resetUnix, 0)).Seconds())
	if wait < 0 {
		wait = 0
	}
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
	writeError(w, http.StatusServiceUnavailable, "rate limited, try again in "+strconv.Itoa(wait)+" seconds")
}
