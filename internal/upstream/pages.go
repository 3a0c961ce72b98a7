package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// LastPage issues a HEAD request against path (redirects disabled) and
// parses the Link: rel="last" header to discover how many pages a
// listing spans. Absent or malformed Link headers yield page 1, never
// less, so a scan always fans out at least one page worker.
func (c *Client) LastPage(ctx context.Context, path string) (int, error) {
	noRedirect := &http.Client{
		Transport: c.httpClient.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := c.gh.NewRequest(http.MethodHead, path, nil)
	if err != nil {
		return 0, fmt.Errorf("building HEAD request for %s: %w", path, err)
	}

	resp, err := noRedirect.Do(req.WithContext(ctx))
	if err != nil {
		return 0, translate(path, err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, &apierr.NotFoundError{URL: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &apierr.UpstreamError{StatusCode: resp.StatusCode, URL: path}
	}

	n := lastPageFromLinkHeader(resp.Header.Get("Link"))
	if n < 1 {
		return 1, nil
	}
	return n, nil
}

var linkRelLastRe = regexp.MustCompile(`<[^>]*[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// lastPageFromLinkHeader extracts the page number from a rel="last" Link
// header entry. Returns 0 when absent or malformed so callers apply the
// "default to 1" tie-break themselves.
func lastPageFromLinkHeader(link string) int {
	m := linkRelLastRe.FindStringSubmatch(link)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// translate converts a raw transport error into the taxonomy's
// RateLimited case when the underlying cause is one (http.Client wraps
// RoundTrip failures in *url.Error, so unwrap), otherwise wraps it as
// an UpstreamError.
func translate(path string, err error, statusCode int) error {
	var rl *apierr.RateLimitedError
	if errors.As(err, &rl) {
		return rl
	}
	return &apierr.UpstreamError{StatusCode: statusCode, URL: path, Body: err.Error()}
}
