package scanner

import (
	"errors"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// translateGitHubErr maps an error returned directly by a go-github
// typed service call (as opposed to internal/upstream.Fetch, which
// does its own translation) onto the error taxonomy. Rate-limit errors
// raised by the rateLimitTransport middleware survive as-is through
// go-github's response handling; only the 404 case needs unwrapping
// here since go-github represents it as *github.ErrorResponse rather
// than a bare status code.
func translateGitHubErr(url string, err error) error {
	if err == nil {
		return nil
	}
	var rl *apierr.RateLimitedError
	if errors.As(err, &rl) {
		return rl
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == 404 {
		return &apierr.NotFoundError{URL: url}
	}
	status := 0
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}
	return &apierr.UpstreamError{StatusCode: status, URL: url, Body: err.Error()}
}

// isScanStale reports whether err is a StaleDataError — recovered
// locally by a page worker, never aborting the rest of the page.
func isScanStale(err error) bool {
	var stale *apierr.StaleDataError
	return errors.As(err, &stale)
}

// isScanSkip reports whether err is a NothingToDoError.
func isScanSkip(err error) bool {
	var skip *apierr.NothingToDoError
	return errors.As(err, &skip)
}
