package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// FetchOptions configures a single authenticated fetch.
type FetchOptions struct {
	// Method defaults to GET. HEAD disables redirects (see LastPage).
	Method string
	// Headers are added to the outbound request.
	Headers map[string]string
}

// Fetch performs a single authenticated REST call against path and
// decodes a 2xx JSON body into out (nil to discard the body, as HEAD
// calls do). Translates non-2xx responses onto the error taxonomy: 404
// becomes NotFoundError, any other non-success becomes UpstreamError, and a
// zero remaining rate-limit window (surfaced by the transport
// middleware) becomes RateLimitedError.
func (c *Client) Fetch(ctx context.Context, path string, opts FetchOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.gh.NewRequest(method, path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := c.httpClient
	if method == http.MethodHead {
		client = &http.Client{
			Transport: c.httpClient.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		var rl *apierr.RateLimitedError
		if errors.As(err, &rl) {
			return rl
		}
		return &apierr.UpstreamError{URL: path, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &apierr.NotFoundError{URL: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apierr.UpstreamError{StatusCode: resp.StatusCode, URL: path, Body: string(body)}
	}
	if out == nil || method == http.MethodHead {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
