// Package upstream wraps google/go-github with the rate-limit transparency,
// requestor-identity token selection, and page-count discovery the
// replication engine's Scanner and Processors depend on.
package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/webhookdb/webhookdb/internal/config"
)

// Client is the authenticated entry point to the upstream GitHub (or
// GitHub Enterprise) REST API. One Client is constructed per process;
// callers needing a different requestor identity use For to get a
// client scoped to that token, built with its own transport stack.
type Client struct {
	gh         *github.Client
	httpClient *http.Client
	limiter    *rateLimitTransport
	host       string
	baseURL    string
}

// New builds a Client from cfg.Token, layering the rate-limit transport
// (internal/upstream/transport.go) over a retryablehttp client so
// transient network failures are retried with backoff before any caller
// sees them.
func New(cfg config.GitHubConfig) (*Client, error) {
	return newWithToken(cfg.Host, cfg.BaseURL, cfg.Token)
}

func newWithToken(host, baseURL, token string) (*Client, error) {
	rt := retryablehttp.NewClient()
	rt.Logger = nil
	rt.RetryMax = 3
	httpClient := rt.StandardClient()

	limiter := &rateLimitTransport{
		next: &oauth2.Transport{
			Base:   httpClient.Transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}
	httpClient.Transport = limiter

	gh := github.NewClient(httpClient)
	switch {
	case baseURL != "":
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
		}
		gh.BaseURL = u
	case host != "" && host != "github.com":
		apiURL := fmt.Sprintf("https://%s/api/v3/", host)
		uploadURL := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, uploadURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URLs: %w", err)
		}
	}
	return &Client{gh: gh, httpClient: httpClient, limiter: limiter, host: host, baseURL: baseURL}, nil
}

// For returns a Client authenticated as a different requestor (an
// installation or user token), used when a job runs outside an inbound
// request context and must reach upstream under a specific identity's
// credentials rather than the process-wide default token.
func (c *Client) For(token string) (*Client, error) {
	return newWithToken(c.host, c.baseURL, token)
}

// GH exposes the underlying go-github client for call sites (Processors,
// Scanner page workers) that need a typed REST method beyond what this
// package wraps directly.
func (c *Client) GH() *github.Client { return c.gh }

// LastRateLimit reports the most recently observed rate-limit window, as
// seen by the transport middleware on the previous response. Used to
// populate the X-RateLimit-* echo headers on load-endpoint responses.
func (c *Client) LastRateLimit() (limit, remaining int, resetUnix int64, ok bool) {
	return c.limiter.last()
}
