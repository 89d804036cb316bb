package gitlab

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/paulbellamy/ratecounter"
	log "github.com/sirupsen/logrus"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/gitlab-promoter/pkg/ratelimit"
)

const (
	userAgent  = "gitlab-promoter"
	tracerName = "gitlab-promoter"
)

// Client is a wrapper around the official go-gitlab client,
// adding support for rate limiting, request counting, readiness checks,
// and GitLab version tracking with concurrency safety.
type Client struct {
	*goGitlab.Client // Embedded GitLab API client

	// Readiness contains configuration to check if the GitLab instance
	// is responsive and healthy via an HTTP endpoint.
	Readiness struct {
		URL        string       // URL for readiness checks
		HTTPClient *http.Client // HTTP client used to perform readiness requests
	}

	RateLimiter       ratelimit.Limiter        // RateLimiter controls the rate of API requests to avoid hitting GitLab rate limits.
	RateCounter       *ratecounter.RateCounter // RateCounter tracks the number of requests over time for monitoring.
	RequestsCounter   atomic.Uint64            // RequestsCounter is an atomic counter for total requests sent.
	RequestsLimit     int                      // RequestsLimit is the maximum allowed number of requests within a certain period.
	RequestsRemaining int                      // RequestsRemaining tracks how many requests can still be sent before hitting the limit.
	version           GitLabVersion            // version stores the detected GitLab API version to enable version-aware behavior.
	mutex             sync.RWMutex             // mutex protects concurrent access to mutable shared fields.
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	URL              string            // Base URL of the GitLab instance
	Token            string            // API token for authentication
	UserAgentVersion string            // User agent string for client identification
	DisableTLSVerify bool              // Whether to skip TLS verification (e.g., for self-signed certs)
	ReadinessURL     string            // URL used for readiness checks
	RateLimiter      ratelimit.Limiter // Rate limiter implementation
}

// NewHTTPClient creates an HTTP client with optional TLS verification disabling.
// It clones the default transport to preserve proxy settings and other defaults.
func NewHTTPClient(disableTLSVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: disableTLSVerify}

	return &http.Client{
		Transport: transport,
	}
}

// NewClient creates and returns a new Client instance configured with
// the provided ClientConfig. It initializes the underlying GitLab client,
// sets up the HTTP clients, readiness check, rate limiting, and request counting.
func NewClient(cfg ClientConfig) (*Client, error) {
	opts := []goGitlab.ClientOptionFunc{
		goGitlab.WithHTTPClient(NewHTTPClient(cfg.DisableTLSVerify)),
		goGitlab.WithBaseURL(cfg.URL),
		// Disable automatic retries: an orchestration run must surface
		// external flakiness instead of silently retrying around it.
		goGitlab.WithoutRetries(),
	}

	gc, err := goGitlab.NewOAuthClient(cfg.Token, opts...)
	if err != nil {
		return nil, err
	}

	gc.UserAgent = fmt.Sprintf("%s-%s", userAgent, cfg.UserAgentVersion)

	// Dedicated readiness HTTP client with a short timeout: a preflight that
	// hangs is as useless as one that fails.
	readinessCheckHTTPClient := NewHTTPClient(cfg.DisableTLSVerify)
	readinessCheckHTTPClient.Timeout = 5 * time.Second

	return &Client{
		Client:      gc,
		RateLimiter: cfg.RateLimiter,
		Readiness: struct {
			URL        string
			HTTPClient *http.Client
		}{
			URL:        cfg.ReadinessURL,
			HTTPClient: readinessCheckHTTPClient,
		},
		RateCounter: ratecounter.NewRateCounter(time.Second),
	}, nil
}

// ReadinessCheck returns a healthcheck.Check function that performs
// an HTTP GET request to the configured readiness URL to verify if
// the GitLab instance is ready to accept requests.
func (c *Client) ReadinessCheck(ctx context.Context) healthcheck.Check {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:ReadinessCheck")
	defer span.End()

	return func() error {
		if c.Readiness.HTTPClient == nil {
			return fmt.Errorf("readiness http client not configured")
		}

		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.Readiness.URL,
			nil,
		)
		if err != nil {
			return err
		}

		resp, err := c.Readiness.HTTPClient.Do(req)
		if err != nil {
			return err
		}

		if resp == nil {
			return fmt.Errorf("HTTP error: empty response")
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}

		return nil
	}
}

// rateLimit blocks until a token is available from the configured RateLimiter
// and increments the internal request counters.
func (c *Client) rateLimit(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gitlab:rateLimit")
	defer span.End()

	ratelimit.Take(ctx, c.RateLimiter)

	c.RateCounter.Incr(1)
	c.RequestsCounter.Add(1)
}

// UpdateVersion safely updates the GitLab version stored in the client.
func (c *Client) UpdateVersion(version GitLabVersion) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.version = version
}

// Version safely returns the current GitLab version stored in the client.
func (c *Client) Version() GitLabVersion {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.version
}

// APIUsage reports the request telemetry accumulated over the run: how many
// API calls were issued, the observed request rate and what the instance says
// is left of its rate-limit quota.
func (c *Client) APIUsage() log.Fields {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return log.Fields{
		"gitlab-api-requests":        c.RequestsCounter.Load(),
		"gitlab-api-rate":            c.RateCounter.Rate(),
		"gitlab-api-limit":           c.RequestsLimit,
		"gitlab-api-limit-remaining": c.RequestsRemaining,
	}
}

// requestsRemaining parses rate limit headers from the GitLab API response
// and updates the client's fields to track remaining requests and limit.
func (c *Client) requestsRemaining(response *goGitlab.Response) {
	if response == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if remaining := response.Header.Get("ratelimit-remaining"); remaining != "" {
		c.RequestsRemaining, _ = strconv.Atoi(remaining)
	}

	if limit := response.Header.Get("ratelimit-limit"); limit != "" {
		c.RequestsLimit, _ = strconv.Atoi(limit)
	}
}
