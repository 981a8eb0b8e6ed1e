package sec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/edgarkpi/internal/infra"
)

// Client defaults.
const (
	DefaultThrottle      = 350 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 6
	DefaultBackoffFactor = 0.7

	maxBackoff   = 2 * time.Minute
	maxBodyBytes = 64 << 20
	errBodyBytes = 250
)

// retryStatus are the HTTP statuses worth retrying.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options configures a Client.
type Options struct {
	UserAgent     string
	Throttle      time.Duration // minimum spacing between requests
	Timeout       time.Duration // per request
	MaxRetries    int
	BackoffFactor float64 // seconds; the n-th retry waits factor * 2^(n-1)
	HTTPClient    *http.Client
}

// Client performs throttled GET requests against SEC EDGAR, retrying
// transient failures with exponential backoff.
type Client struct {
	http       *http.Client
	userAgent  string
	limiter    *infra.RateLimiter
	maxRetries int
	backoff    float64
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. Zero-valued options take the package defaults.
func NewClient(opts Options) (*Client, error) {
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		return nil, ErrMissingUserAgent
	}
	if opts.Throttle < 0 {
		opts.Throttle = 0
	} else if opts.Throttle == 0 {
		opts.Throttle = DefaultThrottle
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = DefaultBackoffFactor
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		http:       hc,
		userAgent:  ua,
		limiter:    infra.NewRateLimiter(opts.Throttle),
		maxRetries: opts.MaxRetries,
		backoff:    opts.BackoffFactor,
		sleep:      sleepCtx,
	}, nil
}

// UserAgent returns the User-Agent sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// GetJSON fetches a JSON document.
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	return c.Get(ctx, rawURL, "application/json")
}

// Get fetches rawURL and returns the response body. Statuses 429 and 5xx
// and transport errors are retried; the final failure is an *ErrHTTP for
// HTTP errors.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	endpoint := endpointLabel(rawURL)
	log := zerolog.Ctx(ctx).With().Str("endpoint", endpoint).Logger()
	start := time.Now()
	defer func() {
		infra.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := c.backoffFor(attempt, lastErr)
			infra.UpstreamRetries.WithLabelValues(endpoint).Inc()
			log.Debug().Err(lastErr).Int("attempt", attempt).Dur("wait", wait).Msg("retrying SEC request")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.do(ctx, rawURL, accept, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) || attempt >= c.maxRetries {
			log.Warn().Err(err).Int("attempts", attempt+1).Msg("SEC request failed")
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL, accept, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		infra.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, &transportError{err: fmt.Errorf("HTTP GET %s: %w", rawURL, err)}
	}
	defer resp.Body.Close()
	infra.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyBytes))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
			URL:        rawURL,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read SEC response: %w", err)}
	}
	return body, nil
}

// backoffFor returns the wait before the given retry: the server's
// Retry-After when it sent one, otherwise factor * 2^(attempt-1) seconds.
func (c *Client) backoffFor(attempt int, lastErr error) time.Duration {
	var he *ErrHTTP
	if errors.As(lastErr, &he) && he.RetryAfter > 0 {
		return min(he.RetryAfter, maxBackoff)
	}
	secs := c.backoff * math.Pow(2, float64(attempt-1))
	d := time.Duration(secs * float64(time.Second))
	return min(d, maxBackoff)
}

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var he *ErrHTTP
	return errors.As(err, &he) && retryStatus[he.StatusCode]
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// endpointLabel collapses a URL to a low-cardinality metrics label.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	switch {
	case strings.HasPrefix(u.Path, "/files/company_tickers"):
		return "tickers"
	case strings.HasPrefix(u.Path, "/submissions/"):
		return "submissions"
	case strings.HasPrefix(u.Path, "/api/xbrl/companyfacts/"):
		return "companyfacts"
	case strings.HasPrefix(u.Path, "/cgi-bin/browse-edgar"):
		return "feed"
	case strings.HasPrefix(u.Path, "/Archives/"):
		return "archives"
	default:
		return "other"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
