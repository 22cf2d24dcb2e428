// Package graph implements a resilient, read-only client for the Facebook
// Graph API: request timeout, error classification (fatal / retryable /
// other), exponential backoff with jitter, a fixed post-success throttle,
// and cursor-pagination traversal.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"

	// DefaultVersion is the Graph API version used when none is configured.
	DefaultVersion = "v23.0"
)

// Default request policy. All values can be overridden through Config.
const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 6
	defaultBaseBackoff = 2 * time.Second
	defaultMaxBackoff  = 120 * time.Second
	defaultThrottle    = 250 * time.Millisecond
)

// Logger receives progress and warning messages. A nil Logger means silent
// operation.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	AccessToken string
	Version     string
	BaseURL     string

	// HTTPClient overrides the underlying transport; the configured Timeout
	// is applied to it either way.
	HTTPClient *http.Client

	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Throttle    time.Duration

	Logger Logger
}

// Client issues single logical GET requests against the Graph API. Every
// request carries a fixed timeout; failures are classified before deciding
// whether to retry, and every successful response is followed by a fixed
// throttle sleep so the steady-state request rate stays bounded even on the
// happy path.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	version     string
	accessToken string

	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	throttle    time.Duration

	logger Logger

	// sleep is swapped out by tests so retry and throttle behavior can be
	// observed without waiting.
	sleep func(time.Duration)
}

// NewClient creates a Graph API client from cfg, applying defaults for any
// zero values.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	} else if cfg.Throttle == 0 {
		cfg.Throttle = defaultThrottle
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL,
		version:     cfg.Version,
		accessToken: cfg.AccessToken,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		throttle:    cfg.Throttle,
		logger:      cfg.Logger,
		sleep:       time.Sleep,
	}
}

// Version returns the Graph API version the client was configured with.
func (c *Client) Version() string { return c.version }

// Endpoint joins path segments onto the versioned API base, e.g.
// Endpoint("12345", "posts") -> "https://graph.facebook.com/v23.0/12345/posts".
func (c *Client) Endpoint(segments ...string) string {
	u := c.baseURL + "/" + c.version
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

// Get performs a GET against rawURL with params (the access token is added
// automatically) and decodes the JSON response into out. Retryable failures
// are retried with exponential backoff up to the configured maximum, after
// which the last error is returned wrapped in an *ExhaustedError. Fatal and
// other Graph errors are returned on first sight as *APIError.
//
// rawURL may be a fully qualified paging.next URL, in which case params
// should be nil (the cursor URL already carries the query).
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.do(ctx, rawURL, params, out)
		if err == nil {
			// Fixed throttle after every successful response, independent
			// of retry backoff.
			c.sleep(c.throttle)
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindRetryable {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		delay := c.backoffDelay(attempt)
		c.warnf("attempt %d/%d for %s failed, retrying in %s: %v",
			attempt, c.maxRetries, redactURL(rawURL), delay.Round(time.Millisecond), err)
		c.sleep(delay)
	}

	return &ExhaustedError{
		Attempts: c.maxRetries,
		URL:      redactURL(rawURL),
		Last:     lastErr,
	}
}

// do executes a single attempt and classifies any failure.
func (c *Client) do(ctx context.Context, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("graph: build request for %s: %w", redactURL(rawURL), err)
	}

	if params != nil {
		query := req.URL.Query()
		for key, values := range params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		query.Set("access_token", c.accessToken)
		req.URL.RawQuery = query.Encode()
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Transport faults and client timeouts are transient.
		return &APIError{Kind: KindRetryable, Message: redactErr(err)}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &APIError{Kind: KindRetryable, Message: redactErr(err)}
	}

	// The error envelope takes precedence over the HTTP status: Graph
	// reports rate limiting both ways.
	var envelope errorEnvelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != nil {
		e := envelope.Error
		apiErr := &APIError{
			Code:       e.Code,
			Subcode:    e.Subcode,
			Type:       e.Type,
			Message:    e.Message,
			TraceID:    e.TraceID,
			HTTPStatus: res.StatusCode,
		}
		switch {
		case fatalCodes[e.Code]:
			apiErr.Kind = KindFatal
		case rateLimitCodes[e.Code]:
			apiErr.Kind = KindRetryable
		default:
			apiErr.Kind = KindOther
		}
		return apiErr
	}

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return &APIError{
			Kind:       KindRetryable,
			HTTPStatus: res.StatusCode,
			Message:    fmt.Sprintf("HTTP %d for %s", res.StatusCode, redactURL(rawURL)),
		}
	}
	if res.StatusCode != http.StatusOK {
		return &APIError{
			Kind:       KindOther,
			HTTPStatus: res.StatusCode,
			Message:    fmt.Sprintf("HTTP %d for %s", res.StatusCode, redactURL(rawURL)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		// A 200 with an undecodable body is a truncated or garbled
		// response; treat it like any other transient fault.
		return &APIError{Kind: KindRetryable, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// backoffDelay computes the sleep before retry number attempt (1-based):
// min(maxBackoff, baseBackoff * 2^(attempt-1)) plus jitter in [0, delay),
// capped again at maxBackoff. Without the cap the sequence is strictly
// increasing, since the jitter is always smaller than the next exponential
// step.
func (c *Client) backoffDelay(attempt int) time.Duration {
	exp := c.baseBackoff
	for i := 1; i < attempt; i++ {
		exp *= 2
		if exp >= c.maxBackoff || exp <= 0 {
			exp = c.maxBackoff
			break
		}
	}
	if exp > c.maxBackoff {
		exp = c.maxBackoff
	}

	delay := exp + time.Duration(rand.Float64()*float64(exp))
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

func (c *Client) warnf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Warnf(format, args...)
	}
}

// redactURL strips the access token from a URL before it is embedded in an
// error message or log line. paging.next cursors carry the token in their
// query string, so every URL shown to the user must pass through here.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparsable url>"
	}
	query := u.Query()
	if query.Has("access_token") {
		query.Set("access_token", "redacted")
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// redactErr renders a transport error without leaking the request URL's
// query string (net/http errors embed the full URL).
func redactErr(err error) string {
	if uerr, ok := err.(*url.Error); ok {
		return fmt.Sprintf("%s %s: %v", uerr.Op, redactURL(uerr.URL), uerr.Err)
	}
	return err.Error()
}
