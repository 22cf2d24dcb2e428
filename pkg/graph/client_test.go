package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "EAAB-secret-token-do-not-log"

// newTestClient wires a client against srv with an instant fake sleep that
// records every requested delay.
func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) (*Client, *[]time.Duration) {
	t.Helper()

	cfg.BaseURL = srv.URL
	if cfg.AccessToken == "" {
		cfg.AccessToken = testToken
	}
	c := NewClient(cfg)

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func graphError(code int, message string) string {
	return fmt.Sprintf(`{"error":{"message":%q,"type":"OAuthException","code":%d,"fbtrace_id":"AbCdEf"}}`, message, code)
}

func TestGetSuccessThrottles(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"name":"Test Page"}`)
	}))
	defer srv.Close()

	throttle := 250 * time.Millisecond
	c, slept := newTestClient(t, srv, Config{Throttle: throttle})

	var out struct {
		Name string `json:"name"`
	}
	err := c.Get(context.Background(), c.Endpoint("123"), url.Values{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Test Page", out.Name)
	assert.Equal(t, 1, calls)

	// Exactly one sleep: the post-success throttle, never a backoff.
	require.Len(t, *slept, 1)
	assert.Equal(t, throttle, (*slept)[0])
}

func TestGetFatalErrorNoRetry(t *testing.T) {
	for _, code := range []int{10, 190, 200} {
		t.Run(fmt.Sprintf("code_%d", code), func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, graphError(code, "Invalid OAuth access token."))
			}))
			defer srv.Close()

			c, slept := newTestClient(t, srv, Config{MaxRetries: 5})

			err := c.Get(context.Background(), c.Endpoint("123"), url.Values{}, nil)
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, KindFatal, apiErr.Kind)
			assert.Equal(t, code, apiErr.Code)
			assert.True(t, IsFatal(err))

			assert.Equal(t, 1, calls, "fatal errors must not be retried")
			assert.Empty(t, *slept)
		})
	}
}

func TestGetOtherErrorNoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, graphError(100, "Unsupported get request."))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, Config{MaxRetries: 5})

	err := c.Get(context.Background(), c.Endpoint("123"), url.Values{}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindOther, apiErr.Kind)
	assert.Equal(t, 100, apiErr.Code)
	assert.False(t, IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestGetRateLimitRetriesUntilExhausted(t *testing.T) {
	const maxRetries = 4

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, graphError(4, "Application request limit reached"))
	}))
	defer srv.Close()

	base := 2 * time.Second
	max := 10 * time.Second
	c, slept := newTestClient(t, srv, Config{
		MaxRetries:  maxRetries,
		BaseBackoff: base,
		MaxBackoff:  max,
	})

	err := c.Get(context.Background(), c.Endpoint("123"), url.Values{}, nil)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, maxRetries, exhausted.Attempts)
	assert.Equal(t, 4, ErrorCode(err), "the last classified error stays reachable through the chain")

	assert.Equal(t, maxRetries, calls)

	// maxRetries-1 backoff sleeps, each within its exponential window and
	// never above the cap, and non-decreasing until the cap is reached.
	require.Len(t, *slept, maxRetries-1)
	for i, d := range *slept {
		exp := base << i
		if exp > max {
			exp = max
		}
		assert.GreaterOrEqual(t, d, exp, "delay %d below its exponential floor", i)
		assert.LessOrEqual(t, d, max, "delay %d above the cap", i)
	}
}

func TestGetRetryableStatusThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			fmt.Fprint(w, `{"id":"123"}`)
		}
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv, Config{MaxRetries: 5})

	var out struct {
		ID string `json:"id"`
	}
	err := c.Get(context.Background(), c.Endpoint("123"), url.Values{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "123", out.ID)
	assert.Equal(t, 3, calls)

	// Two backoff sleeps plus the final throttle.
	assert.Len(t, *slept, 3)
}

func TestGetUndecodableBodyIsRetryable(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"truncated`)
			return
		}
		fmt.Fprint(w, `{"id":"1"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, Config{MaxRetries: 3})

	var out struct {
		ID string `json:"id"`
	}
	err := c.Get(context.Background(), c.Endpoint("1"), url.Values{}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetSendsToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("access_token")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, Config{})

	require.NoError(t, c.Get(context.Background(), c.Endpoint("123"), url.Values{}, nil))
	assert.Equal(t, testToken, gotToken)
}

func TestErrorsNeverContainToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, graphError(4, "Application request limit reached"))
	}))
	defer srv.Close()

	var warnings []string
	c, _ := newTestClient(t, srv, Config{
		MaxRetries: 2,
		Logger:     funcLogger(func(msg string) { warnings = append(warnings, msg) }),
	})

	// A cursor URL as returned in paging.next: the token rides in the query.
	next := srv.URL + "/v23.0/123/posts?access_token=" + testToken + "&after=cursor"
	err := c.Get(context.Background(), next, nil, nil)
	require.Error(t, err)

	assert.NotContains(t, err.Error(), testToken)
	for _, msg := range warnings {
		assert.NotContains(t, msg, testToken)
	}
	assert.Contains(t, err.Error(), "access_token=redacted")
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "token replaced",
			in:   "https://graph.facebook.com/v23.0/1/posts?access_token=" + testToken + "&limit=100",
			want: "https://graph.facebook.com/v23.0/1/posts?access_token=redacted&limit=100",
		},
		{
			name: "no token untouched",
			in:   "https://graph.facebook.com/v23.0/1/posts?limit=100",
			want: "https://graph.facebook.com/v23.0/1/posts?limit=100",
		},
		{
			name: "unparsable",
			in:   "http://bad url\x7f",
			want: "<unparsable url>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactURL(tt.in))
		})
	}
}

func TestBackoffDelayBoundedAndNonDecreasing(t *testing.T) {
	c := NewClient(Config{
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  120 * time.Second,
	})

	prevFloor := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		exp := 2 * time.Second << (attempt - 1)
		if exp > 120*time.Second || exp <= 0 {
			exp = 120 * time.Second
		}
		d := c.backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, exp)
		assert.LessOrEqual(t, d, 120*time.Second)
		assert.GreaterOrEqual(t, exp, prevFloor, "exponential floor must not shrink")
		prevFloor = exp
	}
}

func TestGetContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(t, srv, Config{MaxRetries: 10})
	c.sleep = func(time.Duration) { cancel() }

	err := c.Get(ctx, c.Endpoint("123"), url.Values{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context canceled"))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultVersion, c.version)
	assert.Equal(t, 6, c.maxRetries)
	assert.Equal(t, 2*time.Second, c.baseBackoff)
	assert.Equal(t, 120*time.Second, c.maxBackoff)
	assert.Equal(t, 250*time.Millisecond, c.throttle)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestEndpoint(t *testing.T) {
	c := NewClient(Config{Version: "v23.0"})
	assert.Equal(t, "https://graph.facebook.com/v23.0/12345/posts", c.Endpoint("12345", "posts"))
}

// funcLogger adapts a func(string) into a Logger that renders every level the
// same way.
type funcLogger func(msg string)

func (f funcLogger) Infof(format string, args ...any)  { f(fmt.Sprintf(format, args...)) }
func (f funcLogger) Warnf(format string, args ...any)  { f(fmt.Sprintf(format, args...)) }
func (f funcLogger) Errorf(format string, args ...any) { f(fmt.Sprintf(format, args...)) }
