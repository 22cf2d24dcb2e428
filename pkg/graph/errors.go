package graph

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a Graph API failure so that callers can switch on the
// required action instead of matching concrete error types.
type ErrorKind int

const (
	// KindOther covers any non-zero Graph error code outside the fatal and
	// rate-limit sets. It is never retried; the call site decides whether to
	// abort the run or degrade for the affected entity.
	KindOther ErrorKind = iota

	// KindFatal covers token/permission errors (Graph codes 10, 190, 200).
	// A fatal error is raised on the first attempt and must stop the run.
	KindFatal

	// KindRetryable covers rate limiting (Graph codes 4, 17, 32, 613),
	// HTTP 429/5xx responses, and transport-level failures. Retried with
	// exponential backoff inside the client.
	KindRetryable
)

// Graph error codes that drive classification.
var (
	fatalCodes     = map[int]bool{10: true, 190: true, 200: true}
	rateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}
)

// APIError is a classified Graph API error. Code is the Graph error code from
// the response envelope (zero when the failure was a bare HTTP status or a
// transport fault). The access token is never part of the message.
type APIError struct {
	Kind       ErrorKind
	Code       int
	Subcode    int
	Type       string
	Message    string
	TraceID    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	var kind string
	switch e.Kind {
	case KindFatal:
		kind = "fatal"
	case KindRetryable:
		kind = "retryable"
	default:
		kind = "api"
	}
	msg := fmt.Sprintf("graph: %s error code=%d", kind, e.Code)
	if e.Subcode != 0 {
		msg += fmt.Sprintf(" subcode=%d", e.Subcode)
	}
	if e.Type != "" {
		msg += fmt.Sprintf(" type=%s", e.Type)
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" status=%d", e.HTTPStatus)
	}
	if e.TraceID != "" {
		msg += fmt.Sprintf(" trace=%s", e.TraceID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// ExhaustedError wraps the last failure after the retry budget for a single
// logical request has been spent.
type ExhaustedError struct {
	Attempts int
	URL      string // already redacted
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("graph: request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsFatal reports whether err (anywhere in its chain) is a fatal Graph
// token/permission error that must abort the run.
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindFatal
}

// ErrorCode returns the Graph error code carried by err, or zero when err is
// not a Graph API error.
func ErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
