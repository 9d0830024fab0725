package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
)

// Class categorizes an API failure and determines how callers react to it.
type Class string

const (
	// ClassTransient marks throttling and server hiccups that are safe to retry.
	ClassTransient Class = "transient"

	// ClassPermanent marks failures that will not succeed on retry
	// (bad requests, missing resources, insufficient permissions).
	ClassPermanent Class = "permanent"

	// ClassUnauthenticated marks failed or expired credentials.
	// Runs abort on these; retrying without re-authentication is pointless.
	ClassUnauthenticated Class = "unauthenticated"

	// ClassQuotaExhausted marks a transient failure that persisted through
	// every allowed retry attempt.
	ClassQuotaExhausted Class = "quota_exhausted"

	// ClassTimeout marks operations cut short by a deadline.
	ClassTimeout Class = "timeout"
)

// APIError is the error type returned by the gateway for failed operations.
// It carries the failure class, the last observed HTTP status, and how many
// attempts were made before giving up.
type APIError struct {
	Class    Class
	Status   int
	Op       string
	Attempts int
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Class)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// rateReasons are the googleapi error reasons that indicate throttling
// rather than a genuine permission problem on a 403 response.
var rateReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// Classify maps an error to its failure class.
//
// Throttling (429), server errors (500, 503), rate-limit 403s, and transport
// failures are transient. 401 means the credentials are bad. Deadline
// expiry maps to timeout. Everything else is permanent.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return ClassUnauthenticated
		case http.StatusForbidden:
			for _, item := range gerr.Errors {
				if rateReasons[item.Reason] {
					return ClassTransient
				}
			}
			return ClassPermanent
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return ClassTransient
		}
		return ClassPermanent
	}

	// Transport-level failures (connection reset, DNS, etc.) are worth a retry.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransient
	}

	return ClassPermanent
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}

// IsUnauthenticated reports whether err indicates failed or expired credentials.
func IsUnauthenticated(err error) bool {
	return Classify(err) == ClassUnauthenticated
}

// IsQuotaExhausted reports whether err indicates retries were exhausted.
func IsQuotaExhausted(err error) bool {
	return Classify(err) == ClassQuotaExhausted
}

// IsTimeout reports whether err indicates a deadline expired.
func IsTimeout(err error) bool {
	return Classify(err) == ClassTimeout
}

// IsPermanent reports whether err is a non-retriable per-item failure.
func IsPermanent(err error) bool {
	return Classify(err) == ClassPermanent
}

// RetryAfterHint extracts an explicit server backoff hint from a throttled
// response. It understands both delay-seconds and HTTP-date forms of the
// Retry-After header. The hint takes precedence over computed backoff.
func RetryAfterHint(err error) (time.Duration, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0, false
	}

	value := gerr.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}

	if secs, convErr := strconv.Atoi(value); convErr == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if when, parseErr := http.ParseTime(value); parseErr == nil {
		d := time.Until(when)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}

// statusOf returns the HTTP status carried by err, or 0 if there is none.
func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
