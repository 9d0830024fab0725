package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{
			name: "nil error",
			err:  nil,
			want: Class(""),
		},
		{
			name: "unauthorized",
			err:  &googleapi.Error{Code: 401},
			want: ClassUnauthenticated,
		},
		{
			name: "forbidden with rate limit reason",
			err: &googleapi.Error{
				Code:   403,
				Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}},
			},
			want: ClassTransient,
		},
		{
			name: "forbidden with user rate limit reason",
			err: &googleapi.Error{
				Code:   403,
				Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}},
			},
			want: ClassTransient,
		},
		{
			name: "forbidden with quota reason",
			err: &googleapi.Error{
				Code:   403,
				Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
			},
			want: ClassTransient,
		},
		{
			name: "forbidden without rate limit reason",
			err: &googleapi.Error{
				Code:   403,
				Errors: []googleapi.ErrorItem{{Reason: "insufficientPermissions"}},
			},
			want: ClassPermanent,
		},
		{
			name: "too many requests",
			err:  &googleapi.Error{Code: 429},
			want: ClassTransient,
		},
		{
			name: "internal server error",
			err:  &googleapi.Error{Code: 500},
			want: ClassTransient,
		},
		{
			name: "service unavailable",
			err:  &googleapi.Error{Code: 503},
			want: ClassTransient,
		},
		{
			name: "not found",
			err:  &googleapi.Error{Code: 404},
			want: ClassPermanent,
		},
		{
			name: "bad request",
			err:  &googleapi.Error{Code: 400},
			want: ClassPermanent,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: ClassTimeout,
		},
		{
			name: "deadline exceeded wrapped in url error",
			err:  &url.Error{Op: "Get", URL: "https://gmail.googleapis.com", Err: context.DeadlineExceeded},
			want: ClassTimeout,
		},
		{
			name: "network error",
			err:  &url.Error{Op: "Get", URL: "https://gmail.googleapis.com", Err: errors.New("connection reset")},
			want: ClassTransient,
		},
		{
			name: "classified error passes through",
			err:  &APIError{Class: ClassQuotaExhausted, Op: "messages.get"},
			want: ClassQuotaExhausted,
		},
		{
			name: "plain error",
			err:  errors.New("something odd"),
			want: ClassPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassPredicates(t *testing.T) {
	transient := &googleapi.Error{Code: 503}
	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))

	assert.True(t, IsUnauthenticated(&googleapi.Error{Code: 401}))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsQuotaExhausted(&APIError{Class: ClassQuotaExhausted}))
	assert.False(t, IsQuotaExhausted(transient))
}

func TestRetryAfterHintSeconds(t *testing.T) {
	err := &googleapi.Error{
		Code:   429,
		Header: http.Header{"Retry-After": []string{"3"}},
	}

	d, ok := RetryAfterHint(err)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestRetryAfterHintHTTPDate(t *testing.T) {
	err := &googleapi.Error{
		Code:   429,
		Header: http.Header{"Retry-After": []string{time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)}},
	}

	d, ok := RetryAfterHint(err)
	require.True(t, ok)
	assert.Greater(t, d, 5*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)
}

func TestRetryAfterHintPastDateClampsToZero(t *testing.T) {
	err := &googleapi.Error{
		Code:   429,
		Header: http.Header{"Retry-After": []string{time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)}},
	}

	d, ok := RetryAfterHint(err)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestRetryAfterHintAbsent(t *testing.T) {
	_, ok := RetryAfterHint(&googleapi.Error{Code: 429})
	assert.False(t, ok)

	_, ok = RetryAfterHint(errors.New("no header here"))
	assert.False(t, ok)

	_, ok = RetryAfterHint(&googleapi.Error{
		Code:   429,
		Header: http.Header{"Retry-After": []string{"soonish"}},
	})
	assert.False(t, ok)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		Class:    ClassQuotaExhausted,
		Status:   503,
		Op:       "messages.batchModify",
		Attempts: 5,
		Err:      errors.New("backend error"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "messages.batchModify")
	assert.Contains(t, msg, "quota_exhausted")
	assert.Contains(t, msg, "5 attempts")
	assert.Contains(t, msg, "503")
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := &googleapi.Error{Code: 503}
	err := &APIError{Class: ClassTransient, Op: "labels.list", Err: inner}

	var gerr *googleapi.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 503, gerr.Code)
}
