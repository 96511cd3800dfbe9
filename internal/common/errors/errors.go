// Package errors provides the classified failure taxonomy for external
// inference calls and its mapping onto HTTP responses.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// FailureKind identifies why an inference call failed.
type FailureKind string

const (
	KindRateLimit      FailureKind = "RATE_LIMIT"
	KindQuotaExceeded  FailureKind = "QUOTA_EXCEEDED"
	KindBudgetExceeded FailureKind = "BUDGET_EXCEEDED"
	KindServerError    FailureKind = "SERVER_ERROR"
	KindTimeout        FailureKind = "TIMEOUT"
	KindUnknown        FailureKind = "UNKNOWN"
)

// InferenceError is a structured failure from the external inference
// capability. Retryable is derived from Kind and never set independently.
type InferenceError struct {
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	Retryable  bool        `json:"retryable"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("InferenceError[%s]: %s", e.Kind, e.Message)
}

// IsRetryable reports whether failures of the given kind may be retried.
// Only transient transport conditions qualify.
func IsRetryable(kind FailureKind) bool {
	switch kind {
	case KindRateLimit, KindServerError, KindTimeout:
		return true
	default:
		return false
	}
}

// IsRetryableErr reports whether err wraps a retryable InferenceError.
// Unclassified errors are never retried.
func IsRetryableErr(err error) bool {
	infErr, ok := AsInference(err)
	return ok && infErr.Retryable
}

// New creates an InferenceError of the given kind with the derived
// retryability bit.
func New(kind FailureKind, message string) *InferenceError {
	return &InferenceError{
		Kind:       kind,
		Message:    message,
		Retryable:  IsRetryable(kind),
		OccurredAt: time.Now().UTC(),
	}
}

// NewBudgetExceeded creates the fail-fast budget error raised before any
// network traffic happens.
func NewBudgetExceeded(estimatedTokens int) *InferenceError {
	return New(KindBudgetExceeded,
		fmt.Sprintf("token budget exceeded for current time window (estimated %d tokens)", estimatedTokens))
}

// FromStatusCode classifies an HTTP error response from the inference API.
func FromStatusCode(status int, body string) *InferenceError {
	switch {
	case status == http.StatusTooManyRequests:
		return New(KindRateLimit, fmt.Sprintf("inference API returned 429: %s", body))
	case status == http.StatusInternalServerError || status == http.StatusServiceUnavailable:
		return New(KindServerError, fmt.Sprintf("inference API returned %d: %s", status, body))
	default:
		return classifyMessage(fmt.Sprintf("inference API returned %d: %s", status, body))
	}
}

// Classify converts an arbitrary error from the transport into an
// InferenceError. Already-classified errors pass through unchanged.
func Classify(err error) *InferenceError {
	if infErr, ok := AsInference(err); ok {
		return infErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, "inference call exceeded deadline")
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return New(KindTimeout, err.Error())
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) *InferenceError {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "quota"):
		return New(KindQuotaExceeded, msg)
	case strings.Contains(lower, "budget"):
		return New(KindBudgetExceeded, msg)
	default:
		return New(KindUnknown, msg)
	}
}

// AsInference unwraps err into an *InferenceError if possible.
func AsInference(err error) (*InferenceError, bool) {
	var infErr *InferenceError
	if stderrors.As(err, &infErr) {
		return infErr, true
	}
	return nil, false
}

// HTTPStatus maps a failure kind onto the status code the HTTP surface
// responds with. Exhaustion kinds signal "try again later".
func HTTPStatus(kind FailureKind) int {
	switch kind {
	case KindRateLimit, KindQuotaExceeded, KindBudgetExceeded:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
