package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"invoicedesk/internal/ai"
	"invoicedesk/internal/storage"
)

// Kind classifies an extraction failure.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConfig      Kind = "config"
	KindBadRequest  Kind = "bad_request"
	KindNoText      Kind = "no_text"
	KindThrottled   Kind = "throttled"
	KindUnavailable Kind = "unavailable"
	KindParse       Kind = "parse"
	KindFailed      Kind = "failed"
)

// Error is the only error type Service.Extract returns.
type Error struct {
	Kind      Kind
	Retryable bool
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, retryable bool, msg string, cause error) *Error {
	return &Error{Kind: kind, Retryable: retryable, Message: msg, Cause: cause}
}

// Classify maps any failure from the extraction path onto an *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var pf *ParseFailure
	if errors.As(err, &pf) {
		return newError(KindParse, true, "could not parse the model response", err)
	}

	switch {
	case errors.Is(err, storage.ErrBlobNotFound):
		return newError(KindNotFound, false, "file not found", err)
	case errors.Is(err, storage.ErrInvalidBlobID):
		return newError(KindBadRequest, false, "invalid file id", err)
	}

	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(KindUnavailable, true, "the ai service did not answer in time", err)
	}
	return newError(KindFailed, true, "extraction failed", err)
}

func classifyAPIError(e *ai.APIError) *Error {
	msg := strings.ToLower(e.Message)
	code := strings.ToLower(e.Code)
	switch {
	case isRetiredAPIError(e):
		return newError(KindBadRequest, false, "the requested model is not supported", e)
	case e.Status == http.StatusServiceUnavailable || code == "unavailable" || strings.Contains(msg, "overloaded"):
		return newError(KindUnavailable, true, "the ai service is temporarily overloaded", e)
	case e.Status == http.StatusTooManyRequests || code == "resource_exhausted" ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return newError(KindThrottled, true, "the ai service quota or rate limit was exceeded", e)
	default:
		return newError(KindFailed, true, "the ai service returned an error", e)
	}
}

// IsRetired reports whether err signals a decommissioned or unknown model.
func IsRetired(err error) bool {
	var apiErr *ai.APIError
	return errors.As(err, &apiErr) && isRetiredAPIError(apiErr)
}

func isRetiredAPIError(e *ai.APIError) bool {
	msg := strings.ToLower(e.Message)
	code := strings.ToLower(e.Code)
	if code == "model_decommissioned" || code == "model_not_found" {
		return true
	}
	if strings.Contains(msg, "decommissioned") || strings.Contains(msg, "no longer supported") {
		return true
	}
	return e.Status == http.StatusNotFound && strings.Contains(msg, "model")
}
