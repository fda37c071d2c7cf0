package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrorCode classifies failures uniformly across providers.
type ErrorCode string

const (
	ErrCodeConfig      ErrorCode = "config"
	ErrCodeAuth        ErrorCode = "auth"
	ErrCodeRateLimit   ErrorCode = "rate_limit"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeStall       ErrorCode = "stall"
	ErrCodeUnavailable ErrorCode = "unavailable"
	ErrCodeValidation  ErrorCode = "validation"
	ErrCodeNotFound    ErrorCode = "not_found"
	ErrCodeProvider    ErrorCode = "provider"
	ErrCodeInternal    ErrorCode = "internal"
)

// Error is the provider-neutral error carried across layer boundaries.
type Error struct {
	Code       ErrorCode
	Provider   string
	Message    string
	HTTPStatus int
	RetryAfter time.Duration // rate-limit hint from the vendor, zero when absent
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Code))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(code ErrorCode, provider, message string) *Error {
	return &Error{Code: code, Provider: provider, Message: message}
}

// Errorf builds a classified error with a formatted message.
func Errorf(code ErrorCode, provider, format string, args ...interface{}) *Error {
	return &Error{Code: code, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error without losing its chain.
func WrapError(code ErrorCode, provider string, err error) *Error {
	return &Error{Code: code, Provider: provider, Err: err}
}

const maxErrorBodyLen = 200

var secretPattern = regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{8,}|bearer\s+[a-zA-Z0-9._-]{8,})`)

// HTTPError classifies a non-2xx vendor response. The body is kept for
// diagnostics after scrubbing credential-looking tokens and truncating.
func HTTPError(provider string, status int, body []byte) *Error {
	msg := secretPattern.ReplaceAllString(strings.TrimSpace(string(body)), "[redacted]")
	if len(msg) > maxErrorBodyLen {
		msg = msg[:maxErrorBodyLen] + "..."
	}
	return &Error{
		Code:       ClassifyStatus(status),
		Provider:   provider,
		Message:    fmt.Sprintf("unexpected status %d: %s", status, msg),
		HTTPStatus: status,
	}
}

// ClassifyStatus maps an HTTP status to an error code.
func ClassifyStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuth
	case status == 404:
		return ErrCodeNotFound
	case status == 400 || status == 422:
		return ErrCodeValidation
	case status == 408:
		return ErrCodeTimeout
	case status == 429:
		return ErrCodeRateLimit
	default:
		return ErrCodeProvider
	}
}

// CodeOf extracts the error code from err, ErrCodeInternal when the chain
// carries no classification.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// RetryAfterOf extracts the vendor's rate-limit delay hint, zero when
// absent.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// Retryable reports whether the failure is transient and worth another
// attempt. Auth, validation, config and not-found failures are permanent,
// as are context cancellations.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeAuth, ErrCodeValidation, ErrCodeConfig, ErrCodeNotFound:
		return false
	default:
		return true
	}
}
