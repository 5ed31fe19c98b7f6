package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Exception independently of its message.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindValidation        Kind = "validation"
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

type Exception struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Exception) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Exception) Unwrap() error {
	return e.Err
}

// Is lets a message-less kind sentinel (ErrConflict, ErrNotFound, ...) match
// every Exception of the same kind.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels, for errors.Is checks.
var (
	ErrNotFound          = &Exception{Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrForbidden         = &Exception{Kind: KindForbidden, StatusCode: http.StatusForbidden}
	ErrInvalidState      = &Exception{Kind: KindInvalidState, StatusCode: http.StatusConflict}
	ErrInvalidTransition = &Exception{Kind: KindInvalidTransition, StatusCode: http.StatusConflict}
	ErrConflict          = &Exception{Kind: KindConflict, StatusCode: http.StatusConflict}
	ErrValidation        = &Exception{Kind: KindValidation, StatusCode: http.StatusBadRequest}
	ErrUnauthorized      = &Exception{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized}
	ErrUnavailable       = &Exception{Kind: KindUnavailable, StatusCode: http.StatusServiceUnavailable}
)

func statusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Exception {
	return &Exception{Kind: kind, Message: message, StatusCode: statusFor(kind)}
}

func Newf(kind Kind, format string, args ...any) *Exception {
	return New(kind, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Exception {
	return Newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Exception {
	return Newf(KindForbidden, format, args...)
}

func InvalidState(format string, args ...any) *Exception {
	return Newf(KindInvalidState, format, args...)
}

func InvalidTransition(format string, args ...any) *Exception {
	return Newf(KindInvalidTransition, format, args...)
}

func Conflict(format string, args ...any) *Exception {
	return Newf(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Exception {
	return Newf(KindValidation, format, args...)
}

// Unavailable wraps an infrastructure failure (store connectivity, timeouts)
// as a transient error. Exceptions pass through untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Exception
	if errors.As(err, &appErr) {
		return err
	}
	msg := "storage unavailable"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		msg = "storage request interrupted"
	}
	return &Exception{
		Kind:       KindUnavailable,
		Message:    msg,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		if appErr.StatusCode != 0 {
			return appErr.StatusCode
		}
		return statusFor(appErr.Kind)
	}
	return http.StatusInternalServerError
}

func KindOf(err error) Kind {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the client-facing message, without wrapped causes.
func Message(err error) string {
	var appErr *Exception
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return string(appErr.Kind)
	}
	return "internal server error"
}

// Retryable reports whether a well-behaved client may retry the call as-is.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindUnavailable:
		return true
	default:
		return false
	}
}
