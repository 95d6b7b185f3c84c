package togglr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rafaeljc/togglr-sdk-go/internal/retry"
)

// ErrorKind classifies a failed operation.
type ErrorKind int

const (
	// KindGeneric covers network failures and statuses without a dedicated kind.
	KindGeneric ErrorKind = iota
	KindUnauthorized
	KindBadRequest
	KindNotFound
	KindTooManyRequests
	KindInternalServerError
	// KindFeatureNotFound is raised by strict checks such as IsEnabled when the
	// server does not know the feature. Evaluate itself never returns it.
	KindFeatureNotFound
)

var kindNames = [...]string{
	KindGeneric:             "generic",
	KindUnauthorized:        "unauthorized",
	KindBadRequest:          "bad_request",
	KindNotFound:            "not_found",
	KindTooManyRequests:     "too_many_requests",
	KindInternalServerError: "internal_server_error",
	KindFeatureNotFound:     "feature_not_found",
}

// String returns the snake_case name used in logs and metric labels.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is. Every *Error returned by the client matches exactly one of them.
var (
	ErrGeneric             = &Error{Kind: KindGeneric, Message: "request failed"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Message: "authentication required"}
	ErrBadRequest          = &Error{Kind: KindBadRequest, StatusCode: http.StatusBadRequest, Message: "bad request"}
	ErrNotFound            = &Error{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: "resource not found"}
	ErrTooManyRequests     = &Error{Kind: KindTooManyRequests, StatusCode: http.StatusTooManyRequests, Message: "too many requests"}
	ErrInternalServerError = &Error{Kind: KindInternalServerError, StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	ErrFeatureNotFound     = &Error{Kind: KindFeatureNotFound, StatusCode: http.StatusNotFound, Message: "feature not found"}
)

func (k ErrorKind) sentinel() *Error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindBadRequest:
		return ErrBadRequest
	case KindNotFound:
		return ErrNotFound
	case KindTooManyRequests:
		return ErrTooManyRequests
	case KindInternalServerError:
		return ErrInternalServerError
	case KindFeatureNotFound:
		return ErrFeatureNotFound
	default:
		return ErrGeneric
	}
}

// ErrClientClosed is wrapped by errors returned from a Client after Close.
var ErrClientClosed = errors.New("togglr: client is closed")

// Error is the error type returned by every Client operation.
type Error struct {
	// Op is the failed operation: evaluate, is_enabled, report_error, feature_health or track_event.
	Op string
	// FeatureKey is the feature the operation was about, if any.
	FeatureKey string
	Kind       ErrorKind
	// StatusCode is the HTTP status of the last attempt, or 0 when none was received.
	StatusCode int
	Message    string
	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("togglr: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.FeatureKey != "" {
			fmt.Fprintf(&b, " %q", e.FeatureKey)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t == e.Kind.sentinel()
}

// KindOf returns the ErrorKind of the first *Error in err's chain, or KindGeneric.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// TransportError lets custom Transport implementations report an HTTP-like status.
// A zero StatusCode marks a network failure, which is retried.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("transport: status %d", e.StatusCode)
	}
	return fmt.Sprintf("transport: status %d: %v", e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatus exposes the status code to the retry classifier.
func (e *TransportError) HTTPStatus() int { return e.StatusCode }

// kindForStatus maps the status of the last failed attempt onto the taxonomy.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindTooManyRequests
	case status >= http.StatusInternalServerError:
		return KindInternalServerError
	default:
		return KindGeneric
	}
}

// translate converts the last failure of a retry loop into an *Error.
func translate(op, featureKey string, err error) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	status, hasStatus := retry.StatusCode(err)
	kind := KindGeneric
	if hasStatus {
		kind = kindForStatus(status)
	}

	msg := kind.sentinel().Message
	switch {
	case hasStatus && kind == KindGeneric:
		msg = fmt.Sprintf("unexpected API status %d", status)
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	}

	return &Error{
		Op:         op,
		FeatureKey: featureKey,
		Kind:       kind,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}
