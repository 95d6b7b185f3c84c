// Package retry implements the attempt-with-retry loop shared by every SDK operation
// and the classification of failures into retryable and terminal.
package retry

import (
	"context"
	"errors"
)

// Decision tells the loop what to do after a failed attempt.
type Decision int

const (
	// Retry schedules another attempt if the budget allows it.
	Retry Decision = iota
	// Stop ends the loop and surfaces the error.
	Stop
)

func (d Decision) String() string {
	if d == Stop {
		return "stop"
	}
	return "retry"
}

// Classifier maps a failed attempt to a Decision.
type Classifier func(err error) Decision

// statusCoder is implemented by transport errors that carry an HTTP-like status.
type statusCoder interface {
	HTTPStatus() int
}

// StatusCode extracts the HTTP-like status code from the first error in the chain
// that carries one. It reports false for pure network failures.
func StatusCode(err error) (int, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		if status := sc.HTTPStatus(); status > 0 {
			return status, true
		}
	}
	return 0, false
}

// Classify is the default Classifier.
//
//   - caller cancellation: Stop
//   - status 400-499: Stop (client errors do not heal on their own)
//   - status >= 500: Retry
//   - any other status: Stop
//   - no status (network, timeout, decoding): Retry
func Classify(err error) Decision {
	if err == nil {
		return Stop
	}
	if errors.Is(err, context.Canceled) {
		return Stop
	}

	status, ok := StatusCode(err)
	if !ok {
		return Retry
	}

	switch {
	case status >= 400 && status < 500:
		return Stop
	case status >= 500:
		return Retry
	default:
		return Stop
	}
}
