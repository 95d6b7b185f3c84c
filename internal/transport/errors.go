package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	// Code and Message come from the API error body when one was sent.
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, msg)
}

// HTTPStatus exposes the status code to the retry classifier.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// errorEnvelope is the error body of the SDK API: {"error": {"code": "...", "message": "..."}}.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newStatusError builds a StatusError, reading the API error body when it parses.
// Bodies that are not the JSON envelope are kept as a trimmed message.
func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		se.Code = env.Error.Code
		se.Message = env.Error.Message
		return se
	}

	se.Message = strings.TrimSpace(string(body))
	if len(se.Message) > maxErrorMessage {
		se.Message = se.Message[:maxErrorMessage]
	}
	return se
}

const maxErrorMessage = 256
