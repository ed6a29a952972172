package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface. A wrapped error whose text equals
// the message is not repeated.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		if cause := e.Err.Error(); cause != e.Message {
			return fmt.Sprintf("%s: %s", e.Message, cause)
		}
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so wrapped and cloned
// errors still match their predefined sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Typed wraps err under base's code and status, using err's text as the message.
func Typed(base *Error, err error) *Error {
	return Wrap(err, base.Code, base.Status, err.Error())
}

// WrapAs wraps err using the code and status of a predefined error.
func WrapAs(base *Error, err error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return Wrap(err, base.Code, base.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrUpstreamRequest signals a non-success response from the Canvas API.
	ErrUpstreamRequest = New("UPSTREAM_REQUEST_FAILED", http.StatusBadGateway, "canvas api request failed")
	// ErrEmptyCatalog signals that the sheet returned no usable class tabs.
	ErrEmptyCatalog = New("EMPTY_CATALOG", http.StatusBadGateway, "no class tabs were returned from the sheet api")
	// ErrMalformedResponse signals a sheet response missing required fields.
	ErrMalformedResponse = New("MALFORMED_RESPONSE", http.StatusBadGateway, "sheet api returned an unexpected response")
	// ErrRemoteRejected signals that the sheet explicitly reported failure.
	ErrRemoteRejected = New("REMOTE_REJECTED", http.StatusBadGateway, "sheet api rejected the request")
	// ErrSheetUnavailable signals that the sheet endpoint could not be reached.
	ErrSheetUnavailable = New("SHEET_UNAVAILABLE", http.StatusBadGateway, "sheet api could not be reached")
	// ErrSyncInProgress is returned while another sync session holds the lock.
	ErrSyncInProgress = New("SYNC_IN_PROGRESS", http.StatusConflict, "an operation is already running")
	// ErrQueueFull is returned when no more sync runs can be buffered.
	ErrQueueFull = New("QUEUE_FULL", http.StatusConflict, "sync queue is full")
	// ErrNotAuthenticated is returned when the Canvas session probe fails.
	ErrNotAuthenticated = New("CANVAS_NOT_AUTHENTICATED", http.StatusUnauthorized, "canvas session is not authenticated")
	// ErrCacheMiss is returned by cache lookups that found nothing.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
