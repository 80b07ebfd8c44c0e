// errors.go - Structured error handling for API responses
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/reading"
	"github.com/bina-refinery/logbook/internal/session"
	"github.com/bina-refinery/logbook/internal/storage"
	"github.com/bina-refinery/logbook/internal/voice"
)

// StatusClientClosedRequest reports a request abandoned by the client.
const StatusClientClosedRequest = 499

// APIError represents a structured API error response
type APIError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Hint    string   `json:"hint,omitempty"`
	Tips    []string `json:"tips,omitempty"`
	Data    any      `json:"data,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode reports the HTTP status, read by the metrics middleware.
func (e *APIError) StatusCode() int {
	return e.Status
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// FromDomainError maps pipeline, session, store and voice errors onto
// their HTTP representation. Unrecognised errors become 500s.
func FromDomainError(err error) *APIError {
	var (
		apiErr     *APIError
		extractErr *reading.ExtractionError
		rangeErr   *reading.RangeViolationError
		voiceErr   *voice.Error
		ioErr      *storage.IOError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr

	case errors.As(err, &extractErr):
		return &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "EXTRACTION_FAILED",
			Message: fmt.Sprintf("Could not extract a numeric value from the voice input: %q", extractErr.Transcript),
			Hint:    reading.SpeakHint,
			Data:    map[string]string{"transcript": extractErr.Transcript},
		}

	case errors.As(err, &rangeErr):
		return &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "RANGE_VIOLATION",
			Message: rangeErr.Error(),
			Data:    rangeErr,
		}

	case errors.As(err, &voiceErr):
		e := &APIError{Message: voiceErr.UserMessage(), Tips: voiceErr.Tips()}
		switch voiceErr.Kind {
		case voice.KindDeviceUnavailable:
			e.Status, e.Code = http.StatusServiceUnavailable, "VOICE_DEVICE_UNAVAILABLE"
		case voice.KindNoSpeech:
			e.Status, e.Code = http.StatusUnprocessableEntity, "VOICE_NO_SPEECH"
		default:
			e.Status, e.Code = http.StatusBadGateway, "VOICE_SERVICE_UNREACHABLE"
			if voiceErr.Err != nil {
				e.Details = voiceErr.Err.Error()
			}
		}
		return e

	case errors.Is(err, catalog.ErrUnknownLocation), errors.Is(err, catalog.ErrUnknownParameter):
		return &APIError{
			Status:  http.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: err.Error(),
		}

	case errors.Is(err, catalog.ErrUnsupportedUnit):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "UNSUPPORTED_UNIT",
			Message: err.Error(),
		}

	case errors.Is(err, session.ErrInvalidTransition):
		return &APIError{
			Status:  http.StatusConflict,
			Code:    "INVALID_TRANSITION",
			Message: err.Error(),
		}

	case errors.Is(err, session.ErrTooManySessions):
		return NewServiceUnavailableError(err.Error())

	case errors.Is(err, context.Canceled):
		return &APIError{
			Status:  StatusClientClosedRequest,
			Code:    "REQUEST_CANCELED",
			Message: "The request was canceled before it completed",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Code:    "REQUEST_TIMEOUT",
			Message: "The request did not complete in time",
		}

	case errors.As(err, &ioErr):
		return &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "STORE_IO_FAILURE",
			Message: fmt.Sprintf("Log file %s failed", strings.ReplaceAll(ioErr.Op, "_", " ")),
			Details: ioErr.Err.Error(),
		}
	}

	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "UNKNOWN_ERROR",
		Message: "An unexpected error occurred",
		Details: err.Error(),
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	} else {
		apiErr = FromDomainError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"code", apiErr.Code,
			"error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
