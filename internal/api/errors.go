package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
)

// APIError is the body of every failed response.
type APIError struct {
	Status  int    `json:"-" msgpack:"-"`
	Success bool   `json:"success" msgpack:"success"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"error" msgpack:"error"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 error.
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 error for a missing or invalid field.
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// FromError maps a domain error to an APIError. Engine errors raised by a
// caller supplied statement are client errors; other engine failures are
// server errors.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var domainErr *model.Error
	if !errors.As(err, &domainErr) {
		return &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: err.Error()}
	}

	out := &APIError{Message: domainErr.Error()}
	switch domainErr.Kind {
	case model.KindNotFound:
		out.Status, out.Code = http.StatusNotFound, "NOT_FOUND"
	case model.KindInvalidArgument:
		out.Status, out.Code = http.StatusBadRequest, "VALIDATION_ERROR"
	case model.KindUnsupportedFormat:
		out.Status, out.Code = http.StatusBadRequest, "UNSUPPORTED_FORMAT"
	case model.KindDecodeError:
		out.Status, out.Code = http.StatusBadRequest, "DECODE_ERROR"
	case model.KindUnsupportedStructure:
		out.Status, out.Code = http.StatusBadRequest, "UNSUPPORTED_STRUCTURE"
	case model.KindNoExtractableContent:
		out.Status, out.Code = http.StatusBadRequest, "NO_EXTRACTABLE_CONTENT"
	case model.KindNoNonEmptySheet:
		out.Status, out.Code = http.StatusBadRequest, "NO_NON_EMPTY_SHEET"
	case model.KindEngineError:
		out.Code = "ENGINE_ERROR"
		out.Status = http.StatusInternalServerError
		if domainErr.Statement != "" {
			out.Status = http.StatusBadRequest
		}
	default:
		out.Status, out.Code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	return out
}

// ErrorHandler renders errors returned by handlers.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		apiErr = &APIError{Status: httpErr.Code, Code: "HTTP_ERROR", Message: fmt.Sprintf("%v", httpErr.Message)}
		if httpErr.Internal != nil {
			apiErr.Details = httpErr.Internal.Error()
		}
	default:
		apiErr = FromError(err)
	}

	logger := zerolog.Ctx(c.Request().Context())
	event := logger.Warn()
	if apiErr.Status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", apiErr.Status).Str("code", apiErr.Code).Msg("request failed")

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	if rerr := respond(c, apiErr.Status, apiErr); rerr != nil {
		logger.Error().Err(rerr).Msg("failed to write error response")
	}
}
