package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/services"
	"github.com/openfolio/openfolio/pkg/validation"
)

// Machine-readable error codes in the response envelope.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeUnauthorized = "UNAUTHORIZED"
	codeConflict     = "CONFLICT"
	codeRateLimited  = "RATE_LIMITED"
	codeUpstream     = "UPSTREAM_UNAVAILABLE"
	codeInternal     = "INTERNAL"
)

// apiError is an error a handler wants rendered with a specific status.
type apiError struct {
	status     int
	code       string
	message    string
	fields     map[string][]string
	retryAfter int
}

func (e *apiError) Error() string { return e.message }

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: codeValidation, message: message}
}

func notFound(message string) *apiError {
	return &apiError{status: http.StatusNotFound, code: codeNotFound, message: message}
}

func unauthorized(message string) *apiError {
	return &apiError{status: http.StatusUnauthorized, code: codeUnauthorized, message: message}
}

type errorBody struct {
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	RequestID  string              `json:"requestId"`
	Fields     map[string][]string `json:"fields,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// respondError maps service-layer errors to the HTTP error envelope.
func (s *Server) respondError(c *echo.Context, err error) error {
	ae := s.mapError(err)
	if ae.retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(ae.retryAfter))
	}
	return c.JSON(ae.status, &errorEnvelope{Error: errorBody{
		Code:       ae.code,
		Message:    ae.message,
		RequestID:  requestIDFrom(c),
		Fields:     ae.fields,
		RetryAfter: ae.retryAfter,
	}})
}

func (s *Server) mapError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	var validErr *validation.Error
	if errors.As(err, &validErr) {
		return &apiError{
			status:  http.StatusBadRequest,
			code:    codeValidation,
			message: "validation failed",
			fields:  validErr.Fields,
		}
	}

	var rateErr *services.RateLimitedError
	if errors.As(err, &rateErr) {
		return &apiError{
			status:     http.StatusTooManyRequests,
			code:       codeRateLimited,
			message:    rateErr.Error(),
			retryAfter: rateErr.RetryAfter,
		}
	}

	var upstreamErr *services.UpstreamError
	if errors.As(err, &upstreamErr) {
		slog.Warn("Upstream provider failure", "provider", upstreamErr.Provider, "error", upstreamErr.Err)
		return &apiError{
			status:  http.StatusBadGateway,
			code:    codeUpstream,
			message: fmt.Sprintf("%s is temporarily unavailable", upstreamErr.Provider),
		}
	}

	if errors.Is(err, services.ErrNotFound) {
		return notFound("resource not found")
	}
	if errors.Is(err, services.ErrConflict) {
		return &apiError{status: http.StatusConflict, code: codeConflict, message: "resource conflict"}
	}
	if errors.Is(err, services.ErrInvalidInput) {
		return badRequest(err.Error())
	}

	slog.Error("Unexpected service error", "error", err)
	message := "internal server error"
	if s.cfg != nil && !s.cfg.IsProduction() {
		message = err.Error()
	}
	return &apiError{status: http.StatusInternalServerError, code: codeInternal, message: message}
}
