package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// OK returns a 200 response with body as-is
func OK(c echo.Context, body interface{}) error {
	return c.JSON(http.StatusOK, body)
}

// Created returns a 201 Created response
func Created(c echo.Context, body interface{}) error {
	return c.JSON(http.StatusCreated, body)
}

// Error returns the AAP error envelope with the status mapped from err.
// Internal errors never expose their cause.
func Error(c echo.Context, err error) error {
	code := apperrors.GetErrorCode(err)
	if code == apperrors.CodeInternalError {
		return InternalError(c)
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	return ErrorWithCode(c, code, message)
}

// ErrorWithCode writes {"error": {"code", "message"}} with the status for code
func ErrorWithCode(c echo.Context, code, message string) error {
	return ErrorWithCodeStatus(c, Status(code), code, message)
}

// ErrorWithCodeStatus writes the error envelope with an explicit status.
func ErrorWithCodeStatus(c echo.Context, status int, code, message string) error {
	return c.JSON(status, protocol.ErrorBody{
		Error: protocol.ErrorDetail{Code: code, Message: message},
	})
}

// InternalError returns a 500 Internal Server Error response
func InternalError(c echo.Context) error {
	return ErrorWithCode(c, apperrors.CodeInternalError, "Internal server error")
}

// Status maps error codes to HTTP status codes
func Status(code string) int {
	switch code {
	case apperrors.CodeInvalidAddress,
		apperrors.CodeInvalidRequest,
		apperrors.CodeMissingAddress,
		apperrors.CodeMissingField,
		apperrors.CodeWrongProvider:
		return http.StatusBadRequest
	case apperrors.CodeAuthenticationRequired, apperrors.CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus picks an error code for a bare HTTP status, used when echo
// itself rejects a request (unknown route, wrong method, oversize body).
func CodeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return apperrors.CodeNotFound
	case status == http.StatusUnauthorized:
		return apperrors.CodeAuthenticationRequired
	case status == http.StatusTooManyRequests:
		return apperrors.CodeRateLimitExceeded
	case status >= 400 && status < 500:
		return apperrors.CodeInvalidRequest
	default:
		return apperrors.CodeInternalError
	}
}

// HTTPErrorHandler renders every error returned by a handler or middleware,
// including echo's own routing errors, as the AAP error envelope.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			message := http.StatusText(httpErr.Code)
			if m, ok := httpErr.Message.(string); ok && m != "" {
				message = m
			}
			_ = ErrorWithCodeStatus(c, httpErr.Code, CodeForStatus(httpErr.Code), message)
			return
		}

		if !apperrors.IsClientError(err) && logger != nil {
			logger.Error("unhandled error",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.String("error", err.Error()),
			)
		}
		_ = Error(c, err)
	}
}
