package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/pkg/protocol"
)

func setupTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) protocol.ErrorDetail {
	t.Helper()
	var body protocol.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestOK_Returns200WithBody(t *testing.T) {
	c, rec := setupTestContext()

	err := OK(c, map[string]string{"status": "ok"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreated_Returns201(t *testing.T) {
	c, rec := setupTestContext()

	err := Created(c, protocol.DeliveryReceipt{Success: true, MessageID: "m1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestError_UsesAppErrorMessage(t *testing.T) {
	c, rec := setupTestContext()

	err := Error(c, apperrors.NewAppError(apperrors.ErrWrongProvider, "Address does not belong to this provider", apperrors.CodeWrongProvider))

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeWrongProvider, detail.Code)
	assert.Equal(t, "Address does not belong to this provider", detail.Message)
}

func TestError_HidesInternalCause(t *testing.T) {
	c, rec := setupTestContext()

	err := Error(c, fmt.Errorf("append: %w", errors.New("pq: password authentication failed")))

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeInternalError, detail.Code)
	assert.NotContains(t, detail.Message, "password")
}

func TestError_SentinelUsesItsText(t *testing.T) {
	c, rec := setupTestContext()

	err := Error(c, apperrors.ErrAddressNotFound)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "address not found", decodeError(t, rec).Message)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{apperrors.CodeInvalidAddress, http.StatusBadRequest},
		{apperrors.CodeInvalidRequest, http.StatusBadRequest},
		{apperrors.CodeMissingAddress, http.StatusBadRequest},
		{apperrors.CodeMissingField, http.StatusBadRequest},
		{apperrors.CodeWrongProvider, http.StatusBadRequest},
		{apperrors.CodeAuthenticationRequired, http.StatusUnauthorized},
		{apperrors.CodeAuthenticationFailed, http.StatusUnauthorized},
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeAlreadyExists, http.StatusConflict},
		{apperrors.CodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.CodeInternalError, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.code))
		})
	}
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, apperrors.CodeNotFound, CodeForStatus(http.StatusNotFound))
	assert.Equal(t, apperrors.CodeInvalidRequest, CodeForStatus(http.StatusMethodNotAllowed))
	assert.Equal(t, apperrors.CodeInvalidRequest, CodeForStatus(http.StatusRequestEntityTooLarge))
	assert.Equal(t, apperrors.CodeRateLimitExceeded, CodeForStatus(http.StatusTooManyRequests))
	assert.Equal(t, apperrors.CodeInternalError, CodeForStatus(http.StatusBadGateway))
}

func TestHTTPErrorHandler_LogsOnlyProviderFaults(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
	e.GET("/client", func(c echo.Context) error {
		return apperrors.New(apperrors.ErrMissingField, "Missing envelope.to_addr")
	})
	e.GET("/fault", func(c echo.Context) error {
		return errors.New("connection reset by peer")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/client", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, buf.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fault", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec).Message)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Contains(t, buf.String(), "connection reset by peer")
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(nil)
	e.GET("/app", func(c echo.Context) error {
		return apperrors.New(apperrors.ErrAuthenticationFailed, "Invalid API key")
	})
	e.GET("/boom", func(c echo.Context) error {
		return fmt.Errorf("database exploded")
	})

	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		code    string
		message string
	}{
		{"app error", http.MethodGet, "/app", http.StatusUnauthorized, apperrors.CodeAuthenticationFailed, "Invalid API key"},
		{"internal error hides cause", http.MethodGet, "/boom", http.StatusInternalServerError, apperrors.CodeInternalError, "Internal server error"},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, apperrors.CodeNotFound, "Not Found"},
		{"wrong method", http.MethodPost, "/app", http.StatusMethodNotAllowed, apperrors.CodeInvalidRequest, "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, tt.code, detail.Code)
			assert.Equal(t, tt.message, detail.Message)
		})
	}
}
