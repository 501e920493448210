package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
)

const testAPIKey = "test-api-key"

func runAuth(t *testing.T, apiKey, path, authHeader string, secLogger *logger.SecurityLogger) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	handler := APIKeyAuth(apiKey, secLogger, nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
	return rec, handler(c)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	}
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	_, err := runAuth(t, testAPIKey, "/api/attachments/node/1", "", nil)
	assertUnauthorized(t, err)
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	_, err := runAuth(t, testAPIKey, "/api/attachments/node/1", "Bearer wrong-key", nil)
	assertUnauthorized(t, err)
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	rec, err := runAuth(t, testAPIKey, "/api/attachments/node/1", "Bearer test-api-key", nil)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_HealthEndpointsSkipAuth(t *testing.T) {
	for _, path := range []string{"/health", "/ready"} {
		t.Run(path, func(t *testing.T) {
			rec, err := runAuth(t, testAPIKey, path, "", nil)

			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAPIKeyAuth_NoAPIKeyConfigured(t *testing.T) {
	rec, err := runAuth(t, "", "/api/attachments/node/1", "", nil)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_LogsFailuresWithoutCredentials(t *testing.T) {
	var buf bytes.Buffer
	secLogger := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	_, err := runAuth(t, testAPIKey, "/api/attachments/node/1", "Bearer wrong-key", secLogger)

	assertUnauthorized(t, err)
	assert.Contains(t, buf.String(), "authentication_failure")
	assert.Contains(t, buf.String(), "invalid API key")
	assert.NotContains(t, buf.String(), "wrong-key")
}

func TestAPIKeyAuth_WarnsWhenUnsecured(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	APIKeyAuth("", nil, log)

	assert.Contains(t, buf.String(), "UNSECURED")
}
