package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSecurityHeaders(t *testing.T, hsts bool, h echo.HandlerFunc) (http.Header, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)
	err := SecurityHeaders(hsts)(h)(c)
	return rec.Header(), err
}

func TestSecurityHeaders_JSONOnlyPolicy(t *testing.T) {
	hdr, err := runSecurityHeaders(t, false, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	require.NoError(t, err)

	assert.Equal(t, "nosniff", hdr.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", hdr.Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", hdr.Get("Content-Security-Policy"))
	assert.Equal(t, "no-referrer", hdr.Get("Referrer-Policy"))
	assert.Equal(t, "no-store", hdr.Get("Cache-Control"))
	assert.Empty(t, hdr.Get("Strict-Transport-Security"), "HSTS must stay off without TLS")
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	hdr, err := runSecurityHeaders(t, true, func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	require.NoError(t, err)
	assert.Equal(t, "max-age=31536000; includeSubDomains", hdr.Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_SetOnErrors(t *testing.T) {
	hdr, err := runSecurityHeaders(t, false, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
	assert.Equal(t, "no-store", hdr.Get("Cache-Control"))
}
