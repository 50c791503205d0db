package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	allowList := []string{"https://app.reel-places.com", "*.example.org", "localhost:8081"}
	tests := []struct {
		name           string
		method         string
		origin         string
		expectedStatus int
		expectedCORS   bool
	}{
		{name: "no origin", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "exact origin", method: http.MethodGet, origin: "https://app.reel-places.com", expectedStatus: http.StatusOK, expectedCORS: true},
		{name: "exact origin wrong scheme", method: http.MethodGet, origin: "http://app.reel-places.com", expectedStatus: http.StatusOK},
		{name: "exact origin preflight", method: http.MethodOptions, origin: "https://app.reel-places.com", expectedStatus: http.StatusNoContent, expectedCORS: true},
		{name: "wildcard apex", method: http.MethodGet, origin: "https://example.org", expectedStatus: http.StatusOK, expectedCORS: true},
		{name: "wildcard subdomain", method: http.MethodGet, origin: "https://a.b.example.org", expectedStatus: http.StatusOK, expectedCORS: true},
		{name: "wildcard lookalike", method: http.MethodGet, origin: "https://notexample.org", expectedStatus: http.StatusOK},
		{name: "host and port", method: http.MethodGet, origin: "http://localhost:8081", expectedStatus: http.StatusOK, expectedCORS: true},
		{name: "case insensitive", method: http.MethodGet, origin: "https://APP.Reel-Places.com", expectedStatus: http.StatusOK, expectedCORS: true},
		{name: "disallowed preflight", method: http.MethodOptions, origin: "https://evil.com", expectedStatus: http.StatusForbidden},
		{name: "disallowed get", method: http.MethodGet, origin: "https://evil.com", expectedStatus: http.StatusOK},
		{name: "malformed origin", method: http.MethodGet, origin: "not a url", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(newCORS(allowList))
			router.Any("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSAllowAll(t *testing.T) {
	setupGinTestMode()

	router := gin.New()
	router.Use(newCORS([]string{"*"}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://anything.dev")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://anything.dev", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSEmptyAllowList(t *testing.T) {
	setupGinTestMode()

	router := gin.New()
	router.Use(newCORS(nil))
	router.Any("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://app.reel-places.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
