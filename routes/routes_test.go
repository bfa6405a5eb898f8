package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"go-outbreak/handlers"
)

func TestSetupRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(&handlers.Handlers{Logger: zap.NewNop()}, "")

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		http.MethodGet + " /",
		http.MethodGet + " /api/outbreak/health",
		http.MethodPost + " /api/outbreak/reports",
		http.MethodPost + " /api/outbreak/detect",
		http.MethodGet + " /api/outbreak/clusters",
		http.MethodGet + " /api/outbreak/clusters/map",
		http.MethodGet + " /api/outbreak/clusters/export",
		http.MethodGet + " /api/outbreak/predictions",
		http.MethodGet + " /api/outbreak/anomalies",
		http.MethodGet + " /api/outbreak/alerts",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestSetupRouter_ClientOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(&handlers.Handlers{Logger: zap.NewNop()}, "https://outbreak.example.org")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://outbreak.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/outbreak/reports", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	// no client configured, no CORS headers
	r = SetupRouter(&handlers.Handlers{Logger: zap.NewNop()}, "")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
