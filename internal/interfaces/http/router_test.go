package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/handlers"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/internal/testutil"
)

func init() { gin.SetMode(gin.TestMode) }

// trackingAuth marks responses that passed through it and then defers to
// header-based identity.
func trackingAuth() gin.HandlerFunc {
	owner := middleware.HeaderOwner(testutil.NewNopLogger())
	return func(c *gin.Context) {
		c.Header("X-Auth-Applied", "1")
		owner(c)
	}
}

func newTestRouter(t *testing.T, mutate ...func(*RouterConfig)) *gin.Engine {
	t.Helper()
	svc, err := session.NewService(session.ServiceConfig{
		Store:  testutil.NewMemoryApplicationStore(),
		Logger: testutil.NewNopLogger(),
	})
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "router_test"}, testutil.NewNopLogger())
	require.NoError(t, err)

	cfg := RouterConfig{
		SessionHandler:     handlers.NewSessionHandler(svc, "admin", testutil.NewNopLogger()),
		ApplicationHandler: handlers.NewApplicationHandler(svc, "admin", testutil.NewNopLogger()),
		HealthHandler:      handlers.NewHealthHandler("test"),
		Auth:               trackingAuth(),
		Logging:            middleware.DefaultLoggingConfig(),
		Logger:             testutil.NewNopLogger(),
		MetricsCollector:   collector,
		HTTPMetrics:        prometheus.NewAppMetrics(collector),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return NewRouter(cfg)
}

func serve(r http.Handler, method, path, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if owner != "" {
		req.Header.Set(middleware.HeaderOwnerID, owner)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_HealthEndpoints_NoAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := serve(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get("X-Auth-Applied"), "%s must not pass through auth", path)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	}
}

func TestNewRouter_APIv1_RequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Auth-Applied"))

	w = serve(router, http.MethodPost, "/api/v1/sessions", "ada")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestNewRouter_SessionRoutes_Registered(t *testing.T) {
	router := newTestRouter(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sessions/x"},
		{http.MethodDelete, "/api/v1/sessions/x"},
		{http.MethodPut, "/api/v1/sessions/x/filing-type"},
		{http.MethodPost, "/api/v1/sessions/x/advance"},
		{http.MethodPost, "/api/v1/sessions/x/retreat"},
		{http.MethodPost, "/api/v1/sessions/x/reset"},
		{http.MethodPatch, "/api/v1/sessions/x/record"},
		{http.MethodGet, "/api/v1/sessions/x/validate"},
		{http.MethodGet, "/api/v1/sessions/x/report"},
		{http.MethodGet, "/api/v1/sessions/x/export"},
		{http.MethodPost, "/api/v1/sessions/x/import"},
		{http.MethodPost, "/api/v1/sessions/x/uploads"},
		{http.MethodDelete, "/api/v1/sessions/x/uploads/u"},
		{http.MethodPost, "/api/v1/sessions/x/suggestions"},
		{http.MethodPost, "/api/v1/sessions/x/documents"},
		{http.MethodPost, "/api/v1/sessions/x/save"},
		{http.MethodGet, "/api/v1/applications/x"},
		{http.MethodDelete, "/api/v1/applications/x"},
		{http.MethodPost, "/api/v1/applications/x/resume"},
	}
	for _, rt := range routes {
		w := serve(router, rt.method, rt.path, "ada")
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", rt.method, rt.path)
		assert.Contains(t, w.Body.String(), `"code":"FIL_00`, "%s %s must reach its handler", rt.method, rt.path)
	}

	w := serve(router, http.MethodGet, "/api/v1/applications", "ada")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)
	w := serve(router, http.MethodPut, "/api/v1/sessions/x/advance", "ada")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		router := NewRouter(RouterConfig{})
		w := serve(router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewRouter_TaskRateLimit(t *testing.T) {
	router := newTestRouter(t, func(cfg *RouterConfig) {
		cfg.TaskLimiter = middleware.NewTokenBucketLimiter(0.001, 1, time.Minute)
	})

	w := serve(router, http.MethodPost, "/api/v1/sessions/x/suggestions", "ada")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(router, http.MethodPost, "/api/v1/sessions/x/documents", "ada")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = serve(router, http.MethodPost, "/api/v1/sessions/x/advance", "ada")
	assert.Equal(t, http.StatusNotFound, w.Code, "wizard navigation is not limited")
}

func TestNewRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, func(cfg *RouterConfig) { cfg.MetricsPath = "/internal/metrics" })
	serve(router, http.MethodPost, "/api/v1/sessions", "ada")

	w := serve(router, http.MethodGet, "/internal/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body),
		`router_test_http_requests_total{method="POST",path="/api/v1/sessions",status_code="201"} 1`), string(body))
}

func TestNewRouter_CORS(t *testing.T) {
	router := newTestRouter(t, func(cfg *RouterConfig) {
		c := middleware.DefaultCORSConfig([]string{"https://app.example.com"})
		cfg.CORS = &c
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("X-Auth-Applied"), "preflight is answered before auth")
}

//Personal.AI order the ending
