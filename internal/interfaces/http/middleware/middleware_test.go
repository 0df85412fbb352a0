package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/IPFiling-Assistant/internal/testutil"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ─────────────────────────────────────────────────────────────────────────────
// Request id, errors, recovery
// ─────────────────────────────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestAbortWithError(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/missing", func(c *gin.Context) {
		AbortWithError(c, errors.New(errors.ErrCodeSessionNotFound, "session not found").WithDetail("s-1"))
	})
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, errors.Wrap(assert.AnError, errors.ErrCodeDatabaseError, "select failed: secret dsn"))
	})
	r.GET("/foreign", func(c *gin.Context) { AbortWithError(c, assert.AnError) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, errors.ErrCodeSessionNotFound, body.Code)
	assert.Equal(t, "s-1", body.Detail)
	assert.NotEmpty(t, body.RequestID)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body = decodeError(t, w)
	assert.NotContains(t, body.Message, "secret")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/foreign", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decodeError(t, w).Code)
}

func TestRecovery(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, log.HasMessage("error", "panic recovered"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging
// ─────────────────────────────────────────────────────────────────────────────

type recordedRequest struct {
	method, path string
	status       int
}

type fakeHTTPMetrics struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeHTTPMetrics) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{method, path, status})
}

func TestRequestLogging_Levels(t *testing.T) {
	log := testutil.NewMockLogger()
	metrics := &fakeHTTPMetrics{}
	r := gin.New()
	r.Use(RequestLogging(log, DefaultLoggingConfig(), metrics))
	r.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/ok/42", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/bad", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.True(t, log.HasMessage("info", "HTTP request completed"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
	assert.True(t, log.HasMessage("error", "HTTP request completed with server error"))
	route, ok := log.Field("HTTP request completed", "route")
	require.True(t, ok)
	assert.Equal(t, "/ok/:id", route)

	require.Len(t, metrics.seen, 4)
	assert.Equal(t, recordedRequest{http.MethodGet, "/ok/:id", http.StatusOK}, metrics.seen[0])
	assert.Equal(t, "unmatched", metrics.seen[3].path)
}

func TestRequestLogging_Slow(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, LoggingConfig{SlowThreshold: time.Nanosecond}, nil))
	r.GET("/", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, log.HasMessage("warn", "HTTP request completed (slow)"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Auth
// ─────────────────────────────────────────────────────────────────────────────

func ownerEcho(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"owner": OwnerID(c), "admin": HasRole(c, "ipfiling-admin")})
}

func TestAuthenticate(t *testing.T) {
	secret := []byte("s3cret")
	r := gin.New()
	r.Use(Authenticate(keycloak.NewHMACVerifier(secret, ""), testutil.NewNopLogger()))
	r.GET("/me", ownerEcho)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "user-7",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{"roles": []interface{}{"ipfiling-admin"}},
	}).SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"owner":"user-7","admin":true}`, w.Body.String())

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic dXNlcjpwYXNz",
		"invalid": "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := serve(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, errors.ErrCodeUnauthorized, decodeError(t, w).Code)
		})
	}
}

func TestHeaderOwner(t *testing.T) {
	r := gin.New()
	r.Use(HeaderOwner(testutil.NewNopLogger()))
	r.GET("/me", ownerEcho)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderOwnerID, " dev-user ")
	w := serve(r, req)
	assert.JSONEq(t, `{"owner":"dev-user","admin":false}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// CORS
// ─────────────────────────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://app.example.com", "*.filing.dev"})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	pre := httptest.NewRequest(http.MethodOptions, "/x", nil)
	pre.Header.Set("Origin", "https://app.example.com")
	w := serve(r, pre)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://eu.filing.dev")
	w = serve(r, req)
	assert.Equal(t, "https://eu.filing.dev", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"*"})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(r, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) {
		var v map[string]string
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"k":"a long value"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rate limit
// ─────────────────────────────────────────────────────────────────────────────

func TestTokenBucketLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewTokenBucketLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, info = l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, info.RetryAfter)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok, "refilled")

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.BucketCount(), "idle buckets swept")
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(HeaderOwner(testutil.NewNopLogger()), RateLimit(NewTokenBucketLimiter(0.001, 1, 0)))
	r.POST("/task", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	call := func(owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/task", nil)
		req.Header.Set(HeaderOwnerID, owner)
		return serve(r, req)
	}
	assert.Equal(t, http.StatusAccepted, call("ada").Code)

	w := call("ada")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusAccepted, call("grace").Code)
}

//Personal.AI order the ending
