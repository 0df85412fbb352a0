package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/internal/testutil"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

const adminRole = "ipfiling-admin"

func init() { gin.SetMode(gin.TestMode) }

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobs) Upload(_ context.Context, key string, body io.Reader, _ int64, _ session.BlobMetadata) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return "mem://" + key, nil
}

func (m *memBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref[len("mem://"):])
	return nil
}

func (m *memBlobs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type stubSuggester struct{}

func (stubSuggester) Suggest(context.Context, session.SuggestionRequest) ([]string, error) {
	return []string{"Widget", "Self-cleaning widget"}, nil
}

type apiFixture struct {
	engine *gin.Engine
	svc    *session.Service
	store  *testutil.MemoryApplicationStore
	blobs  *memBlobs
}

// identity stands in for the auth middleware: X-Owner-ID names the caller
// and X-Roles grants a single role.
func identity(c *gin.Context) {
	owner := c.GetHeader(middleware.HeaderOwnerID)
	if owner == "" {
		middleware.AbortWithError(c, errors.New(errors.ErrCodeUnauthorized, "no owner"))
		return
	}
	claims := &keycloak.Claims{Subject: owner}
	if role := c.GetHeader("X-Roles"); role != "" {
		claims.Roles = []string{role}
	}
	c.Request = c.Request.WithContext(keycloak.WithClaims(c.Request.Context(), claims))
	c.Next()
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		store: testutil.NewMemoryApplicationStore(),
		blobs: &memBlobs{objects: map[string][]byte{}},
	}
	svc, err := session.NewService(session.ServiceConfig{
		Store:     f.store,
		Blobs:     f.blobs,
		Suggester: stubSuggester{},
		Logger:    testutil.NewNopLogger(),
	})
	require.NoError(t, err)
	f.svc = svc
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	sh := NewSessionHandler(svc, adminRole, testutil.NewNopLogger())
	ah := NewApplicationHandler(svc, adminRole, testutil.NewNopLogger())

	r := gin.New()
	api := r.Group("/api/v1", identity)
	api.POST("/sessions", sh.Create)
	s := api.Group("/sessions/:id")
	s.GET("", sh.Get)
	s.DELETE("", sh.Discard)
	s.PUT("/filing-type", sh.SelectFilingType)
	s.POST("/advance", sh.Advance)
	s.POST("/retreat", sh.Retreat)
	s.POST("/reset", sh.Reset)
	s.PATCH("/record", sh.MergeFields)
	s.GET("/validate", sh.Validate)
	s.GET("/report", sh.Report)
	s.GET("/export", sh.Export)
	s.POST("/import", sh.Import)
	s.POST("/uploads", sh.AddUpload)
	s.DELETE("/uploads/:uploadId", sh.RemoveUpload)
	s.POST("/suggestions", sh.RequestSuggestions)
	s.POST("/documents", sh.GenerateDocument)
	s.POST("/save", sh.Save)
	api.GET("/applications", ah.List)
	api.GET("/applications/:id", ah.Get)
	api.DELETE("/applications/:id", ah.Delete)
	api.POST("/applications/:id/resume", ah.Resume)
	f.engine = r
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, owner string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(middleware.HeaderOwnerID, owner)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createSession(t *testing.T, owner, filingType string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/sessions", owner, map[string]string{"filingType": filingType})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v.ID
}

func decodeMutation(t *testing.T, w *httptest.ResponseRecorder) MutationResponse {
	t.Helper()
	var resp MutationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func patentBasics() map[string]interface{} {
	return map[string]interface{}{
		"title":         "Self-cleaning widget",
		"inventorNames": []string{"Ada Lovelace"},
		"inventionType": "utility",
		"briefSummary":  "A widget that cleans itself.",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionHandler_CreateAndGet(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "patent")

	w := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "ada", v.OwnerID)
	assert.Equal(t, 4, v.StepCount)
	assert.Equal(t, "Basic Info", v.StepNames[0])

	w = f.do(t, http.MethodPost, "/api/v1/sessions", "ada", nil)
	assert.Equal(t, http.StatusCreated, w.Code, "filing type is optional")

	w = f.do(t, http.MethodPost, "/api/v1/sessions", "ada", map[string]string{"filingType": "design"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidFilingType, decodeError(t, w).Code)

	w = f.do(t, http.MethodGet, "/api/v1/sessions/missing", "ada", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_OwnerIsolation(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "patent")

	w := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrCodeSessionNotFound, decodeError(t, w).Code)

	w = f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "root", nil, "X-Roles", adminRole)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "ada", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "ada", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_WizardFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "patent")
	base := "/api/v1/sessions/" + id

	w := f.do(t, http.MethodPost, base+"/advance", "ada", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeMutation(t, w)
	assert.False(t, resp.Outcome.Accepted)
	assert.Len(t, resp.Outcome.MissingFields, 4)
	assert.Equal(t, 1, resp.Session.Step)

	w = f.do(t, http.MethodPatch, base+"/record", "ada", patentBasics())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeMutation(t, w).Outcome.Accepted)

	w = f.do(t, http.MethodPatch, base+"/record", "ada", map[string]interface{}{"markText": "ACME"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown field")
	assert.Equal(t, errors.ErrCodeUnknownField, decodeMutation(t, w).Outcome.Code)

	w = f.do(t, http.MethodGet, base+"/validate?step=1", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isValid":true`)

	w = f.do(t, http.MethodGet, base+"/validate?step=abc", "ada", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, base+"/advance", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeMutation(t, w).Session.Step)

	w = f.do(t, http.MethodPost, base+"/retreat", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeMutation(t, w).Session.Step)

	w = f.do(t, http.MethodGet, base+"/report", "ada", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, base+"/export", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "patent", doc["filingType"])

	w = f.do(t, http.MethodPost, base+"/reset", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, base+"/import", "ada", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeMutation(t, w).Outcome.Accepted)
}

func TestSessionHandler_SelectFilingType(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "")
	base := "/api/v1/sessions/" + id

	w := f.do(t, http.MethodPut, base+"/filing-type", "ada", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, base+"/filing-type", "ada", map[string]string{"filingType": "Trademark"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeMutation(t, w)
	assert.True(t, resp.Outcome.Accepted)
	assert.Equal(t, 3, resp.Session.StepCount)
}

func TestSessionHandler_Tasks(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "patent")
	base := "/api/v1/sessions/" + id

	w := f.do(t, http.MethodPost, base+"/suggestions", "ada", map[string]interface{}{"field": "title"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Eventually(t, func() bool {
		v, err := f.svc.Get(context.Background(), id)
		return err == nil && len(v.Suggestions["title"]) == 2
	}, 2*time.Second, 10*time.Millisecond)

	w = f.do(t, http.MethodPost, base+"/suggestions", "ada", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, base+"/documents", "ada", map[string]string{"kind": "claims"})
	assert.Equal(t, http.StatusForbidden, w.Code, "no renderer configured")
	assert.Equal(t, errors.ErrCodeFeatureDisabled, decodeMutation(t, w).Outcome.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Uploads
// ─────────────────────────────────────────────────────────────────────────────

func multipartUpload(t *testing.T, name, mediaType, category string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	if category != "" {
		require.NoError(t, mw.WriteField("category", category))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *apiFixture) upload(t *testing.T, id, owner, name, mediaType, category string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartUpload(t, name, mediaType, category, []byte("\x89PNG fake image"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/uploads", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(middleware.HeaderOwnerID, owner)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSessionHandler_Uploads(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "trademark")

	w := f.upload(t, id, "ada", "logo.png", "image/png", "logo")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeMutation(t, w)
	require.True(t, resp.Outcome.Accepted)
	require.Len(t, resp.Session.Uploads, 1)
	assert.Equal(t, 1, f.blobs.len())

	w = f.upload(t, id, "ada", "tool.exe", "application/x-msdownload", "logo")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.False(t, decodeMutation(t, w).Outcome.Accepted)

	w = f.upload(t, id, "ada", "logo.png", "image/png", "drawings")
	assert.Equal(t, http.StatusBadRequest, w.Code, "patent category on a trademark")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/uploads", nil)
	req.Header.Set(middleware.HeaderOwnerID, "ada")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	uploadID := resp.Session.Uploads[0].ID
	w = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/uploads/"+uploadID, "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeMutation(t, w).Session.Uploads)
	assert.Equal(t, 0, f.blobs.len())
}

// ─────────────────────────────────────────────────────────────────────────────
// Applications
// ─────────────────────────────────────────────────────────────────────────────

func TestApplicationHandler_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "patent")
	f.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/record", "ada", patentBasics())

	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/save", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var app map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))
	appID, _ := app["id"].(string)
	require.NotEmpty(t, appID)
	assert.Equal(t, 1, f.store.Len())

	w = f.do(t, http.MethodGet, "/api/v1/applications", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = f.do(t, http.MethodGet, "/api/v1/applications", "mallory", nil)
	assert.Contains(t, w.Body.String(), `"total":0`)
	w = f.do(t, http.MethodGet, "/api/v1/applications?owner=ada", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/applications?owner=ada", "root", nil, "X-Roles", adminRole)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = f.do(t, http.MethodGet, "/api/v1/applications/"+appID, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, decodeError(t, w).Code)

	w = f.do(t, http.MethodPost, "/api/v1/applications/"+appID+"/resume", "ada", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resumed session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resumed))
	assert.NotEqual(t, id, resumed.ID)
	assert.Equal(t, appID, resumed.ApplicationID)

	w = f.do(t, http.MethodDelete, "/api/v1/applications/"+appID, "ada", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/applications/"+appID, "ada", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_SaveBeforeFilingType(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t, "ada", "")
	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/save", "ada", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	healthy := CheckerFunc("postgres", func(context.Context) error { return nil })
	broken := CheckerFunc("redis", func(context.Context) error { return assert.AnError })

	serveProbe := func(h *HealthHandler, path string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := serveProbe(NewHealthHandler("1.2.3", broken), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)

	w = serveProbe(NewHealthHandler("1.2.3"), "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serveProbe(NewHealthHandler("1.2.3", healthy), "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":{"status":"healthy"`)

	w = serveProbe(NewHealthHandler("1.2.3", healthy, broken), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
	assert.Equal(t, assert.AnError.Error(), resp.Components["redis"].Error)
}

//Personal.AI order the ending
