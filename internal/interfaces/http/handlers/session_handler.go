package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// multipartOverhead is allowed on top of the upload size limit for the
// multipart framing and form fields.
const multipartOverhead = 1 << 20

// SessionHandler handles HTTP requests for filing sessions.
type SessionHandler struct {
	svc       *session.Service
	adminRole string
	logger    logging.Logger
}

// NewSessionHandler creates a new SessionHandler. Callers holding adminRole
// may act on sessions of other owners.
func NewSessionHandler(svc *session.Service, adminRole string, logger logging.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, adminRole: adminRole, logger: logger.Named("http.session")}
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	FilingType string `json:"filingType"`
}

// SelectFilingTypeRequest is the body of PUT /sessions/:id/filing-type.
type SelectFilingTypeRequest struct {
	FilingType string `json:"filingType" binding:"required"`
}

// SuggestionsRequest is the body of POST /sessions/:id/suggestions.
type SuggestionsRequest struct {
	Field     string `json:"field" binding:"required"`
	AutoApply bool   `json:"autoApply"`
}

// DocumentRequest is the body of POST /sessions/:id/documents.
type DocumentRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	ft := filing.FilingTypeUnset
	if req.FilingType != "" {
		var err error
		if ft, err = filing.ParseFilingType(req.FilingType); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.OwnerID(c), ft)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get handles GET /sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// Discard handles DELETE /sessions/:id.
func (h *SessionHandler) Discard(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := h.svc.Discard(c.Request.Context(), view.ID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectFilingType handles PUT /sessions/:id/filing-type.
func (h *SessionHandler) SelectFilingType(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	var req SelectFilingTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ft, err := filing.ParseFilingType(req.FilingType)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.respond(c, http.StatusOK)(h.svc.SelectFilingType(c.Request.Context(), view.ID, ft))
}

// Advance handles POST /sessions/:id/advance.
func (h *SessionHandler) Advance(c *gin.Context) {
	if view, ok := h.authorize(c); ok {
		h.respond(c, http.StatusOK)(h.svc.AdvanceStep(c.Request.Context(), view.ID))
	}
}

// Retreat handles POST /sessions/:id/retreat.
func (h *SessionHandler) Retreat(c *gin.Context) {
	if view, ok := h.authorize(c); ok {
		h.respond(c, http.StatusOK)(h.svc.RetreatStep(c.Request.Context(), view.ID))
	}
}

// Reset handles POST /sessions/:id/reset.
func (h *SessionHandler) Reset(c *gin.Context) {
	if view, ok := h.authorize(c); ok {
		h.respond(c, http.StatusOK)(h.svc.Reset(c.Request.Context(), view.ID))
	}
}

// MergeFields handles PATCH /sessions/:id/record. The body is a JSON object
// of field name to value.
func (h *SessionHandler) MergeFields(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	var patch filing.Patch
	if !bindJSON(c, &patch) {
		return
	}
	h.respond(c, http.StatusOK)(h.svc.MergeFields(c.Request.Context(), view.ID, patch))
}

// Import handles POST /sessions/:id/import.
func (h *SessionHandler) Import(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	var doc filing.Document
	if !bindJSON(c, &doc) {
		return
	}
	h.respond(c, http.StatusOK)(h.svc.Import(c.Request.Context(), view.ID, doc))
}

// Export handles GET /sessions/:id/export.
func (h *SessionHandler) Export(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	doc, err := h.svc.Export(c.Request.Context(), view.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Validate handles GET /sessions/:id/validate?step=N. Without step the
// current step is validated.
func (h *SessionHandler) Validate(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	step := view.Step
	if raw := c.Query("step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.AbortWithError(c, errors.InvalidParam("step must be an integer").WithDetail(raw))
			return
		}
		step = n
	}
	res, err := h.svc.Validate(c.Request.Context(), view.ID, step)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Report handles GET /sessions/:id/report.
func (h *SessionHandler) Report(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	report, err := h.svc.Report(c.Request.Context(), view.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RequestSuggestions handles POST /sessions/:id/suggestions. The task runs
// in the background; results appear on the session.
func (h *SessionHandler) RequestSuggestions(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	var req SuggestionsRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, http.StatusAccepted)(h.svc.RequestSuggestions(c.Request.Context(), view.ID, req.Field, req.AutoApply))
}

// GenerateDocument handles POST /sessions/:id/documents.
func (h *SessionHandler) GenerateDocument(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	var req DocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, http.StatusAccepted)(h.svc.GenerateDocument(c.Request.Context(), view.ID, req.Kind))
}

// AddUpload handles POST /sessions/:id/uploads as multipart/form-data with
// a "file" part and a "category" field.
func (h *SessionHandler) AddUpload(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	limit := h.svc.UploadPolicy().MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithError(c, errors.InvalidParam("multipart field \"file\" is required").WithDetail(err.Error()))
		return
	}
	f, err := fh.Open()
	if err != nil {
		middleware.AbortWithError(c, errors.InvalidParam("uploaded file could not be read"))
		return
	}
	defer f.Close()

	cand := filing.UploadCandidate{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Size:      fh.Size,
		Category:  filing.UploadCategory(c.PostForm("category")),
	}
	out, next, err := h.svc.AddUpload(c.Request.Context(), view.ID, cand, f)
	if err != nil {
		h.logger.Warn("upload failed", logging.Err(err), logging.String(logging.FieldSessionID, view.ID))
		middleware.AbortWithError(c, err)
		return
	}
	writeOutcome(c, http.StatusCreated, out, next)
}

// RemoveUpload handles DELETE /sessions/:id/uploads/:uploadId.
func (h *SessionHandler) RemoveUpload(c *gin.Context) {
	if view, ok := h.authorize(c); ok {
		h.respond(c, http.StatusOK)(h.svc.RemoveUpload(c.Request.Context(), view.ID, c.Param("uploadId")))
	}
}

// Save handles POST /sessions/:id/save.
func (h *SessionHandler) Save(c *gin.Context) {
	view, ok := h.authorize(c)
	if !ok {
		return
	}
	app, err := h.svc.Save(c.Request.Context(), view.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// authorize loads the session named by the :id parameter. Sessions of other
// owners are reported as missing unless the caller holds the admin role.
func (h *SessionHandler) authorize(c *gin.Context) (*session.View, bool) {
	id := c.Param("id")
	view, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return nil, false
	}
	if view.OwnerID != middleware.OwnerID(c) && !middleware.HasRole(c, h.adminRole) {
		middleware.AbortWithError(c, errors.New(errors.ErrCodeSessionNotFound, "session not found").WithDetail(id))
		return nil, false
	}
	return view, true
}

func (h *SessionHandler) respond(c *gin.Context, okStatus int) func(session.Outcome, *session.View, error) {
	return func(out session.Outcome, view *session.View, err error) {
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		writeOutcome(c, okStatus, out, view)
	}
}

//Personal.AI order the ending
