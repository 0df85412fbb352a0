package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// ApplicationHandler handles HTTP requests for saved applications.
type ApplicationHandler struct {
	svc       *session.Service
	adminRole string
	logger    logging.Logger
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(svc *session.Service, adminRole string, logger logging.Logger) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, adminRole: adminRole, logger: logger.Named("http.application")}
}

// List handles GET /applications. Admins may pass ?owner= to list another
// owner's applications.
func (h *ApplicationHandler) List(c *gin.Context) {
	owner := middleware.OwnerID(c)
	if q := c.Query("owner"); q != "" && q != owner {
		if !middleware.HasRole(c, h.adminRole) {
			middleware.AbortWithError(c, errors.New(errors.ErrCodeForbidden, "listing another owner's applications requires the admin role"))
			return
		}
		owner = q
	}
	apps, err := h.svc.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: apps, Total: len(apps)})
}

// Get handles GET /applications/:id.
func (h *ApplicationHandler) Get(c *gin.Context) {
	if app, ok := h.authorize(c); ok {
		c.JSON(http.StatusOK, app)
	}
}

// Delete handles DELETE /applications/:id.
func (h *ApplicationHandler) Delete(c *gin.Context) {
	app, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteApplication(c.Request.Context(), app.ID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.logger.Info("application deleted",
		logging.String(logging.FieldRecordID, app.ID),
		logging.String("owner_id", middleware.OwnerID(c)))
	c.Status(http.StatusNoContent)
}

// Resume handles POST /applications/:id/resume and returns a new session
// hydrated from the stored application.
func (h *ApplicationHandler) Resume(c *gin.Context) {
	app, ok := h.authorize(c)
	if !ok {
		return
	}
	view, err := h.svc.Resume(c.Request.Context(), app.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ApplicationHandler) authorize(c *gin.Context) (*filing.Application, bool) {
	id := c.Param("id")
	app, err := h.svc.GetApplication(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return nil, false
	}
	if app.OwnerID != middleware.OwnerID(c) && !middleware.HasRole(c, h.adminRole) {
		middleware.AbortWithError(c, errors.New(errors.ErrCodeApplicationNotFound, "application not found").WithDetail(id))
		return nil, false
	}
	return app, true
}

//Personal.AI order the ending
