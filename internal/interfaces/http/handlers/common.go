// Package handlers holds the gin handlers of the filing assistant API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// MutationResponse is the body of every session operation.
type MutationResponse struct {
	Outcome session.Outcome `json:"outcome"`
	Session *session.View   `json:"session"`
}

// ListResponse wraps collections.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// writeOutcome writes an accepted outcome with okStatus. A rejected outcome
// keeps the same body and takes its status from the rejection code, 422 for
// plain state rejections.
func writeOutcome(c *gin.Context, okStatus int, out session.Outcome, view *session.View) {
	status := okStatus
	if !out.Accepted {
		status = http.StatusUnprocessableEntity
		if out.Code != "" {
			if s := errors.HTTPStatusForCode(out.Code); s >= 400 && s < 500 {
				status = s
			}
		}
	}
	c.JSON(status, MutationResponse{Outcome: out, Session: view})
}

// bindJSON decodes the request body into dst, aborting with 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
		return false
	}
	return true
}

//Personal.AI order the ending
