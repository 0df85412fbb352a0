// Package middleware holds the gin middleware chain of the API server and
// the error envelope shared with the handlers.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Code      errors.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Detail    string           `json:"detail,omitempty"`
	RequestID string           `json:"requestId,omitempty"`
}

// AbortWithError writes err as an ErrorBody and aborts the chain. The status
// comes from the error code; server-side failures are masked.
func AbortWithError(c *gin.Context, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		ae = errors.New(errors.ErrCodeInternal, "internal server error")
	}
	status := ae.HTTPStatus()
	body := ErrorBody{Code: ae.Code, Message: ae.Message, Detail: ae.Detail, RequestID: RequestIDFrom(c)}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		body.Message = errors.DefaultMessageForCode(ae.Code)
		body.Detail = ""
	}
	c.AbortWithStatusJSON(status, body)
}

//Personal.AI order the ending
