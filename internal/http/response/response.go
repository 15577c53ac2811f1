// Package response implements the API envelope every endpoint answers with:
// {success, error_code, message, data}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
)

type Envelope struct {
	Success   bool        `json:"success"`
	ErrorCode string      `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data"`
}

func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Error renders a failure envelope with the HTTP status derived from the
// error kind. Internal errors are masked so driver details never leak to
// clients.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		message = "Internal server error"
	}
	c.JSON(statusFor(kind), Envelope{
		Success:   false,
		ErrorCode: kind.String(),
		Message:   message,
	})
}

// AbortError is Error plus aborting the gin handler chain, for middleware.
func AbortError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict, apperr.KindEventInProgress:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindLimitExceeded:
		return http.StatusTooManyRequests
	case apperr.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
