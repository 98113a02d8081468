package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"formcoach/internal/analysis"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a 200 with data
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error sends an error response
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Fail maps err onto a status: input problems are 400 naming the parameter,
// everything else is a 500 with the detail kept in the request log
func Fail(c *gin.Context, err error) {
	var verr *analysis.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: verr.Error(),
			Param:   verr.Param,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.Error(err)
		Error(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		c.Error(err)
		Error(c, http.StatusInternalServerError, "internal error")
	}
}
