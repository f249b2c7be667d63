// Package response writes the JSON bodies shared by every handler.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Message string `json:"message"`
}

// JSON writes data as the response body.
func JSON(ctx *gin.Context, status int, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	ctx.JSON(status, data)
}

// Error aborts the chain and writes {"message": message}.
func Error(ctx *gin.Context, status int, message string) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	ctx.AbortWithStatusJSON(status, ErrorBody{Message: message})
}
