package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-sweet-shop/internal/application"
	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/pkg/response"
	"github.com/oksasatya/go-sweet-shop/pkg/validation"
)

const internalMessage = "internal server error"

var statusBySentinel = []struct {
	err    error
	status int
}{
	{entity.ErrSweetNotFound, http.StatusNotFound},
	{entity.ErrUserNotFound, http.StatusNotFound},
	{entity.ErrOutOfStock, http.StatusBadRequest},
	{entity.ErrDuplicateEmail, http.StatusBadRequest},
	{entity.ErrUnauthenticated, http.StatusUnauthorized},
	{entity.ErrInvalidCredentials, http.StatusUnauthorized},
	{entity.ErrForbidden, http.StatusForbidden},
	{application.ErrImageStorageUnavailable, http.StatusServiceUnavailable},
}

// statusOf maps a service error onto an HTTP status and client message.
// Unknown errors become a 500 with a fixed message.
func statusOf(err error) (int, string) {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}
	return http.StatusInternalServerError, internalMessage
}

// writeError logs server-side failures with the request id and writes the
// {message} body.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	response.Error(c, status, msg)
}

// bindError reports a malformed request body.
func bindError(c *gin.Context, err error) {
	ve := entity.NewValidationError("invalid payload", validation.ToDetails(err))
	response.Error(c, http.StatusBadRequest, ve.Error())
}
