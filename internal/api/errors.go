package api

import (
	"net/http"

	"tnf-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a domain error code to its HTTP status.
func statusFor(err error) int {
	switch service.ErrorCode(err) {
	case service.ECONFLICT:
		return http.StatusConflict
	case service.ENOTFOUND:
		return http.StatusNotFound
	case service.EINVALID:
		return http.StatusBadRequest
	case service.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case service.EFORBIDDEN:
		return http.StatusForbidden
	case service.EDECLINED:
		return http.StatusPaymentRequired
	case service.EUPSTREAM:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Internal errors keep their cause out of
// the response body.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": service.ErrorMessage(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		body["details"] = service.ErrorCode(err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
