package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicedesk/internal/extract"
	"invoicedesk/internal/logging"
)

// respondError writes the shared failure envelope.
func respondError(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"details": details,
	})
}

// respondInternal logs err and hides it behind a generic 500.
func respondInternal(c *gin.Context, module, funcName string, data any, err error) {
	logging.LogError(module, funcName, data, err)
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}

// extractStatus maps an extraction failure kind to its HTTP status.
func extractStatus(kind extract.Kind) int {
	switch kind {
	case extract.KindNotFound:
		return http.StatusNotFound
	case extract.KindConfig, extract.KindBadRequest, extract.KindNoText:
		return http.StatusBadRequest
	case extract.KindThrottled:
		return http.StatusTooManyRequests
	case extract.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
