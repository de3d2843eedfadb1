package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicedesk/internal/extract"
)

// IExtractor runs one AI extraction.
type IExtractor interface {
	Extract(ctx context.Context, fileID string, backend extract.Backend) (extract.Result, error)
}

// RestExtractHandler handles POST /api/extract.
type RestExtractHandler struct {
	extractor IExtractor
}

// NewRestExtractHandler creates a new RestExtractHandler.
func NewRestExtractHandler(extractor IExtractor) *RestExtractHandler {
	return &RestExtractHandler{extractor: extractor}
}

type extractRequest struct {
	FileID string `json:"fileId" binding:"required"`
	Model  string `json:"model" binding:"required"`
}

// Extract handles POST /api/extract
func (h *RestExtractHandler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields", "fileId and model are required")
		return
	}
	backend, err := extract.ParseBackend(req.Model)
	if err != nil {
		respondExtractError(c, err)
		return
	}

	res, err := h.extractor.Extract(c.Request.Context(), req.FileID, backend)
	if err != nil {
		respondExtractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res.Invoice, "model": res.Model})
}

func respondExtractError(c *gin.Context, err error) {
	e := extract.Classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(extractStatus(e.Kind), gin.H{
		"success":   false,
		"error":     e.Message,
		"details":   err.Error(),
		"kind":      e.Kind,
		"retryable": e.Retryable,
	})
}
