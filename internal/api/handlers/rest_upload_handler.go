package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicedesk/internal/config"
	"invoicedesk/internal/logging"
	"invoicedesk/internal/services"
	"invoicedesk/internal/storage"
)

// multipartSlack covers multipart framing around the file part.
const multipartSlack = 1 << 20

// RestUploadHandler handles PDF upload, download and removal.
type RestUploadHandler struct {
	uploadService services.IUploadService
}

// NewRestUploadHandler creates a new RestUploadHandler.
func NewRestUploadHandler(uploadService services.IUploadService) *RestUploadHandler {
	return &RestUploadHandler{uploadService: uploadService}
}

// Upload handles POST /api/upload (multipart field "pdf").
func (h *RestUploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes+multipartSlack)

	fh, err := c.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusBadRequest, "File too large", fmt.Sprintf("maximum size is %d bytes", config.MaxUploadBytes))
			return
		}
		respondError(c, http.StatusBadRequest, "No file uploaded", "expected a PDF in multipart field \"pdf\"")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondInternal(c, "handlers", "Upload", gin.H{"filename": fh.Filename}, err)
		return
	}
	defer f.Close()

	info, err := h.uploadService.Store(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge):
			respondError(c, http.StatusBadRequest, "File too large", err.Error())
		case errors.Is(err, services.ErrInvalidUpload):
			respondError(c, http.StatusBadRequest, "Invalid file", err.Error())
		default:
			respondInternal(c, "handlers", "Upload", gin.H{"filename": fh.Filename, "size": fh.Size}, err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"fileId":   info.ID,
		"fileName": info.Filename,
		"message":  "File uploaded successfully",
	})
}

// Download handles GET /api/upload/:fileId and streams the PDF.
func (h *RestUploadHandler) Download(c *gin.Context) {
	fileID := c.Param("fileId")
	rc, info, err := h.uploadService.Open(c.Request.Context(), fileID)
	if err != nil {
		h.respondBlobError(c, "Download", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": info.Filename}))
	if info.Size > 0 {
		c.Header("Content-Length", fmt.Sprint(info.Size))
	}
	c.Status(http.StatusOK)

	written, err := io.Copy(c.Writer, rc)
	if err == nil {
		return
	}
	if written == 0 && !c.Writer.Written() {
		for _, k := range []string{"Content-Type", "Content-Disposition", "Content-Length"} {
			c.Writer.Header().Del(k)
		}
		h.respondBlobError(c, "Download", err)
		return
	}
	// Headers are gone; the client sees a truncated body.
	logging.LogError("handlers", "Download", gin.H{"fileId": fileID, "written": written}, err)
	_ = c.Error(err)
	c.Abort()
}

// Info handles GET /api/upload/:fileId/info
func (h *RestUploadHandler) Info(c *gin.Context) {
	info, err := h.uploadService.Info(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		h.respondBlobError(c, "Info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Delete handles DELETE /api/upload/:fileId
func (h *RestUploadHandler) Delete(c *gin.Context) {
	if err := h.uploadService.Remove(c.Request.Context(), c.Param("fileId")); err != nil {
		h.respondBlobError(c, "Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (h *RestUploadHandler) respondBlobError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidBlobID):
		respondError(c, http.StatusBadRequest, "Invalid file ID", err.Error())
	case errors.Is(err, storage.ErrBlobNotFound):
		respondError(c, http.StatusNotFound, "File not found", "no file with id "+c.Param("fileId"))
	case errors.Is(err, storage.ErrTimeout):
		logging.LogError("handlers", funcName, gin.H{"fileId": c.Param("fileId")}, err)
		respondError(c, http.StatusRequestTimeout, "Request timeout", err.Error())
	default:
		respondInternal(c, "handlers", funcName, gin.H{"fileId": c.Param("fileId")}, err)
	}
}
