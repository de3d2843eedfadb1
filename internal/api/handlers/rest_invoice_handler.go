package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicedesk/internal/export"
	"invoicedesk/internal/models"
	"invoicedesk/internal/services"
)

// RestInvoiceHandler handles REST requests for invoice records.
type RestInvoiceHandler struct {
	invoiceService services.IInvoiceService
}

// NewRestInvoiceHandler creates a new RestInvoiceHandler.
func NewRestInvoiceHandler(invoiceService services.IInvoiceService) *RestInvoiceHandler {
	return &RestInvoiceHandler{invoiceService: invoiceService}
}

// ListInvoices handles GET /api/invoices?q=
func (h *RestInvoiceHandler) ListInvoices(c *gin.Context) {
	records, err := h.invoiceService.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondInternal(c, "handlers", "ListInvoices", gin.H{"q": c.Query("q")}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": records, "count": len(records)})
}

// ExportInvoices handles GET /api/invoices/export?q= and returns the list view as a workbook.
func (h *RestInvoiceHandler) ExportInvoices(c *gin.Context) {
	records, err := h.invoiceService.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondInternal(c, "handlers", "ExportInvoices", gin.H{"q": c.Query("q")}, err)
		return
	}
	data, err := export.InvoicesXLSX(records)
	if err != nil {
		respondInternal(c, "handlers", "ExportInvoices", gin.H{"count": len(records)}, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, export.ContentType, data)
}

// GetInvoice handles GET /api/invoices/:id
func (h *RestInvoiceHandler) GetInvoice(c *gin.Context) {
	rec, err := h.invoiceService.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, "GetInvoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// CreateInvoice handles POST /api/invoices
func (h *RestInvoiceHandler) CreateInvoice(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	rec, err := h.invoiceService.Create(c.Request.Context(), payload)
	if err != nil {
		respondInternal(c, "handlers", "CreateInvoice", gin.H{"fileId": payload.FileID}, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rec})
}

// UpdateInvoice handles PUT /api/invoices/:id
func (h *RestInvoiceHandler) UpdateInvoice(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	rec, err := h.invoiceService.Update(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		h.respondLookupError(c, "UpdateInvoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *RestInvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondLookupError(c, "DeleteInvoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Invoice deleted successfully"})
}

func (h *RestInvoiceHandler) respondLookupError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidID):
		respondError(c, http.StatusBadRequest, "Invalid invoice ID", err.Error())
	case errors.Is(err, services.ErrInvoiceNotFound):
		respondError(c, http.StatusNotFound, "Invoice not found", "no invoice with id "+c.Param("id"))
	default:
		respondInternal(c, "handlers", funcName, gin.H{"id": c.Param("id")}, err)
	}
}

// bindPayload decodes the body and enforces the required fields. It writes the 400 itself.
func bindPayload(c *gin.Context) (models.InvoicePayload, bool) {
	var payload models.InvoicePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields", err.Error())
		return payload, false
	}
	if err := payload.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields", err.Error())
		return payload, false
	}
	return payload, true
}
