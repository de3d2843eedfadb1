package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"invoicedesk/internal/api/handlers"
	"invoicedesk/internal/export"
	"invoicedesk/internal/models"
	"invoicedesk/internal/services"
)

func setupInvoiceRouter(svc *MockInvoiceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewRestInvoiceHandler(svc)
	r := gin.New()
	r.GET("/api/invoices", h.ListInvoices)
	r.GET("/api/invoices/export", h.ExportInvoices)
	r.GET("/api/invoices/:id", h.GetInvoice)
	r.POST("/api/invoices", h.CreateInvoice)
	r.PUT("/api/invoices/:id", h.UpdateInvoice)
	r.DELETE("/api/invoices/:id", h.DeleteInvoice)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validPayload() map[string]any {
	return map[string]any{
		"fileId":         "65f000000000000000000001",
		"fileName":       "acme.pdf",
		"vendor":         map[string]any{"name": "Acme"},
		"invoiceDetails": map[string]any{"number": "INV-1", "date": "2024-03-01", "total": 10.5},
		"lineItems":      []any{map[string]any{"description": "x", "unitPrice": 10.5, "quantity": 1, "total": 10.5}},
	}
}

func TestRestInvoiceHandler_List(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	recs := []models.InvoiceRecord{{Vendor: models.Vendor{Name: "Acme"}}, {Vendor: models.Vendor{Name: "Acme 2"}}}
	svc.On("List", mock.Anything, "acme").Return(recs, nil)

	w := doJSON(r, http.MethodGet, "/api/invoices?q=acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["data"], 2)
	svc.AssertExpectations(t)
}

func TestRestInvoiceHandler_ListError(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	svc.On("List", mock.Anything, "").Return(nil, errors.New("db down"))

	w := doJSON(r, http.MethodGet, "/api/invoices", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestRestInvoiceHandler_Get(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	id := primitive.NewObjectID()
	rec := &models.InvoiceRecord{Base: models.Base{ID: id}, FileName: "a.pdf"}
	svc.On("FindByID", mock.Anything, id.Hex()).Return(rec, nil)
	svc.On("FindByID", mock.Anything, "missing").Return(nil, services.ErrInvoiceNotFound)
	svc.On("FindByID", mock.Anything, "bad").Return(nil, services.ErrInvalidID)

	w := doJSON(r, http.MethodGet, "/api/invoices/"+id.Hex(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, id.Hex(), data["id"])
	assert.Equal(t, "a.pdf", data["fileName"])

	w = doJSON(r, http.MethodGet, "/api/invoices/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/invoices/bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestInvoiceHandler_CreateSuccess(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	created := &models.InvoiceRecord{Base: models.Base{ID: primitive.NewObjectID()}, FileName: "acme.pdf"}
	svc.On("Create", mock.Anything, mock.MatchedBy(func(p models.InvoicePayload) bool {
		return p.Vendor.Name == "Acme" && p.InvoiceDetails.Number == "INV-1" && len(p.LineItems) == 1
	})).Return(created, nil)

	w := doJSON(r, http.MethodPost, "/api/invoices", validPayload())
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])
	svc.AssertExpectations(t)
}

func TestRestInvoiceHandler_CreateMissingFields(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)

	for _, field := range []string{"fileId", "fileName", "vendor", "invoiceDetails"} {
		p := validPayload()
		delete(p, field)
		w := doJSON(r, http.MethodPost, "/api/invoices", p)
		assert.Equal(t, http.StatusBadRequest, w.Code, field)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["details"])
	}

	p := validPayload()
	p["vendor"] = map[string]any{"name": "  "}
	w := doJSON(r, http.MethodPost, "/api/invoices", p)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["details"], "vendor.name")

	p = validPayload()
	p["invoiceDetails"] = map[string]any{"number": "1", "date": "2024-01-01", "total": "lots"}
	w = doJSON(r, http.MethodPost, "/api/invoices", p)
	assert.Equal(t, http.StatusBadRequest, w.Code, "non-numeric total fails decoding")

	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRestInvoiceHandler_Update(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	id := primitive.NewObjectID().Hex()
	svc.On("Update", mock.Anything, id, mock.Anything).Return(&models.InvoiceRecord{FileName: "new.pdf"}, nil)
	svc.On("Update", mock.Anything, "gone", mock.Anything).Return(nil, services.ErrInvoiceNotFound)

	w := doJSON(r, http.MethodPut, "/api/invoices/"+id, validPayload())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new.pdf", decodeBody(t, w)["data"].(map[string]any)["fileName"])

	w = doJSON(r, http.MethodPut, "/api/invoices/gone", validPayload())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestInvoiceHandler_Delete(t *testing.T) {
	svc := new(MockInvoiceService)
	r := setupInvoiceRouter(svc)
	svc.On("Delete", mock.Anything, "abc").Return(nil).Once()
	svc.On("Delete", mock.Anything, "abc").Return(services.ErrInvoiceNotFound).Once()

	w := doJSON(r, http.MethodDelete, "/api/invoices/abc", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	w = doJSON(r, http.MethodDelete, "/api/invoices/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestInvoiceHandler_Export(t *testing.T) {
	svc := &MockInvoiceService{}
	r := setupInvoiceRouter(svc)
	svc.On("List", mock.Anything, "acme").Return([]models.InvoiceRecord{
		{Vendor: models.Vendor{Name: "Acme"}, InvoiceDetails: models.InvoiceDetails{Number: "INV-1", Date: "2024-03-01"}},
	}, nil).Once()
	svc.On("List", mock.Anything, "boom").Return(nil, errors.New("db down")).Once()

	w := doJSON(r, http.MethodGet, "/api/invoices/export?q=acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoices.xlsx")
	// xlsx is a zip container
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = doJSON(r, http.MethodGet, "/api/invoices/export?q=boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	svc.AssertExpectations(t)
}
