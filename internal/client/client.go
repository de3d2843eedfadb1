// Package client is a typed HTTP client for the invoicedesk REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"invoicedesk/internal/models"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status    int
	Message   string
	Details   string
	Kind      string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Details != "" && e.Details != e.Message {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

// UploadResult is the body of a successful upload.
type UploadResult struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

// ExtractResult is the body of a successful extraction.
type ExtractResult struct {
	Invoice models.NormalizedInvoice
	Model   string
}

// Health is the body of GET /api/health.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client rooted at baseURL, for example "http://localhost:5000".
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload sends a PDF as the multipart field "pdf".
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename=%q`, filepath.Base(fileName)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out UploadResult
	if err := c.do(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the stored PDF. The caller closes the reader.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodGet, "/upload/"+url.PathEscape(fileID), "", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) Info(ctx context.Context, fileID string) (*models.BlobInfo, error) {
	var out models.BlobInfo
	if err := c.do(ctx, http.MethodGet, "/upload/"+url.PathEscape(fileID)+"/info", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/upload/"+url.PathEscape(fileID), "", nil, nil)
}

// Extract runs the named backend ("gemini" or "groq") over an uploaded file.
func (c *Client) Extract(ctx context.Context, fileID, model string) (*ExtractResult, error) {
	var out struct {
		Data  models.NormalizedInvoice `json:"data"`
		Model string                   `json:"model"`
	}
	body := map[string]string{"fileId": fileID, "model": model}
	if err := c.doJSON(ctx, http.MethodPost, "/extract", body, &out); err != nil {
		return nil, err
	}
	return &ExtractResult{Invoice: out.Data, Model: out.Model}, nil
}

// List returns the most recent records whose vendor name or number contains term.
func (c *Client) List(ctx context.Context, term string) ([]models.InvoiceRecord, error) {
	path := "/invoices"
	if term != "" {
		path += "?q=" + url.QueryEscape(term)
	}
	var out struct {
		Data []models.InvoiceRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Export downloads the list view as an XLSX workbook.
func (c *Client) Export(ctx context.Context, term string) ([]byte, error) {
	path := "/invoices/export"
	if term != "" {
		path += "?q=" + url.QueryEscape(term)
	}
	resp, err := c.send(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) Get(ctx context.Context, id string) (*models.InvoiceRecord, error) {
	return c.record(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil)
}

func (c *Client) Create(ctx context.Context, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	return c.record(ctx, http.MethodPost, "/invoices", payload)
}

func (c *Client) Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	return c.record(ctx, http.MethodPut, "/invoices/"+url.PathEscape(id), payload)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/invoices/"+url.PathEscape(id), "", nil, nil)
}

// Health returns the server status. A degraded server yields an *APIError with status 503.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) record(ctx context.Context, method, path string, payload any) (*models.InvoiceRecord, error) {
	var out struct {
		Data models.InvoiceRecord `json:"data"`
	}
	if err := c.doJSON(ctx, method, path, payload, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, path, "", nil, out)
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	resp, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send returns the response only for 2xx statuses; anything else is closed and turned into an *APIError.
func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		Details   string `json:"details"`
		Kind      string `json:"kind"`
		Retryable bool   `json:"retryable"`
		Status    string `json:"status"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		apiErr.Message = envelope.Error
		if apiErr.Message == "" {
			apiErr.Message = envelope.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = envelope.Status
		}
		apiErr.Details = envelope.Details
		apiErr.Kind = envelope.Kind
		apiErr.Retryable = envelope.Retryable
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
