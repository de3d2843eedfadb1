package handlers_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"invoicedesk/internal/extract"
	"invoicedesk/internal/models"
)

// --- Mocks ---

// MockInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) List(ctx context.Context, term string) ([]models.InvoiceRecord, error) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InvoiceRecord), args.Error(1)
}

func (m *MockInvoiceService) FindByID(ctx context.Context, id string) (*models.InvoiceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceRecord), args.Error(1)
}

func (m *MockInvoiceService) Create(ctx context.Context, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceRecord), args.Error(1)
}

func (m *MockInvoiceService) Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceRecord), args.Error(1)
}

func (m *MockInvoiceService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockUploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Store(ctx context.Context, name, declaredType string, size int64, r io.Reader) (models.BlobInfo, error) {
	args := m.Called(ctx, name, declaredType, size, r)
	return args.Get(0).(models.BlobInfo), args.Error(1)
}

func (m *MockUploadService) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Get(1).(models.BlobInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(models.BlobInfo), args.Error(2)
}

func (m *MockUploadService) Info(ctx context.Context, id string) (models.BlobInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.BlobInfo), args.Error(1)
}

func (m *MockUploadService) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockExtractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, fileID string, backend extract.Backend) (extract.Result, error) {
	args := m.Called(ctx, fileID, backend)
	return args.Get(0).(extract.Result), args.Error(1)
}
