package services

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicedesk/internal/config"
	"invoicedesk/internal/models"
	"invoicedesk/internal/storage"
)

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Put(ctx context.Context, name, contentType string, size int64, r io.Reader) (models.BlobInfo, error) {
	args := m.Called(ctx, name, contentType, size, r)
	return args.Get(0).(models.BlobInfo), args.Error(1)
}

func (m *mockBlobStore) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Get(1).(models.BlobInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(models.BlobInfo), args.Error(2)
}

func (m *mockBlobStore) Stat(ctx context.Context, id string) (models.BlobInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.BlobInfo), args.Error(1)
}

func (m *mockBlobStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBlobStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestUploadService_StoreValidation(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)
	ctx := context.Background()
	body := bytes.NewReader([]byte("%PDF"))

	_, err := svc.Store(ctx, "a.pdf", "application/pdf", 0, body)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = svc.Store(ctx, "a.pdf", "application/pdf", config.MaxUploadBytes+1, body)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Store(ctx, "a.png", "image/png", 4, body)
	assert.ErrorIs(t, err, ErrInvalidUpload)

	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func pdfBody() *bytes.Reader {
	return bytes.NewReader([]byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n"))
}

func TestUploadService_StoreAtCeiling(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)
	body := pdfBody()
	want := models.BlobInfo{ID: "abc", Filename: "max.pdf", Size: config.MaxUploadBytes}

	store.On("Put", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= config.UploadTimeout
	}), "max.pdf", "application/pdf", config.MaxUploadBytes, body).Return(want, nil).Once()

	info, err := svc.Store(context.Background(), "max.pdf", "application/pdf; charset=binary", config.MaxUploadBytes, body)
	require.NoError(t, err)
	assert.Equal(t, want, info)
	store.AssertExpectations(t)
}

func TestUploadService_StoreTimeout(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)
	store.On("Put", mock.Anything, "slow.pdf", "application/pdf", int64(10), mock.Anything).
		Return(models.BlobInfo{}, storage.ErrTimeout).Once()

	_, err := svc.Store(context.Background(), "slow.pdf", "application/pdf", 10, pdfBody())
	assert.ErrorIs(t, err, storage.ErrTimeout)
}

func TestUploadService_StoreRejectsNonPDFContent(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)

	_, err := svc.Store(context.Background(), "fake.pdf", "application/pdf", 11, bytes.NewReader([]byte("hello world")))
	assert.ErrorIs(t, err, ErrInvalidUpload)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSniffPDF(t *testing.T) {
	content := []byte("%PDF-1.4 rest of the file")

	// seekable readers are rewound
	r, ok, err := sniffPDF(bytes.NewReader(content))
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := io.ReadAll(r)
	assert.Equal(t, content, got)

	// other readers get the head replayed
	r, ok, err = sniffPDF(io.MultiReader(bytes.NewReader(content)))
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ = io.ReadAll(r)
	assert.Equal(t, content, got)

	_, ok, err = sniffPDF(bytes.NewReader([]byte("GIF89a")))
	require.NoError(t, err)
	assert.False(t, ok)
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestUploadService_OpenCancelsOnClose(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)
	body := &trackingCloser{Reader: bytes.NewReader([]byte("pdf"))}

	var seen context.Context
	store.On("Open", mock.Anything, "abc").Run(func(args mock.Arguments) {
		seen = args.Get(0).(context.Context)
	}).Return(body, models.BlobInfo{ID: "abc"}, nil).Once()

	rc, info, err := svc.Open(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)

	_, hasDeadline := seen.Deadline()
	assert.True(t, hasDeadline)
	require.NoError(t, seen.Err())

	require.NoError(t, rc.Close())
	assert.True(t, body.closed)
	assert.ErrorIs(t, seen.Err(), context.Canceled)
}

func TestUploadService_Remove(t *testing.T) {
	store := &mockBlobStore{}
	svc := NewUploadService(store)
	ctx := context.Background()

	store.On("Stat", ctx, "missing").Return(models.BlobInfo{}, storage.ErrBlobNotFound).Once()
	assert.ErrorIs(t, svc.Remove(ctx, "missing"), storage.ErrBlobNotFound)
	store.AssertNotCalled(t, "Delete", ctx, "missing")

	store.On("Stat", ctx, "abc").Return(models.BlobInfo{ID: "abc"}, nil).Once()
	store.On("Delete", ctx, "abc").Return(nil).Once()
	assert.NoError(t, svc.Remove(ctx, "abc"))
	store.AssertExpectations(t)
}

func TestIsPDFType(t *testing.T) {
	assert.True(t, IsPDFType("application/pdf"))
	assert.True(t, IsPDFType("Application/PDF"))
	assert.True(t, IsPDFType("application/pdf; name=x.pdf"))
	assert.False(t, IsPDFType("application/octet-stream"))
	assert.False(t, IsPDFType(""))
}
