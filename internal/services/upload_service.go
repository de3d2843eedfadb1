package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"invoicedesk/internal/config"
	"invoicedesk/internal/models"
	"invoicedesk/internal/storage"
)

const (
	pdfContentType = "application/pdf"
	sniffLen       = 512
)

var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrFileTooLarge  = errors.New("file exceeds the upload size limit")
)

// IUploadService stores and serves the original PDF files.
type IUploadService interface {
	Store(ctx context.Context, name, declaredType string, size int64, r io.Reader) (models.BlobInfo, error)
	Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error)
	Info(ctx context.Context, id string) (models.BlobInfo, error)
	Remove(ctx context.Context, id string) error
}

type uploadService struct {
	store storage.BlobStore
}

// NewUploadService creates a new UploadService over store.
func NewUploadService(store storage.BlobStore) IUploadService {
	return &uploadService{store: store}
}

// IsPDFType reports whether a declared content type is application/pdf, ignoring parameters.
func IsPDFType(declared string) bool {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, pdfContentType)
}

// Store validates the upload and writes it to the blob store within the upload timeout.
func (s *uploadService) Store(ctx context.Context, name, declaredType string, size int64, r io.Reader) (models.BlobInfo, error) {
	switch {
	case size <= 0:
		return models.BlobInfo{}, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	case size > config.MaxUploadBytes:
		return models.BlobInfo{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, config.MaxUploadBytes)
	case !IsPDFType(declaredType):
		return models.BlobInfo{}, fmt.Errorf("%w: only PDF files are allowed, got %q", ErrInvalidUpload, declaredType)
	}

	body, isPDF, err := sniffPDF(r)
	if err != nil {
		return models.BlobInfo{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if !isPDF {
		return models.BlobInfo{}, fmt.Errorf("%w: content is not a PDF document", ErrInvalidUpload)
	}

	ctx, cancel := context.WithTimeout(ctx, config.UploadTimeout)
	defer cancel()

	info, err := s.store.Put(ctx, name, pdfContentType, size, body)
	if err != nil {
		return models.BlobInfo{}, fmt.Errorf("failed to store %q: %w", name, err)
	}
	return info, nil
}

// Open returns a stream bounded by the download timeout. Closing it releases the timer.
func (s *uploadService) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DownloadTimeout)
	rc, info, err := s.store.Open(ctx, id)
	if err != nil {
		cancel()
		return nil, models.BlobInfo{}, err
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, info, nil
}

func (s *uploadService) Info(ctx context.Context, id string) (models.BlobInfo, error) {
	return s.store.Stat(ctx, id)
}

// Remove confirms the blob exists before deleting it.
func (s *uploadService) Remove(ctx context.Context, id string) error {
	if _, err := s.store.Stat(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// sniffPDF checks the leading bytes and returns a reader positioned at the start again.
func sniffPDF(r io.Reader) (io.Reader, bool, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	head = head[:n]
	isPDF := mimetype.Detect(head).Is(pdfContentType)

	if seeker, ok := r.(io.ReadSeeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, false, err
		}
		return seeker, isPDF, nil
	}
	return io.MultiReader(bytes.NewReader(head), r), isPDF, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
