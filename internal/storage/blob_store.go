package storage

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/mongo"

	"invoicedesk/internal/models"
)

var (
	ErrBlobNotFound  = errors.New("blob not found")
	ErrInvalidBlobID = errors.New("invalid blob id")
	ErrTimeout       = errors.New("blob transfer timed out")
)

// BlobStore stores original PDF bytes plus basic metadata under an opaque id.
type BlobStore interface {
	// Put consumes r and returns the metadata of the stored object.
	Put(ctx context.Context, name, contentType string, size int64, r io.Reader) (models.BlobInfo, error)
	// Open returns a stream over the object bytes. The caller must close it.
	Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error)
	Stat(ctx context.Context, id string) (models.BlobInfo, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err)
}

// mapTransferErr turns deadline failures into ErrTimeout, keeping the cause.
func mapTransferErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	if isTimeout(err) && !errors.Is(err, ErrTimeout) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// ctxReader stops a copy as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// streamReader maps read errors of a download into the package errors.
type streamReader struct {
	io.ReadCloser
}

func (s streamReader) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	return n, mapTransferErr(err)
}
