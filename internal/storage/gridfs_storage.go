package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoicedesk/internal/models"
)

const uploadsBucket = "uploads"

// GridFSStorage keeps blobs in a GridFS bucket of the record database.
type GridFSStorage struct {
	db *mongo.Database
}

// NewGridFSStorage creates a BlobStore backed by GridFS.
func NewGridFSStorage(db *mongo.Database) *GridFSStorage {
	return &GridFSStorage{db: db}
}

type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   struct {
		ContentType  string `bson:"contentType"`
		OriginalName string `bson:"originalName"`
	} `bson:"metadata"`
}

func (f gridFile) info() models.BlobInfo {
	name := f.Metadata.OriginalName
	if name == "" {
		name = f.Filename
	}
	return models.BlobInfo{
		ID:          f.ID.Hex(),
		Filename:    name,
		ContentType: f.Metadata.ContentType,
		Size:        f.Length,
		UploadDate:  f.UploadDate,
	}
}

// bucket returns a bucket scoped to one call; deadlines are bucket state and must not be shared.
func (s *GridFSStorage) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(uploadsBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(deadline)
		_ = b.SetWriteDeadline(deadline)
	}
	return b, nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidBlobID, id)
	}
	return oid, nil
}

// Put streams r into a new GridFS file. A failed or timed-out write is aborted so no chunks linger.
func (s *GridFSStorage) Put(ctx context.Context, name, contentType string, size int64, r io.Reader) (models.BlobInfo, error) {
	b, err := s.bucket(ctx)
	if err != nil {
		return models.BlobInfo{}, err
	}
	meta := bson.M{"contentType": contentType, "originalName": name}
	us, err := b.OpenUploadStream(name, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to open upload stream: %w", err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = us.SetWriteDeadline(deadline)
	}

	written, err := io.Copy(us, ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = us.Abort()
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to write gridfs file: %w", err))
	}
	if err := us.Close(); err != nil {
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to finalize gridfs file: %w", err))
	}

	oid, _ := us.FileID.(primitive.ObjectID)
	return models.BlobInfo{
		ID:          oid.Hex(),
		Filename:    name,
		ContentType: contentType,
		Size:        written,
		UploadDate:  time.Now().UTC(),
	}, nil
}

// Open returns a download stream bounded by ctx's deadline.
func (s *GridFSStorage) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, models.BlobInfo{}, err
	}
	info, err := s.stat(ctx, oid)
	if err != nil {
		return nil, models.BlobInfo{}, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, models.BlobInfo{}, err
	}
	ds, err := b.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, models.BlobInfo{}, ErrBlobNotFound
		}
		return nil, models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to open download stream: %w", err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = ds.SetReadDeadline(deadline)
	}
	return streamReader{ReadCloser: ds}, info, nil
}

// Stat returns metadata for id.
func (s *GridFSStorage) Stat(ctx context.Context, id string) (models.BlobInfo, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return models.BlobInfo{}, err
	}
	return s.stat(ctx, oid)
}

func (s *GridFSStorage) stat(ctx context.Context, oid primitive.ObjectID) (models.BlobInfo, error) {
	var f gridFile
	err := s.db.Collection(uploadsBucket+".files").FindOne(ctx, bson.M{"_id": oid}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.BlobInfo{}, ErrBlobNotFound
		}
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to read gridfs metadata: %w", err))
	}
	return f.info(), nil
}

// Delete removes the file document and its chunks.
func (s *GridFSStorage) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := b.DeleteContext(ctx, oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete gridfs file: %w", err)
	}
	return nil
}

// Ping checks that the backing database answers.
func (s *GridFSStorage) Ping(ctx context.Context) error {
	return s.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}
