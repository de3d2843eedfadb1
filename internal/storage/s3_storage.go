package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"invoicedesk/internal/config"
	"invoicedesk/internal/models"
)

const (
	s3KeyPrefix        = "uploads/"
	s3OriginalNameMeta = "original-name"
)

// s3API is the subset of *s3.Client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Storage keeps blobs as objects in one bucket, keyed by a uuid.
type S3Storage struct {
	client s3API
	bucket string
	now    func() time.Time
}

// NewS3Storage creates an S3-backed BlobStore. AwsS3Endpoint switches to path-style
// addressing for S3-compatible servers.
func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, cfg.AwsS3Bucket), nil
}

func newS3Storage(client s3API, bucket string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, now: time.Now}
}

func (s *S3Storage) key(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlobID, id)
	}
	return s3KeyPrefix + strings.ToLower(id), nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// Put uploads r under a fresh uuid key.
func (s *S3Storage) Put(ctx context.Context, name, contentType string, size int64, r io.Reader) (models.BlobInfo, error) {
	id := uuid.NewString()
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3KeyPrefix + id),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{s3OriginalNameMeta: name},
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to put object %s: %w", id, err))
	}
	return models.BlobInfo{
		ID:          id,
		Filename:    name,
		ContentType: contentType,
		Size:        size,
		UploadDate:  s.now().UTC(),
	}, nil
}

// Open fetches the object body. The body honours ctx cancellation.
func (s *S3Storage) Open(ctx context.Context, id string) (io.ReadCloser, models.BlobInfo, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, models.BlobInfo{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, models.BlobInfo{}, ErrBlobNotFound
		}
		return nil, models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to get object %s: %w", id, err))
	}
	info := objectInfo(id, out.Metadata, out.ContentType, out.ContentLength, out.LastModified)
	return streamReader{ReadCloser: out.Body}, info, nil
}

// Stat reads object metadata without the body.
func (s *S3Storage) Stat(ctx context.Context, id string) (models.BlobInfo, error) {
	key, err := s.key(id)
	if err != nil {
		return models.BlobInfo{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return models.BlobInfo{}, ErrBlobNotFound
		}
		return models.BlobInfo{}, mapTransferErr(fmt.Errorf("failed to head object %s: %w", id, err))
	}
	return objectInfo(id, out.Metadata, out.ContentType, out.ContentLength, out.LastModified), nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is checked first.
func (s *S3Storage) Delete(ctx context.Context, id string) error {
	if _, err := s.Stat(ctx, id); err != nil {
		return err
	}
	key, _ := s.key(id)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

func (s *S3Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func objectInfo(id string, meta map[string]string, contentType *string, length *int64, modified *time.Time) models.BlobInfo {
	info := models.BlobInfo{
		ID:          id,
		Filename:    meta[s3OriginalNameMeta],
		ContentType: aws.ToString(contentType),
		Size:        aws.ToInt64(length),
	}
	if modified != nil {
		info.UploadDate = modified.UTC()
	}
	if info.Filename == "" {
		info.Filename = id + ".pdf"
	}
	return info
}
