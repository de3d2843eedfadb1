package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	meta        map[string]string
	modified    time.Time
}

// fakeS3 is an in-memory s3API.
type fakeS3 struct {
	objects map[string]fakeObject
	putErr  error
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = fakeObject{
		body:        data,
		contentType: aws.ToString(in.ContentType),
		meta:        in.Metadata,
		modified:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.meta,
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.meta,
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Storage_PutOpenStat(t *testing.T) {
	fake := newFakeS3()
	store := newS3Storage(fake, "invoices")
	ctx := context.Background()
	payload := []byte("%PDF-1.4 test")

	info, err := store.Put(ctx, "acme.pdf", "application/pdf", int64(len(payload)), bytes.NewReader(payload))
	require.NoError(t, err)
	_, err = uuid.Parse(info.ID)
	require.NoError(t, err, "ids are uuids")
	assert.Equal(t, "acme.pdf", info.Filename)
	assert.Equal(t, int64(len(payload)), info.Size)

	rc, opened, err := store.Open(ctx, info.ID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "acme.pdf", opened.Filename)
	assert.Equal(t, "application/pdf", opened.ContentType)

	stat, err := store.Stat(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), stat.Size)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), stat.UploadDate)
}

func TestS3Storage_NotFoundAndInvalid(t *testing.T) {
	store := newS3Storage(newFakeS3(), "invoices")
	ctx := context.Background()

	_, err := store.Stat(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidBlobID)

	missing := uuid.NewString()
	_, _, err = store.Open(ctx, missing)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	_, err = store.Stat(ctx, missing)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, missing), ErrBlobNotFound)
}

func TestS3Storage_Delete(t *testing.T) {
	fake := newFakeS3()
	store := newS3Storage(fake, "invoices")
	ctx := context.Background()

	info, err := store.Put(ctx, "a.pdf", "application/pdf", 3, bytes.NewReader([]byte("pdf")))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, info.ID))
	assert.Equal(t, []string{s3KeyPrefix + info.ID}, fake.deleted)

	_, err = store.Stat(ctx, info.ID)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3Storage_PutTimeout(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = context.DeadlineExceeded
	store := newS3Storage(fake, "invoices")

	_, err := store.Put(context.Background(), "a.pdf", "application/pdf", 3, bytes.NewReader([]byte("pdf")))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapTransferErr(t *testing.T) {
	assert.NoError(t, mapTransferErr(nil))
	assert.Equal(t, io.EOF, mapTransferErr(io.EOF))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapTransferErr(plain))

	err := mapTransferErr(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCtxReader_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := ctxReader{ctx: ctx, r: bytes.NewReader([]byte("abc"))}
	buf := make([]byte, 1)

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancel()
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}
