package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cabinrent/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	failures int
	calls    int
	inputs   []*s3manager.UploadInput
	bodies   [][]byte
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3manager.UploadOutput{Location: "https://bucket/" + aws.StringValue(in.Key)}, nil
}

func TestLocalStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	s, err := New(config.StorageConfig{Driver: DriverLocal, LocalPath: root}, nil)
	require.NoError(t, err)
	assert.Equal(t, DriverLocal, s.Driver())

	ctx := context.Background()
	path, err := s.Put(ctx, "reports/2025-07/payments.xlsx", []byte("xlsx"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "reports", "2025-07", "payments.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", string(data))

	src := filepath.Join(t.TempDir(), "backup_1.db")
	require.NoError(t, os.WriteFile(src, []byte("sqlite"), 0o644))
	path, err = s.UploadFile(ctx, src, "backups/backup_1.db")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = s.Put(ctx, "../escape.txt", nil, "")
	assert.Error(t, err)
	_, err = s.Put(ctx, "", nil, "")
	assert.Error(t, err)
	_, err = s.UploadFile(ctx, filepath.Join(t.TempDir(), "missing.db"), "x")
	assert.Error(t, err)
}

func TestS3Store(t *testing.T) {
	up := &fakeUploader{failures: 1}
	s := NewS3(up, config.StorageConfig{S3Bucket: "cabins", S3Region: "eu-north-1", S3Prefix: "/prod/"}, nil)
	s.retry.InitialDelay = time.Millisecond

	location, err := s.Put(context.Background(), "statements/statement_7.xlsx", []byte("data"), "application/test")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/prod/statements/statement_7.xlsx", location)
	assert.Equal(t, 2, up.calls)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "cabins", aws.StringValue(up.inputs[0].Bucket))
	assert.Equal(t, "application/test", aws.StringValue(up.inputs[0].ContentType))
	assert.Equal(t, "data", string(up.bodies[0]))
}

func TestS3StoreGivesUp(t *testing.T) {
	up := &fakeUploader{failures: 10}
	s := NewS3(up, config.StorageConfig{S3Bucket: "cabins", S3Region: "eu-north-1"}, nil)
	s.retry.InitialDelay = time.Millisecond

	_, err := s.Put(context.Background(), "a.xlsx", []byte("data"), "")
	assert.Error(t, err)
	assert.Equal(t, uploadRetry.MaxRetries, up.calls)
}

func TestUnknownDriver(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "ftp"}, nil)
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/vnd.sqlite3", contentTypeFor("x/backup.DB"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("notes"))
}
