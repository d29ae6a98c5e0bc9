package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

var uploadRetry = worker.RetryPolicy{
	MaxRetries:    3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2,
}

// Store keeps generated files either on the local disk or in an S3 bucket.
type Store struct {
	driver   string
	root     string
	bucket   string
	prefix   string
	region   string
	uploader s3manageriface.UploaderAPI
	retry    worker.RetryPolicy
	logger   *zerolog.Logger
}

// New builds the archive configured in cfg. S3 credentials come from the default AWS chain.
func New(cfg config.StorageConfig, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	switch cfg.Driver {
	case DriverLocal, "":
		if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		logger.Info().Str("path", cfg.LocalPath).Msg("Using local archive storage")
		return &Store{driver: DriverLocal, root: cfg.LocalPath, retry: uploadRetry, logger: logger}, nil
	case DriverS3:
		awsCfg := &aws.Config{Region: aws.String(cfg.S3Region)}
		if cfg.S3Endpoint != "" {
			awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
			awsCfg.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Str("region", cfg.S3Region).Msg("Using S3 archive storage")
		return NewS3(s3manager.NewUploader(sess), cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NewS3 wraps an existing uploader.
func NewS3(uploader s3manageriface.UploaderAPI, cfg config.StorageConfig, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		driver:   DriverS3,
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
		region:   cfg.S3Region,
		uploader: uploader,
		retry:    uploadRetry,
		logger:   logger,
	}
}

func (s *Store) Driver() string {
	return s.driver
}

// Put stores data under key and returns where it ended up.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	if s.driver == DriverLocal {
		return s.writeLocal(key, data)
	}

	var location string
	err = worker.Retry(ctx, s.retry, func(ctx context.Context) error {
		out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.objectKey(key)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return err
		}
		location = out.Location
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("key", key).Msg("S3 upload failed, retrying")
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	if location == "" {
		location = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, s.objectKey(key))
	}

	s.logger.Info().Str("location", location).Int("bytes", len(data)).Msg("Archived object")
	return location, nil
}

// UploadFile archives an existing file from disk.
func (s *Store) UploadFile(ctx context.Context, localPath, key string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	return s.Put(ctx, key, data, contentTypeFor(localPath))
}

func (s *Store) writeLocal(key string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	s.logger.Info().Str("path", path).Int("bytes", len(data)).Msg("Archived file")
	return path, nil
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// cleanKey rejects keys that would escape the archive root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	if key == "" {
		return "", fmt.Errorf("archive key is empty")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid archive key %q", key)
		}
	}
	return key, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".db":
		return "application/vnd.sqlite3"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
