package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"book_harvester/internal/config"
)

// ErrObjectExists is returned when an upload targets an occupied path. An
// occupied path means the dedup check missed; overwriting is never an
// option.
var ErrObjectExists = errors.New("object already exists at path")

// Writer uploads validated binaries to S3-compatible object storage.
type Writer struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

func NewWriter(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Writer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	w := &Writer{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger.With("component", "assets"),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("verify bucket %q: %w", cfg.Bucket, err)
	}

	return w, nil
}

// Exists reports whether an object occupies the path.
func (w *Writer) Exists(ctx context.Context, path string) (bool, error) {
	_, err := w.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

// Upload streams body to the path and returns the public URL. An occupied
// path fails with ErrObjectExists.
func (w *Writer) Upload(ctx context.Context, path string, body io.Reader, contentType string) (string, error) {
	occupied, err := w.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if occupied {
		return "", fmt.Errorf("%w: %s", ErrObjectExists, path)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(path),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	input.Body = body

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	url := w.PublicURL(path)
	w.logger.Debug("object stored", "path", path, "url", url)

	return url, nil
}

// PublicURL is deterministic from the path alone.
func (w *Writer) PublicURL(path string) string {
	if w.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", w.publicBaseURL, path)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", w.bucket, path)
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
