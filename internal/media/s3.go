package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/quillpress/quill-server/internal/config"
)

// objectAPI is the subset of the S3 client the host uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadAWSConfig = awsconfig.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Host stores assets in an S3 or MinIO bucket.
type S3Host struct {
	client    objectAPI
	bucket    string
	publicURL string
	logger    *slog.Logger
}

var _ Host = (*S3Host)(nil)

// NewS3Host builds a client from static credentials.
// Path-style addressing is used so MinIO endpoints work.
func NewS3Host(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Host, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket cannot be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3Client(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.Endpoint
	}

	return &S3Host{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload puts the payload at <folder>/<uuid><ext>.
func (h *S3Host) Upload(ctx context.Context, up Upload) (Asset, error) {
	if err := validFolder(up.Folder); err != nil {
		return Asset{}, err
	}
	if up.Reader == nil {
		return Asset{}, fmt.Errorf("upload has no content")
	}

	key := up.Folder + "/" + uuid.NewString() + extensionFor(up)

	in := &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   up.Reader,
	}
	if up.ContentType != "" {
		in.ContentType = aws.String(up.ContentType)
	}
	if up.Size > 0 {
		in.ContentLength = aws.Int64(up.Size)
	}

	if _, err := h.client.PutObject(ctx, in); err != nil {
		return Asset{}, fmt.Errorf("put object %s: %w", key, err)
	}

	h.logger.Debug("uploaded asset", "bucket", h.bucket, "key", key)
	return Asset{URL: h.publicURL + "/" + h.bucket + "/" + key, AssetID: key}, nil
}

// Delete removes an object. S3 reports success for missing keys.
func (h *S3Host) Delete(ctx context.Context, assetID string) error {
	if _, _, err := splitAssetID(assetID); err != nil {
		return err
	}

	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", assetID, err)
	}
	return nil
}
