package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderAudit is the S3 prefix for audit archive objects.
const FolderAudit = "audit"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AuditBucket     string
}

// S3 uploads audit archives to the configured bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using static credentials when configured,
// falling back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else if logger != nil {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// AuditKey builds the object key for one export batch.
func AuditKey(guildID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", FolderAudit, guildID, at.UTC().Format("2006-01-02T15-04-05Z"))
}

// UploadAuditBatch uploads a JSON-encoded audit batch and returns the object key.
func (s *S3) UploadAuditBatch(ctx context.Context, guildID string, body []byte) (string, error) {
	key := AuditKey(guildID, time.Now())
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AuditBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload audit batch: %w", err)
	}
	s.logger.Info("audit batch uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return key, nil
}
