// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"

	"agency-gamification/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 API the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver stores season snapshots in a Cloudflare R2 bucket.
type R2Archiver struct {
	client ObjectPutter
	bucket string
}

// NewR2Archiver builds an S3 client against the account's R2 endpoint.
func NewR2Archiver(ctx context.Context, cfg config.R2Config) (*R2Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return NewR2ArchiverWithClient(client, cfg.Bucket), nil
}

func NewR2ArchiverWithClient(client ObjectPutter, bucket string) *R2Archiver {
	return &R2Archiver{client: client, bucket: bucket}
}

// ArchiveSeason uploads payload as a JSON object under key.
func (a *R2Archiver) ArchiveSeason(ctx context.Context, key string, payload []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}
