package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aman12122/job-crawler/config"
)

// PayloadArchiver keeps raw board responses that failed to parse, so a broken
// scraper can be debugged against the exact payload that tripped it. A nil
// archiver is valid and drops everything.
type PayloadArchiver struct {
	client *s3.Client
	bucket string
}

// NewPayloadArchiver returns nil when no bucket is configured.
func NewPayloadArchiver(ctx context.Context, cfg config.ArchiveConfig) (*PayloadArchiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &PayloadArchiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive stores a raw payload under failures/{company}/{timestamp}.
func (a *PayloadArchiver) Archive(ctx context.Context, companyID int64, payload []byte) error {
	if a == nil || len(payload) == 0 {
		return nil
	}

	key := fmt.Sprintf("failures/%d/%s.raw", companyID, time.Now().UTC().Format("20060102T150405"))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
