package eventarchive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Archive uploads raw webhook bodies to an S3 bucket
type Archive struct {
	api    objectAPI
	bucket string
	now    func() time.Time
}

// New creates an archive client and checks that the bucket is reachable
func New(ctx context.Context, cfg *Config) (*Archive, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("webhook archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // Backblaze B2 and MinIO need path-style URLs
		}
	})

	a := newArchive(s3Client, cfg.BucketName)
	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[EventArchive] Archiving webhook payloads to bucket: %s", cfg.BucketName)
	return a, nil
}

func newArchive(api objectAPI, bucket string) *Archive {
	return &Archive{api: api, bucket: bucket, now: time.Now}
}

// Archive stores body under the delivery's object key. A zero receivedAt
// uses the current time.
func (a *Archive) Archive(ctx context.Context, source, deliveryID string, receivedAt time.Time, body []byte) error {
	if receivedAt.IsZero() {
		receivedAt = a.now()
	}
	key := ObjectKey(source, deliveryID, receivedAt)

	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"webhook-source": source,
			"upload-source":  "animora-webhooks",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Infof("[EventArchive] Archived s3://%s/%s (%d bytes)", a.bucket, key, len(body))
	return nil
}
