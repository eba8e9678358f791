package eventarchive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animora/animora/internal/pkg/env"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.body = b
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 1, 31, 23, 30, 0, 0, time.FixedZone("X", -5*3600))
	// Converted to UTC before bucketing.
	assert.Equal(t, "webhooks/creem/2026/02/abc.json", ObjectKey("Creem", "abc", at))
	assert.Equal(t, "webhooks/creem/2026/01/abc.json", ObjectKey("creem", "abc", at.Add(-6*time.Hour)))
	assert.Equal(t, "webhooks/unknown/2026/02/abc.json", ObjectKey("", "abc", at))
}

func TestArchiveUploadsBody(t *testing.T) {
	fake := &fakeS3{}
	a := newArchive(fake, "animora-webhooks")
	a.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, a.Archive(context.Background(), "creem", "d-1", time.Time{}, []byte(`{"type":"x"}`)))
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "animora-webhooks", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "webhooks/creem/2026/07/d-1.json", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "application/json", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, `{"type":"x"}`, string(fake.body))
}

func TestArchiveUploadError(t *testing.T) {
	a := newArchive(&fakeS3{err: errors.New("denied")}, "b")
	err := a.Archive(context.Background(), "creem", "d-1", time.Now(), []byte(`{}`))
	assert.ErrorContains(t, err, "denied")
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(func() { env.Env = nil })

	env.Env = map[string]string{"WEBHOOK_ARCHIVE_ENABLED": "false"}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())

	env.Env = map[string]string{"WEBHOOK_ARCHIVE_ENABLED": "true", "S3_ACCESS_KEY_ID": "k"}
	_, err = LoadConfig()
	assert.Error(t, err)

	env.Env = map[string]string{
		"WEBHOOK_ARCHIVE_ENABLED": "true",
		"S3_ACCESS_KEY_ID":        "k",
		"S3_SECRET_ACCESS_KEY":    "s",
		"S3_BUCKET_NAME":          "b",
	}
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "b", cfg.BucketName)
}

func TestNewDisabled(t *testing.T) {
	_, err := New(context.Background(), &Config{})
	assert.Error(t, err)
}
