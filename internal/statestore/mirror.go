package statestore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// MirrorConfig points the remote mirror at an S3-compatible bucket.
// EndpointURL is required for non-AWS providers such as Cloudflare R2;
// leave it empty to use AWS S3's regional default endpoints.
type MirrorConfig struct {
	EndpointURL     string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ObjectKey       string // object name under Bucket; defaults to "state.db"
}

// Mirror uploads the local state file to S3-compatible object storage after
// every local rewrite. It is best-effort: the daemon's own restarts never
// depend on it, only operators inspecting or restoring state from a second
// host do.
type Mirror struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	objectKey string
	log       zerolog.Logger
}

func newMirror(cfg MirrorConfig, log zerolog.Logger) (*Mirror, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("incomplete mirror credentials")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.ObjectKey == "" {
		cfg.ObjectKey = "state.db"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.EndpointURL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.EndpointURL, HostnameImmutable: true, SigningRegion: cfg.Region}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.Concurrency = 2
	})

	return &Mirror{
		client:    client,
		uploader:  uploader,
		bucket:    cfg.Bucket,
		objectKey: cfg.ObjectKey,
		log:       log.With().Str("component", "statestore.mirror").Logger(),
	}, nil
}

// Upload pushes the file at path to the configured bucket/key.
func (m *Mirror) Upload(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.objectKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload to %s/%s: %w", m.bucket, m.objectKey, err)
	}

	m.log.Debug().Str("bucket", m.bucket).Str("key", m.objectKey).Msg("state mirrored")
	return nil
}
