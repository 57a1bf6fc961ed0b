// Package s3archive archives retention-pruned closed positions to an
// S3-compatible object store (AWS S3, MinIO, R2).
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/storage"
)

// ClientConfig holds the configuration for connecting to an S3-compatible
// object store.
type ClientConfig struct {
	// Endpoint is the S3-compatible endpoint URL. Leave empty for AWS S3.
	Endpoint string

	Region string
	Bucket string

	// AccessKey and SecretKey are optional; the default AWS credential
	// chain is used when both are empty.
	AccessKey string
	SecretKey string

	// Prefix is prepended to every object key.
	Prefix string

	// ForcePathStyle puts the bucket in the path rather than the host.
	ForcePathStyle bool
}

// uploader is the part of manager.Uploader the archive uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archive writes batches of closed positions as JSON Lines objects under
// <prefix>closed-positions/YYYY/MM/DD/.
type Archive struct {
	up     uploader
	bucket string
	prefix string
	now    func() time.Time
}

var _ storage.Archive = (*Archive)(nil)

// New creates an Archive from cfg.
func New(ctx context.Context, cfg ClientConfig) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3archive: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3archive: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return newArchive(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func newArchive(up uploader, bucket, prefix string) *Archive {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Archive{up: up, bucket: bucket, prefix: prefix, now: time.Now}
}

// ArchivePositions uploads positions as one object. An empty batch is a no-op.
func (a *Archive) ArchivePositions(ctx context.Context, positions []*domain.Position) error {
	if len(positions) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, p := range positions {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("s3archive: encode position %s: %w", p.ID, err)
		}
	}

	key := a.objectKey(len(positions))
	_, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3archive: upload %s: %w", key, err)
	}
	return nil
}

func (a *Archive) objectKey(count int) string {
	now := a.now().UTC()
	return fmt.Sprintf("%sclosed-positions/%s/%d-%d.jsonl",
		a.prefix, now.Format("2006/01/02"), now.UnixMilli(), count)
}

// normaliseEndpoint ensures the endpoint has a scheme, defaulting to https.
func normaliseEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return endpoint
	}
	return "https://" + endpoint
}
