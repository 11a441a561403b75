// Package storage provides the S3-compatible object storage gateway.
//
// The service runs against Cloudflare R2, which speaks the S3 API; any
// S3-compatible endpoint works. Clients never proxy bytes through the API
// server: uploads and vision downloads use presigned URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/memora-app/memora/pkg/config"
)

// Gateway wraps the S3 client for one bucket.
type Gateway struct {
	client      *s3.Client
	presigner   *s3.PresignClient
	bucket      string
	uploadTTL   time.Duration
	downloadTTL time.Duration
}

// NewGateway builds a Gateway from storage configuration.
// Returns an error when the endpoint or credentials are missing; callers
// that can run without storage should check cfg.Configured() first.
func NewGateway(ctx context.Context, cfg config.StorageConfig) (*Gateway, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("object storage is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// R2 does not support virtual-hosted-style bucket addressing.
		o.UsePathStyle = true
	})

	return &Gateway{
		client:      client,
		presigner:   s3.NewPresignClient(client),
		bucket:      cfg.Bucket,
		uploadTTL:   cfg.UploadTTL,
		downloadTTL: cfg.DownloadTTL,
	}, nil
}

// PresignUpload returns a presigned PUT URL bound to the exact content type.
func (g *Gateway) PresignUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(g.uploadTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", objectKey, err)
	}
	return req.URL, nil
}

// PresignDownload returns a presigned GET URL, used by vision providers to
// fetch image bytes without proxying through this service.
func (g *Gateway) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(g.downloadTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", objectKey, err)
	}
	return req.URL, nil
}

// Download fetches an object's bytes.
func (g *Gateway) Download(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objectKey, err)
	}
	return data, nil
}

// Delete removes a single object. Deleting a missing key is not an error.
func (g *Gateway) Delete(ctx context.Context, objectKey string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectKey, err)
	}
	return nil
}

// DeleteSessionObjects removes every object under a session's key prefix.
// Best-effort per page; returns the first error encountered.
func (g *Gateway) DeleteSessionObjects(ctx context.Context, sessionPrefix string) error {
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(sessionPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects under %s: %w", sessionPrefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if err := g.Delete(ctx, *obj.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
