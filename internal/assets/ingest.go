package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxAssetBytes bounds how much of a remote image is buffered before upload.
const maxAssetBytes = 20 << 20

const defaultContentType = "application/octet-stream"

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Asset describes a remote image mirrored into owned storage.
type Asset struct {
	SourceURL string
	Bucket    string
	Key       string
	PublicURL string
}

// FetchError is returned when the source image cannot be downloaded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching asset %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching asset %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UploadError is returned when the object store rejects the upload.
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading asset to s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Ingester downloads remote images and re-uploads them as public objects.
type Ingester struct {
	s3         ObjectPutter
	region     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewIngester(s3Client ObjectPutter, region string, fetchTimeout time.Duration, logger *slog.Logger) *Ingester {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Ingester{
		s3:         s3Client,
		region:     region,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// Upload fetches sourceURL and stores the exact bytes at bucket/key with
// public-read visibility. The returned URL is built from the region, bucket
// and key; the object store is not asked for it.
func (in *Ingester) Upload(ctx context.Context, sourceURL, bucket, key string) (string, error) {
	asset, err := in.Ingest(ctx, sourceURL, bucket, key)
	if err != nil {
		return "", err
	}
	return asset.PublicURL, nil
}

func (in *Ingester) Ingest(ctx context.Context, sourceURL, bucket, key string) (*Asset, error) {
	start := time.Now()

	body, contentType, err := in.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	_, err = in.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return nil, &UploadError{Bucket: bucket, Key: key, Err: err}
	}

	asset := &Asset{
		SourceURL: sourceURL,
		Bucket:    bucket,
		Key:       key,
		PublicURL: PublicURL(bucket, in.region, key),
	}

	in.logger.Info("asset ingested",
		"bucket", bucket,
		"key", key,
		"content_type", contentType,
		"size_bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return asset, nil
}

func (in *Ingester) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", &FetchError{URL: sourceURL, Err: err}
	}

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &FetchError{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, "", &FetchError{URL: sourceURL, Err: err}
	}
	if len(body) > maxAssetBytes {
		return nil, "", &FetchError{URL: sourceURL, Err: fmt.Errorf("asset exceeds %d bytes", maxAssetBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return body, contentType, nil
}

// PublicURL returns the virtual-hosted style URL of an S3 object.
func PublicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
