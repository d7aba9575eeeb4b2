package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/reglet-dev/classrunner/internal/application/ports"
)

// S3Options configures the S3 fetcher.
type S3Options struct {
	// Endpoint is host[:port] of the S3-compatible service.
	Endpoint string
	Region   string
	UseSSL   bool
	// Auth supplies the access key and secret key for Endpoint.
	Auth ports.AuthProvider
}

// S3Fetcher serves s3://bucket/key URLs through minio-go.
type S3Fetcher struct {
	opts S3Options

	once      sync.Once
	client    *minio.Client
	clientErr error
}

var _ ports.PackageFetcher = (*S3Fetcher)(nil)

// NewS3Fetcher creates an S3 fetcher. The client is built on first use so
// credentials are only resolved when an s3:// package is actually read.
func NewS3Fetcher(opts S3Options) *S3Fetcher {
	return &S3Fetcher{opts: opts}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 URL %q: %w", rawURL, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 URL: %s", rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL %q needs both bucket and key", rawURL)
	}
	return bucket, key, nil
}

// Fetch streams the object. A missing bucket or key answers
// ports.ErrPackageNotFound.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := f.getClient(ctx)
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error(rawURL, err)
	}
	// GetObject is lazy; Stat surfaces a missing object before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classifyS3Error(rawURL, err)
	}
	return obj, nil
}

func (f *S3Fetcher) getClient(ctx context.Context) (*minio.Client, error) {
	f.once.Do(func() {
		if f.opts.Endpoint == "" {
			f.clientErr = fmt.Errorf("s3 endpoint is not configured")
			return
		}

		var accessKey, secretKey string
		if f.opts.Auth != nil {
			host := f.opts.Endpoint
			if h, _, found := strings.Cut(host, ":"); found {
				host = h
			}
			accessKey, secretKey, f.clientErr = f.opts.Auth.GetCredentials(ctx, host)
			if f.clientErr != nil {
				return
			}
		}

		f.client, f.clientErr = minio.New(f.opts.Endpoint, &minio.Options{
			Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure:       f.opts.UseSSL,
			Region:       f.opts.Region,
			BucketLookup: minio.BucketLookupPath,
		})
		if f.clientErr != nil {
			f.clientErr = fmt.Errorf("failed to create s3 client: %w", f.clientErr)
		}
	})
	return f.client, f.clientErr
}

func classifyS3Error(rawURL string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%s: %w", rawURL, ports.ErrPackageNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
}
