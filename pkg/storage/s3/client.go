package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/logger"
)

const defaultDownloadTTL = 10 * time.Minute

// Pinger exposes the readiness probe surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PresignedURL is a time-limited GET link to a private object.
type PresignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// Client stores sheet PDFs in a private bucket and hands out presigned links.
type Client struct {
	api     *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

// New loads AWS configuration (static keys when configured, otherwise the
// default provider chain) and binds the client to the configured bucket.
func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.Bucket), "s3 client initialized")
	}
	return newWithAPI(api, cfg.Bucket, cfg.DownloadURLTTL), nil
}

func newWithAPI(api *s3.Client, bucket string, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	return &Client{
		api:     api,
		presign: s3.NewPresignClient(api),
		bucket:  bucket,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Upload writes body under key. The body must be seekable so the request can
// be signed over plain HTTP endpoints such as MinIO.
func (c *Client) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("object key is required")
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a GET link for key valid for the configured TTL. When
// filename is set the browser is told to save the file under that name.
func (c *Client) PresignGet(ctx context.Context, key, filename string) (PresignedURL, error) {
	if strings.TrimSpace(key) == "" {
		return PresignedURL{}, errors.New("object key is required")
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(contentDisposition(filename))
	}

	issuedAt := c.now()
	req, err := c.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return PresignedURL{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return PresignedURL{URL: req.URL, ExpiresAt: issuedAt.Add(c.ttl)}, nil
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", c.bucket, err)
	}
	return nil
}

func contentDisposition(filename string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, safe, url.PathEscape(filename))
}

// Slug lowercases title and joins its ASCII letter and digit runs with dashes,
// for use as a download filename.
func Slug(title string) string {
	out := make([]rune, 0, len(title))
	dash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			dash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			dash = false
		default:
			if !dash && len(out) > 0 {
				out = append(out, '-')
				dash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
