package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	appconfig "github.com/baechuer/cityevents/services/crop-service/internal/config"
)

// S3Client wraps the AWS S3 client for MinIO/R2. Originals live in the raw
// bucket, processed images in the public bucket.
type S3Client struct {
	client       *s3.Client
	rawBucket    string
	publicBucket string
	cdnBaseURL   string
	log          zerolog.Logger
}

// NewS3Client creates a new S3 client configured for MinIO or R2.
func NewS3Client(cfg *appconfig.Config, log zerolog.Logger) (*S3Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.S3Endpoint,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.S3Region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &S3Client{
		client:       client,
		rawBucket:    cfg.RawBucket,
		publicBucket: cfg.PublicBucket,
		cdnBaseURL:   cfg.CDNBaseURL,
		log:          log,
	}, nil
}

// ReadHead reads at most n leading bytes of an original image.
func (c *S3Client) ReadHead(ctx context.Context, objectKey string, n int64) ([]byte, error) {
	return c.readHead(ctx, c.rawBucket, objectKey, n)
}

// ReadPublicHead reads the first n bytes of a processed image.
func (c *S3Client) ReadPublicHead(ctx context.Context, objectKey string, n int64) ([]byte, error) {
	return c.readHead(ctx, c.publicBucket, objectKey, n)
}

func (c *S3Client) readHead(ctx context.Context, bucket, objectKey string, n int64) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, n))
}

// PublicObjectExists checks if a processed image exists in the public bucket.
func (c *S3Client) PublicObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.publicBucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", objectKey, err)
	}
	return true, nil
}

// EnsureBuckets creates the raw and public buckets if they don't exist.
func (c *S3Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.rawBucket, c.publicBucket} {
		_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			c.log.Info().Str("bucket", bucket).Msg("creating bucket")
			_, createErr := c.client.CreateBucket(ctx, &s3.CreateBucketInput{
				Bucket: aws.String(bucket),
			})
			if createErr != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, createErr)
			}
		}
	}
	return nil
}

// PublicURL returns the public URL for a processed object.
func (c *S3Client) PublicURL(objectKey string) string {
	return c.cdnBaseURL + "/" + objectKey
}
