// Package storage reads and writes JSON documents in an S3 compatible
// bucket (MinIO in development).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"textsum-eval/internal/config"
	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
)

type Client struct {
	s3     *s3.Client
	bucket string
}

func New(ctx context.Context, c *config.Config) (*Client, error) {
	if c.MinioEndpoint == "" || c.MinioBucket == "" {
		return nil, errors.New("MINIO_ENDPOINT and MINIO_BUCKET must be set")
	}
	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.MinioAccessKey, c.MinioSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL(c.MinioEndpoint))
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &Client{s3: client, bucket: c.MinioBucket}, nil
}

// Ref formats the s3:// reference of key in this bucket.
func (c *Client) Ref(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// PutJSON writes v under key and returns its s3:// reference.
func (c *Client) PutJSON(ctx context.Context, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	ref := c.Ref(key)
	log.Debugf("stored %d bytes at %s", len(b), ref)
	return ref, nil
}

// GetJSON decodes the object at ref into v. ref is either an s3:// reference
// into this bucket or a bare key. A missing object is evaluation.ErrNotFound.
func (c *Client) GetJSON(ctx context.Context, ref string, v any) error {
	key := ref
	if strings.HasPrefix(ref, "s3://") {
		bucket, k, err := parseS3Ref(ref)
		if err != nil {
			return err
		}
		if bucket != c.bucket {
			return fmt.Errorf("ref %q is outside bucket %s", ref, c.bucket)
		}
		key = k
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("object %s: %w", key, evaluation.ErrNotFound)
		}
		log.Warnf("failed to get s3 object %s: %v", key, err)
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()
	if err := json.NewDecoder(out.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func parseS3Ref(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad s3 ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad s3 ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}

func endpointURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "http://" + endpoint
}
