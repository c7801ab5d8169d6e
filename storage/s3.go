package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/embertalk/keyserver/interfaces"
)

// S3Store persists registrations as one object per name in an S3 or
// S3-compatible bucket. Uniqueness relies on conditional writes
// (If-None-Match: *), so the winning writer is decided by the object store.
type S3Store struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Store creates an S3-backed key store.
//
// Parameters:
//   - bucketName: Target bucket
//   - prefix: Object key prefix within the bucket (may be empty)
//   - region: AWS region
//   - endpoint: Custom endpoint for S3-compatible services (may be empty)
//   - accessKey, secretKey: Static credentials; when empty the default
//     credential chain is used
//   - log: Structured logger for operational insights
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	config := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		config = config.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	if accessKey != "" && secretKey != "" {
		config = config.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:      s3.New(sess),
		bucketName:  bucketName,
		prefix:      prefix,
		log:         log,
		locationURI: fmt.Sprintf("s3://%s/%s", bucketName, prefix),
	}, nil
}

// Register binds name to pubkey with a conditional put. A concurrent or
// earlier registration of the same name makes the put fail with a
// precondition error, which maps to ErrNameTaken.
func (s *S3Store) Register(ctx context.Context, name interfaces.RegisteredName, pubkey interfaces.ClientPubkey) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(s.objectKey(name)),
		Body:        bytes.NewReader(pubkey),
		ContentType: aws.String("application/x-pem-file"),
	}, request.WithSetRequestHeaders(map[string]string{"If-None-Match": "*"}))
	if err != nil {
		if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == 412 {
			return interfaces.ErrNameTaken
		}
		return fmt.Errorf("failed to put key object: %w", err)
	}

	s.log.Debug("Registered key",
		slog.String("name", string(name)),
		slog.String("bucket", s.bucketName))
	return nil
}

// Lookup returns the public key registered under name, or ErrNotFound.
func (s *S3Store) Lookup(ctx context.Context, name interfaces.RegisteredName) (interfaces.ClientPubkey, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.objectKey(name)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read key object: %w", err)
	}

	return data, nil
}

// Available checks bucket accessibility with a HEAD request.
func (s *S3Store) Available(ctx context.Context) bool {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		s.log.Debug("S3 store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store backend.
func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

// Close is a no-op for the S3 store.
func (s *S3Store) Close() error {
	return nil
}

// objectKey maps a registered name to its object key.
func (s *S3Store) objectKey(name interfaces.RegisteredName) string {
	return path.Join(s.prefix, "keys", string(name))
}
