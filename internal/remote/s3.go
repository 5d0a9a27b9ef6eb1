package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"privateer/internal/checksum"
)

const blake3MetadataKey = "blake3"

type S3 struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	storageClass types.StorageClass
}

func NewS3(ctx context.Context, bucket, region, endpoint string, storageClass types.StorageClass, maxRetryAttempts int) (*S3, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(region))

	if maxRetryAttempts > 0 {
		configOpts = append(configOpts,
			awsconfig.WithRetryMaxAttempts(maxRetryAttempts),
			awsconfig.WithRetryMode(aws.RetryModeStandard),
		)
		slog.Debug("Configured S3 retry strategy", "mode", "standard", "maxAttempts", maxRetryAttempts)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if endpoint != "" {
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
				cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
			}
		}
	}

	var client *s3.Client
	if endpoint != "" {
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		slog.Info("S3 client initialized with custom endpoint", "endpoint", endpoint)
	} else {
		client = s3.NewFromConfig(cfg)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 64 * 1024 * 1024
	})

	return &S3{
		client:       client,
		uploader:     uploader,
		bucket:       bucket,
		storageClass: storageClass,
	}, nil
}

func objectKey(remotePath string) string {
	return strings.TrimPrefix(path.Clean("/"+remotePath), "/")
}

// ProbeDir checks bucket access. Prefixes have no existence of their own in S3.
func (s *S3) ProbeDir(ctx context.Context, _ string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head bucket %s: %w", s.bucket, err)
	}
	return true, nil
}

func (s *S3) Probe(ctx context.Context, remotePath string) (bool, error) {
	_, err := s.head(ctx, remotePath)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3) head(ctx context.Context, remotePath string) (*s3.HeadObjectOutput, error) {
	key := objectKey(remotePath)
	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return output, nil
}

// Fetch downloads the object and checks it against the blake3 metadata
// recorded by Push, when present.
func (s *S3) Fetch(ctx context.Context, remotePath, localDir string) (string, error) {
	info, err := s.head(ctx, remotePath)
	if err != nil {
		return "", err
	}

	key := objectKey(remotePath)
	localPath := filepath.Join(localDir, path.Base(key))
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	downloader := manager.NewDownloader(s.client)
	numBytes, err := downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	slog.Info("Downloaded from S3", "bucket", s.bucket, "key", key, "bytes", numBytes)

	if expected := info.Metadata[blake3MetadataKey]; expected != "" {
		if err := checksum.Verify(localPath, expected); err != nil {
			return "", err
		}
		slog.Info("BLAKE3 verified", "key", key, "hash", expected)
	}
	return localPath, nil
}

func (s *S3) Push(ctx context.Context, localPath, remotePath string) error {
	blake3Hash, err := checksum.BLAKE3File(localPath)
	if err != nil {
		return fmt.Errorf("failed to calculate BLAKE3: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := objectKey(remotePath)
	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         file,
		StorageClass: s.storageClass,
		Metadata:     map[string]string{blake3MetadataKey: blake3Hash},
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	slog.Info("Uploaded to S3", "bucket", s.bucket, "key", key, "storageClass", s.storageClass, "blake3", blake3Hash)
	return nil
}

func (s *S3) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

// ValidateStorageClass rejects classes whose objects cannot be read back without a thaw request.
func ValidateStorageClass(storageClass string) error {
	if storageClass == "GLACIER" || storageClass == "DEEP_ARCHIVE" {
		return fmt.Errorf("storage class %s is not immediately accessible (requires restore)", storageClass)
	}
	return nil
}
