package storage

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
)

// S3Store is a store in an S3 bucket.
type S3Store struct {
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	logger     *zap.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates a store for bucket/prefix. Credentials come from the
// default AWS chain, optionally narrowed to opts.CredentialsFile.
func NewS3Store(ctx context.Context, bucket, prefix string, opts *Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.CredentialsFile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedCredentialsFiles([]string{opts.CredentialsFile}))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			// S3 compatible servers rarely implement trailing checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &S3Store{
		bucket: bucket,
		prefix: prefix,
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if opts.PartSize > 0 {
				u.PartSize = max(opts.PartSize, manager.MinUploadPartSize)
			}
			if opts.Concurrency > 0 {
				u.Concurrency = opts.Concurrency
			}
		}),
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			if opts.Concurrency > 0 {
				d.Concurrency = opts.Concurrency
			}
		}),
		logger: opts.logger().With(zap.String("store", "s3"), zap.String("bucket", bucket)),
	}, nil
}

func (s *S3Store) key(remote string) string {
	return objectKey(s.prefix, remote)
}

func (s *S3Store) URI(remote string) string {
	return "s3://" + s.bucket + "/" + s.key(remote)
}

func (s *S3Store) Fetch(ctx context.Context, remote, localPath string) error {
	start := time.Now()
	f, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create local file").WithDetail("path", localPath)
	}
	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remote)),
	})
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, errors.ErrorTypeFile, "failed to close local file")
	}
	if err == nil {
		if err = os.Rename(f.Name(), localPath); err != nil {
			err = errors.Wrap(err, errors.ErrorTypeFile, "failed to move download into place")
		}
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return s.wrap(err, "failed to download object", remote)
	}

	metrics.TransferBytes.WithLabelValues("fetch", "s3").Add(float64(n))
	s.logger.Debug("object downloaded",
		zap.String("key", s.key(remote)),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *S3Store) Put(ctx context.Context, localPath, remote string) error {
	start := time.Now()
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open local file").WithDetail("path", localPath)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to stat local file").WithDetail("path", localPath)
	}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(remote)),
		Body:        f,
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"source":  filepath.Base(localPath),
			"created": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return s.wrap(err, "failed to upload object", remote)
	}

	metrics.TransferBytes.WithLabelValues("put", "s3").Add(float64(info.Size()))
	s.logger.Debug("object uploaded",
		zap.String("location", result.Location),
		zap.Int64("bytes", info.Size()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *S3Store) Exists(ctx context.Context, remote string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remote)),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, s.wrap(err, "failed to stat object", remote)
}

func (s *S3Store) Delete(ctx context.Context, remote string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(remote)),
	})
	if err != nil && !isS3NotFound(err) {
		return s.wrap(err, "failed to delete object", remote)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) wrap(err error, msg, remote string) error {
	t := errors.ErrorTypeConnection
	switch {
	case isS3NotFound(err):
		t = errors.ErrorTypeNotFound
	case errors.IsType(err, errors.ErrorTypeFile):
		t = errors.ErrorTypeFile
	}
	return errors.Wrap(err, t, msg).WithDetail("uri", s.URI(remote))
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if stderrors.As(err, &noKey) || stderrors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
