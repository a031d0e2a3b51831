package storage

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
)

// GCSStore is a store in a Google Cloud Storage bucket.
type GCSStore struct {
	bucket string
	prefix string
	client *storage.Client
	handle *storage.BucketHandle
	logger *zap.Logger
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore creates a store for bucket/prefix using application default
// credentials or opts.CredentialsFile.
func NewGCSStore(ctx context.Context, bucket, prefix string, opts *Options) (*GCSStore, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	return &GCSStore{
		bucket: bucket,
		prefix: prefix,
		client: client,
		handle: client.Bucket(bucket),
		logger: opts.logger().With(zap.String("store", "gcs"), zap.String("bucket", bucket)),
	}, nil
}

func (s *GCSStore) object(remote string) *storage.ObjectHandle {
	return s.handle.Object(objectKey(s.prefix, remote))
}

func (s *GCSStore) URI(remote string) string {
	return "gs://" + s.bucket + "/" + objectKey(s.prefix, remote)
}

func (s *GCSStore) Fetch(ctx context.Context, remote, localPath string) error {
	start := time.Now()
	r, err := s.object(remote).NewReader(ctx)
	if err != nil {
		return s.wrap(err, "failed to open object", remote)
	}
	defer r.Close()

	f, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create local file").WithDetail("path", localPath)
	}
	n, err := io.Copy(f, r)
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(f.Name())
		return s.wrap(err, "failed to download object", remote)
	}
	if closeErr != nil {
		_ = os.Remove(f.Name())
		return errors.Wrap(closeErr, errors.ErrorTypeFile, "failed to close local file").WithDetail("path", localPath)
	}
	if err := os.Rename(f.Name(), localPath); err != nil {
		_ = os.Remove(f.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move download into place").WithDetail("path", localPath)
	}

	metrics.TransferBytes.WithLabelValues("fetch", "gs").Add(float64(n))
	s.logger.Debug("object downloaded",
		zap.String("object", objectKey(s.prefix, remote)),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *GCSStore) Put(ctx context.Context, localPath, remote string) error {
	start := time.Now()
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open local file").WithDetail("path", localPath)
	}
	defer f.Close()

	w := s.object(remote).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{
		"source":  filepath.Base(localPath),
		"created": time.Now().UTC().Format(time.RFC3339),
	}
	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return s.wrap(err, "failed to write object", remote)
	}
	if err := w.Close(); err != nil {
		return s.wrap(err, "failed to close object writer", remote)
	}

	metrics.TransferBytes.WithLabelValues("put", "gs").Add(float64(n))
	s.logger.Debug("object uploaded",
		zap.String("object", objectKey(s.prefix, remote)),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, remote string) (bool, error) {
	_, err := s.object(remote).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, s.wrap(err, "failed to stat object", remote)
	}
}

func (s *GCSStore) Delete(ctx context.Context, remote string) error {
	err := s.object(remote).Delete(ctx)
	if err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
		return s.wrap(err, "failed to delete object", remote)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) wrap(err error, msg, remote string) error {
	t := errors.ErrorTypeConnection
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		t = errors.ErrorTypeNotFound
	}
	return errors.Wrap(err, t, msg).WithDetail("uri", s.URI(remote))
}
