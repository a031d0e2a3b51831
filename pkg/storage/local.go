package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
)

// LocalStore is a store on a mounted file system.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) path(remote string) string {
	return filepath.Join(s.root, filepath.FromSlash(remote))
}

func (s *LocalStore) URI(remote string) string {
	return s.path(remote)
}

func (s *LocalStore) Fetch(ctx context.Context, remote, localPath string) error {
	n, err := copyFile(ctx, s.path(remote), localPath)
	if err != nil {
		return err
	}
	metrics.TransferBytes.WithLabelValues("fetch", "file").Add(float64(n))
	return nil
}

func (s *LocalStore) Put(ctx context.Context, localPath, remote string) error {
	dst := s.path(remote)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create destination directory").
			WithDetail("path", filepath.Dir(dst))
	}
	n, err := copyFile(ctx, localPath, dst)
	if err != nil {
		return err
	}
	metrics.TransferBytes.WithLabelValues("put", "file").Add(float64(n))
	return nil
}

func (s *LocalStore) Exists(_ context.Context, remote string) (bool, error) {
	_, err := os.Stat(s.path(remote))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat object").WithDetail("path", s.path(remote))
	}
}

func (s *LocalStore) Delete(_ context.Context, remote string) error {
	if err := os.Remove(s.path(remote)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to delete object").WithDetail("path", s.path(remote))
	}
	return nil
}

func (s *LocalStore) Close() error {
	return nil
}

// copyFile copies src to dst through a temporary file in dst's directory, so
// dst is never left half written. Copying a file onto itself is a no-op.
func copyFile(ctx context.Context, src, dst string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeTimeout, "copy cancelled")
	}
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrap(err, errors.ErrorTypeNotFound, "source file does not exist").WithDetail("path", src)
		}
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to open source file").WithDetail("path", src)
	}
	defer in.Close()

	if srcInfo, err := in.Stat(); err == nil {
		if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
			return srcInfo.Size(), nil
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create destination file").WithDetail("path", dst)
	}
	_ = tmp.Chmod(0o644)
	n, err := io.Copy(tmp, in)
	if err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to copy file").
			WithDetail("src", src).WithDetail("dst", dst)
	}
	return n, nil
}
