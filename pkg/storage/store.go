// Package storage moves conversion inputs and outputs between a shared store
// and local staging directories.
//
// A store is rooted at a URI:
//
//	/data/runs, file:///data/runs   local or network file system
//	s3://bucket/prefix              Amazon S3 or an S3 compatible endpoint
//	gs://bucket/prefix              Google Cloud Storage
//
// Remote names passed to a Store are slash separated and relative to its root.
package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// Store is a shared file store.
type Store interface {
	// Fetch copies remote to localPath, replacing any existing file.
	Fetch(ctx context.Context, remote, localPath string) error
	// Put copies localPath to remote, replacing any existing object.
	Put(ctx context.Context, localPath, remote string) error
	// Exists reports whether remote exists.
	Exists(ctx context.Context, remote string) (bool, error)
	// Delete removes remote. Deleting a missing object is not an error.
	Delete(ctx context.Context, remote string) error
	// URI returns the full URI of remote.
	URI(remote string) string
	Close() error
}

// Options configures remote stores. Local stores ignore it.
type Options struct {
	Region          string // S3 region
	Endpoint        string // Custom S3 or GCS endpoint, e.g. a MinIO server
	CredentialsFile string // Shared credentials file (S3) or service account key (GCS)
	PartSize        int64  // S3 multipart upload part size in bytes
	Concurrency     int    // S3 parts uploaded in parallel
	Logger          *zap.Logger
}

// DefaultOptions returns the options used when Open is given none.
func DefaultOptions() *Options {
	return &Options{
		Region:      "us-east-1",
		PartSize:    16 * 1024 * 1024,
		Concurrency: 4,
	}
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Location is a parsed store URI.
type Location struct {
	Scheme string // "file", "s3" or "gs"
	Bucket string // empty for file
	Path   string // prefix within the bucket, or a local directory
}

// ParseLocation parses a store URI. Plain paths are local.
func ParseLocation(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return Location{}, errors.New(errors.ErrorTypeConfig, "empty store location")
		}
		return Location{Scheme: "file", Path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid store location").WithDetail("uri", uri)
	}
	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" {
			p = path.Join(u.Host, p)
		}
		return Location{Scheme: "file", Path: p}, nil
	case "s3", "gs":
		if u.Host == "" {
			return Location{}, errors.Newf(errors.ErrorTypeConfig, "%s location has no bucket", u.Scheme).WithDetail("uri", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	default:
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported store scheme %q", u.Scheme).WithDetail("uri", uri)
	}
}

// Open opens the store rooted at uri. A nil opts uses DefaultOptions.
func Open(ctx context.Context, uri string, opts *Options) (Store, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	switch loc.Scheme {
	case "s3":
		return NewS3Store(ctx, loc.Bucket, loc.Path, opts)
	case "gs":
		return NewGCSStore(ctx, loc.Bucket, loc.Path, opts)
	default:
		return NewLocalStore(loc.Path), nil
	}
}

// Resolve opens the store holding the object at uri and returns the object's
// name within it.
func Resolve(ctx context.Context, uri string, opts *Options) (Store, string, error) {
	trimmed := strings.TrimRight(uri, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return NewLocalStore("."), trimmed, nil
	}
	root, name := trimmed[:i], trimmed[i+1:]
	if strings.HasSuffix(root, ":/") || root == "" {
		// "s3://bucket/key" splits after the bucket; "/key" is at the file system root
		root += "/"
	}
	st, err := Open(ctx, root, opts)
	if err != nil {
		return nil, "", err
	}
	return st, name, nil
}

// objectKey joins a store prefix and a remote name.
func objectKey(prefix, remote string) string {
	remote = strings.TrimLeft(remote, "/")
	if prefix == "" {
		return remote
	}
	return prefix + "/" + remote
}
