package seqfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// DefaultBufferSize is the write buffer used when none is configured.
const DefaultBufferSize = 256 * 1024

type options struct {
	algorithm  compression.Algorithm
	level      compression.Level
	metadata   map[string]string
	bufferSize int
}

// Option configures a Writer.
type Option func(*options)

// WithCompression compresses every record value with algorithm a.
func WithCompression(a compression.Algorithm) Option {
	return func(o *options) {
		o.algorithm = a
	}
}

// WithCompressionLevel sets the level used by WithCompression.
func WithCompressionLevel(l compression.Level) Option {
	return func(o *options) {
		o.level = l
	}
}

// WithMetadata records a key/value pair in the header.
func WithMetadata(key, value string) Option {
	return func(o *options) {
		if o.metadata == nil {
			o.metadata = make(map[string]string)
		}
		o.metadata[key] = value
	}
}

// WithBufferSize sets the size of the write buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

func defaultOptions() options {
	return options{
		algorithm:  compression.None,
		level:      compression.Default,
		bufferSize: DefaultBufferSize,
	}
}

// Writer appends records to a container. A Writer is owned by one goroutine.
type Writer struct {
	w       *bufio.Writer
	file    *os.File
	closer  io.Closer
	comp    compression.Compressor
	header  Header
	scratch []byte
	records int64
	closed  bool

	// atomic writes land in tmpPath and are renamed to path on Close
	path    string
	tmpPath string
}

// NewWriter writes a container to w. The header is written immediately.
// Close flushes but does not close w.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	h := Header{
		Version:     Version,
		KeyType:     TypedBytesClass,
		ValueType:   TypedBytesClass,
		Compression: o.algorithm,
		Metadata:    o.metadata,
	}
	if h.Compression == "" {
		h.Compression = compression.None
	}

	sw := &Writer{
		w:      bufio.NewWriterSize(w, o.bufferSize),
		header: h,
	}
	if h.Compressed() {
		class, err := compression.CodecClass(h.Compression)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "unsupported container compression")
		}
		sw.header.Codec = class
		sw.comp, err = compression.NewCompressor(&compression.Config{Algorithm: h.Compression, Level: o.level})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "failed to create compressor")
		}
	}

	if _, err := sw.w.Write(appendHeader(nil, sw.header)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to write container header")
	}
	return sw, nil
}

// Create creates or truncates the file at path and writes a container to it.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to create container").
			WithDetail("path", path)
	}
	w, err := NewWriter(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	w.closer = f
	w.path = path
	return w, nil
}

// CreateAtomic is Create, except the container only appears at path once
// Close succeeds. Until then it is written to path + ".tmp".
func CreateAtomic(path string, opts ...Option) (*Writer, error) {
	tmp := path + ".tmp"
	w, err := Create(tmp, opts...)
	if err != nil {
		return nil, err
	}
	w.path = path
	w.tmpPath = tmp
	return w, nil
}

// Header returns the header written to the container.
func (w *Writer) Header() Header {
	return w.header
}

// Records returns the number of records appended so far.
func (w *Writer) Records() int64 {
	return w.records
}

// Path returns the final path of a file-backed writer.
func (w *Writer) Path() string {
	return w.path
}

// Append encodes key and value and appends them as one record. Calling Append
// after Close panics.
func (w *Writer) Append(key, value typedbytes.Value) error {
	if w.closed {
		panic("seqfile: Append on closed Writer")
	}
	var err error
	buf := w.scratch[:0]
	if buf, err = typedbytes.Append(buf, key); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to encode record key")
	}
	keyLen := len(buf)
	if buf, err = typedbytes.Append(buf, value); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to encode record value")
	}
	w.scratch = buf
	return w.AppendRaw(buf[:keyLen], buf[keyLen:])
}

// AppendRaw appends a record whose key and value are already encoded. The
// caller guarantees both are single well-formed values.
func (w *Writer) AppendRaw(key, value []byte) error {
	if w.closed {
		panic("seqfile: Append on closed Writer")
	}
	var length [4]byte
	if w.comp != nil {
		packed, err := w.comp.Compress(value)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to compress record value")
		}
		if uint64(len(packed)) > math.MaxUint32 {
			return errors.New(errors.ErrorTypeWriteFailure, "compressed value exceeds 4 GiB")
		}
		binary.BigEndian.PutUint32(length[:], uint32(len(packed)))
		value = packed
	}

	// nothing reaches the buffer until the record is fully encoded
	if _, err := w.w.Write(key); err != nil {
		return w.writeErr(err)
	}
	if w.comp != nil {
		if _, err := w.w.Write(length[:]); err != nil {
			return w.writeErr(err)
		}
	}
	if _, err := w.w.Write(value); err != nil {
		return w.writeErr(err)
	}
	w.records++
	return nil
}

func (w *Writer) writeErr(err error) error {
	e := errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to write record").
		WithDetail("record", w.records)
	if w.path != "" {
		e.WithDetail("path", w.path)
	}
	return e
}

// Close flushes buffered records, syncs and closes file-backed writers, and
// for atomic writers renames the file into place. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.w.Flush(); err != nil {
		w.abort()
		return errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to flush container")
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			w.abort()
			return errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to sync container")
		}
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to close container")
		}
	}
	if w.tmpPath != "" {
		if err := os.Rename(w.tmpPath, w.path); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWriteFailure, "failed to move container into place").
				WithDetail("path", w.path)
		}
	}
	return nil
}

// Discard abandons the container. Buffered records are dropped, and an atomic
// writer's temporary file is removed so nothing appears at Path. A plain file
// keeps whatever had already been flushed.
func (w *Writer) Discard() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.abort()
	if w.tmpPath != "" {
		if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove temporary container").
				WithDetail("path", w.tmpPath)
		}
	}
	return nil
}

func (w *Writer) abort() {
	if w.closer != nil {
		_ = w.closer.Close()
	}
}
