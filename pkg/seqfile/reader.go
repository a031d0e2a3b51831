package seqfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"iter"
	"os"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// Reader iterates the records of a container in write order.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	header Header
	comp   compression.Compressor
	buf    []byte
	index  int64
	err    error
}

// NewReader reads the header from r and configures decompression from it.
func NewReader(r io.Reader) (*Reader, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, DefaultBufferSize)
	}
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	sr := &Reader{r: br, header: h}
	if h.Compressed() {
		sr.comp, err = compression.NewCompressor(&compression.Config{Algorithm: h.Compression})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "failed to create decompressor")
		}
	}
	return sr, nil
}

// Open opens the container at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "container does not exist").WithDetail("path", path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open container").WithDetail("path", path)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the container header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF after the last one. Once Next has
// returned an error it keeps returning it.
func (r *Reader) Next() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		return Record{}, err
	}
	r.index++
	return rec, nil
}

func (r *Reader) next() (Record, error) {
	key, err := typedbytes.ReadValue(r.r)
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, r.recordErr(err, "failed to read record key")
	}

	if r.comp == nil {
		value, err := typedbytes.ReadValue(r.r)
		if err != nil {
			if err == io.EOF {
				err = errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeMalformedEncoding, "record has no value")
			}
			return Record{}, r.recordErr(err, "failed to read record value")
		}
		return Record{Key: key, Value: value}, nil
	}

	var n [4]byte
	if _, err := io.ReadFull(r.r, n[:]); err != nil {
		return Record{}, r.recordErr(truncation(err), "failed to read compressed value length")
	}
	size := binary.BigEndian.Uint32(n[:])
	if uint64(size) > MaxCompressedValue {
		return Record{}, r.recordErr(errors.Newf(errors.ErrorTypeMalformedEncoding, "compressed value of %d bytes exceeds limit", size), "invalid record")
	}
	// grow from what is actually present rather than the declared size
	r.buf = r.buf[:0]
	for remaining := int(size); remaining > 0; {
		chunk := min(remaining, 1<<20)
		start := len(r.buf)
		r.buf = append(r.buf, make([]byte, chunk)...)
		if _, err := io.ReadFull(r.r, r.buf[start:]); err != nil {
			return Record{}, r.recordErr(truncation(err), "failed to read compressed value")
		}
		remaining -= chunk
	}
	plain, err := r.comp.Decompress(r.buf)
	if err != nil {
		return Record{}, r.recordErr(errors.Wrap(err, errors.ErrorTypeMalformedEncoding, "corrupt compressed value"), "failed to read record value")
	}
	value, used, err := typedbytes.Decode(plain)
	if err != nil {
		return Record{}, r.recordErr(err, "failed to decode record value")
	}
	if used != len(plain) {
		return Record{}, r.recordErr(errors.New(errors.ErrorTypeMalformedEncoding, "trailing bytes after compressed value"), "failed to decode record value")
	}
	return Record{Key: key, Value: value}, nil
}

func truncation(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeMalformedEncoding, "truncated record")
	}
	return errors.Wrap(err, errors.ErrorTypeFile, "read failed")
}

func (r *Reader) recordErr(err error, msg string) error {
	return errors.Wrap(err, errors.TypeOf(err), msg).WithDetail("record", r.index)
}

// All iterates the remaining records. Iteration stops after the first error,
// which is yielded with a zero Record; a clean end of file yields nothing.
func (r *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}

// ReadAll reads every record of the container at path.
func ReadAll(path string) (Header, []Record, error) {
	r, err := Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	var records []Record
	for rec, err := range r.All() {
		if err != nil {
			return r.Header(), records, err
		}
		records = append(records, rec)
	}
	return r.Header(), records, nil
}
