// Package seqfile reads and writes container files: an append-only sequence of
// typed bytes key/value records behind a small self-describing header.
//
// The header mirrors a Hadoop SequenceFile header closely enough that the key
// and value classes and the compression codec travel with the data:
//
//	magic "TBS" | version | keyType | valueType | compressed | [codec] | metadata
//
// Strings in the header are Hadoop Text (zero-compressed VInt length followed
// by UTF-8 bytes). Records follow the header back to back with no sync markers
// and no trailer. When the header marks the file compressed, each value is
// stored as a 4-byte big-endian length followed by the codec's output; keys are
// never compressed so a reader can scan keys cheaply.
package seqfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

const (
	// Magic opens every container file.
	Magic = "TBS"
	// Version is the only format version this package writes.
	Version byte = 1
	// TypedBytesClass is recorded as both key and value type.
	TypedBytesClass = "org.apache.hadoop.typedbytes.TypedBytesWritable"

	// MaxTextLength caps header strings when reading.
	MaxTextLength = 1 << 20
	// MaxMetadata caps the number of header metadata pairs when reading.
	MaxMetadata = 1 << 16
	// MaxCompressedValue caps a single compressed value when reading.
	MaxCompressedValue = 1 << 31
)

// Record is one key/value pair in write order.
type Record struct {
	Key   typedbytes.Value
	Value typedbytes.Value
}

// Header describes a container.
type Header struct {
	Version     byte
	KeyType     string
	ValueType   string
	Compression compression.Algorithm
	Codec       string
	Metadata    map[string]string
}

// Compressed reports whether record values pass through a codec.
func (h Header) Compressed() bool {
	return h.Compression != "" && h.Compression != compression.None
}

func (h Header) sortedMetadataKeys() []string {
	keys := make([]string, 0, len(h.Metadata))
	for k := range h.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendHeader(dst []byte, h Header) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, h.Version)
	dst = appendText(dst, h.KeyType)
	dst = appendText(dst, h.ValueType)
	if h.Compressed() {
		dst = append(dst, 1)
		dst = appendText(dst, h.Codec)
	} else {
		dst = append(dst, 0)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(h.Metadata)))
	for _, k := range h.sortedMetadataKeys() {
		dst = appendText(dst, k)
		dst = appendText(dst, h.Metadata[k])
	}
	return dst
}

func readHeader(r *bufio.Reader) (Header, error) {
	var h Header
	magic := make([]byte, len(Magic)+1)
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, headerErr(err, "failed to read container magic")
	}
	if string(magic[:len(Magic)]) != Magic {
		return h, errors.New(errors.ErrorTypeMalformedEncoding, "not a container file: bad magic").
			WithDetail("magic", string(magic[:len(Magic)]))
	}
	h.Version = magic[len(Magic)]
	if h.Version != Version {
		return h, errors.Newf(errors.ErrorTypeMalformedEncoding, "unsupported container version %d", h.Version)
	}

	var err error
	if h.KeyType, err = readText(r); err != nil {
		return h, err
	}
	if h.ValueType, err = readText(r); err != nil {
		return h, err
	}
	if h.KeyType != TypedBytesClass || h.ValueType != TypedBytesClass {
		return h, errors.New(errors.ErrorTypeUnsupportedType, "container does not hold typed bytes records").
			WithDetail("key_type", h.KeyType).
			WithDetail("value_type", h.ValueType)
	}

	flag, err := r.ReadByte()
	if err != nil {
		return h, headerErr(err, "failed to read compression flag")
	}
	h.Compression = compression.None
	switch flag {
	case 0:
	case 1:
		if h.Codec, err = readText(r); err != nil {
			return h, err
		}
		if h.Compression, err = compression.AlgorithmForCodec(h.Codec); err != nil {
			return h, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "unknown container codec")
		}
	default:
		return h, errors.Newf(errors.ErrorTypeMalformedEncoding, "invalid compression flag %d", flag)
	}

	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return h, headerErr(err, "failed to read metadata count")
	}
	n := binary.BigEndian.Uint32(count[:])
	if n > MaxMetadata {
		return h, errors.Newf(errors.ErrorTypeMalformedEncoding, "metadata count %d exceeds limit", n)
	}
	h.Metadata = make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readText(r)
		if err != nil {
			return h, err
		}
		v, err := readText(r)
		if err != nil {
			return h, err
		}
		h.Metadata[k] = v
	}
	return h, nil
}

func headerErr(err error, msg string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeMalformedEncoding, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeFile, msg)
}

func appendText(dst []byte, s string) []byte {
	dst = appendVLong(dst, int64(len(s)))
	return append(dst, s...)
}

func readText(r *bufio.Reader) (string, error) {
	n, err := readVLong(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > MaxTextLength {
		return "", errors.Newf(errors.ErrorTypeMalformedEncoding, "header string length %d out of range", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", headerErr(err, "failed to read header string")
	}
	return string(b), nil
}

// appendVLong writes Hadoop's zero-compressed variable-length long: values in
// [-112, 127] take one byte, anything else a length byte and 1-8 magnitude
// bytes.
func appendVLong(dst []byte, i int64) []byte {
	if i >= -112 && i <= 127 {
		return append(dst, byte(i))
	}
	n := int64(-112)
	if i < 0 {
		i ^= -1
		n = -120
	}
	for tmp := i; tmp != 0; tmp >>= 8 {
		n--
	}
	dst = append(dst, byte(n))
	if n < -120 {
		n = -(n + 120)
	} else {
		n = -(n + 112)
	}
	for idx := n; idx != 0; idx-- {
		shift := uint((idx - 1) * 8)
		dst = append(dst, byte(i>>shift))
	}
	return dst
}

func readVLong(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, headerErr(err, "failed to read length")
	}
	first := int8(b)
	if first >= -112 {
		return int64(first), nil
	}
	var size int
	negative := first < -120
	if negative {
		size = -119 - int(first)
	} else {
		size = -111 - int(first)
	}
	var v int64
	for idx := 0; idx < size-1; idx++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, headerErr(err, "failed to read length")
		}
		v = v<<8 | int64(b)
	}
	if negative {
		v ^= -1
	}
	return v, nil
}
