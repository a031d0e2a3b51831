// Package typedbytes implements the self-describing binary value encoding used
// for every key and value stored in a container file.
//
// Each value is a one-byte tag followed by a payload whose size the tag fully
// determines. All multi-byte integers are big-endian.
//
//	Int     0x04  int64 (8 bytes)
//	Float   0x06  IEEE-754 binary64 bits (8 bytes)
//	String  0x07  uint32 byte length, UTF-8 bytes
//	Seq     0x08  uint32 element count, elements
//	Tuple   0x0B  first element, second element
//
// The integer, float, string and sequence codes are the Hadoop typed bytes
// LONG, DOUBLE, STRING and VECTOR codes, so those values are readable by any
// typed bytes consumer. Tuples use code 0x0B, which typed bytes leaves
// unassigned.
package typedbytes

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

const (
	TagInt    byte = 0x04
	TagFloat  byte = 0x06
	TagString byte = 0x07
	TagSeq    byte = 0x08
	TagTuple  byte = 0x0B
)

// MaxDepth bounds sequence and tuple nesting on both encode and decode.
const MaxDepth = 64

// Encode returns the encoding of v.
func Encode(v Value) ([]byte, error) {
	n, err := Size(v)
	if err != nil {
		return nil, err
	}
	return Append(make([]byte, 0, n), v)
}

// Append appends the encoding of v to dst. On error dst is returned unchanged.
func Append(dst []byte, v Value) ([]byte, error) {
	out, err := appendValue(dst, v, 0)
	if err != nil {
		return dst, err
	}
	return out, nil
}

func appendValue(dst []byte, v Value, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, errors.New(errors.ErrorTypeUnsupportedType, "value nesting exceeds maximum depth").
			WithDetail("max_depth", MaxDepth)
	}
	switch x := v.(type) {
	case Int:
		dst = append(dst, TagInt)
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case Float:
		dst = append(dst, TagFloat)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(float64(x))), nil
	case String:
		if !utf8.ValidString(string(x)) {
			return nil, errors.New(errors.ErrorTypeUnsupportedType, "string is not valid UTF-8")
		}
		if uint64(len(x)) > math.MaxUint32 {
			return nil, errors.New(errors.ErrorTypeUnsupportedType, "string longer than 4 GiB")
		}
		dst = append(dst, TagString)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(x)))
		return append(dst, x...), nil
	case FloatArray:
		if uint64(len(x)) > math.MaxUint32 {
			return nil, errors.New(errors.ErrorTypeUnsupportedType, "sequence longer than 2^32-1 elements")
		}
		dst = append(dst, TagSeq)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(x)))
		for _, f := range x {
			dst = append(dst, TagFloat)
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
		}
		return dst, nil
	case Seq:
		if uint64(len(x)) > math.MaxUint32 {
			return nil, errors.New(errors.ErrorTypeUnsupportedType, "sequence longer than 2^32-1 elements")
		}
		dst = append(dst, TagSeq)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(x)))
		var err error
		for i, el := range x {
			if dst, err = appendValue(dst, el, depth+1); err != nil {
				return nil, wrapIndex(err, i)
			}
		}
		return dst, nil
	case Tuple:
		dst = append(dst, TagTuple)
		var err error
		for i, el := range x {
			if dst, err = appendValue(dst, el, depth+1); err != nil {
				return nil, wrapIndex(err, i)
			}
		}
		return dst, nil
	case nil:
		return nil, errors.New(errors.ErrorTypeUnsupportedType, "cannot encode nil value")
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "cannot encode %T", v)
	}
}

func wrapIndex(err error, i int) error {
	var e *errors.Error
	if errors.As(err, &e) {
		if _, ok := e.Details["path"]; !ok {
			e.WithDetail("path", fmt.Sprintf("[%d]", i))
		} else {
			e.Details["path"] = fmt.Sprintf("[%d]%v", i, e.Details["path"])
		}
	}
	return err
}

// Size returns the number of bytes Encode would produce for v.
func Size(v Value) (int, error) {
	return sizeOf(v, 0)
}

func sizeOf(v Value, depth int) (int, error) {
	if depth > MaxDepth {
		return 0, errors.New(errors.ErrorTypeUnsupportedType, "value nesting exceeds maximum depth")
	}
	switch x := v.(type) {
	case Int, Float:
		return 9, nil
	case String:
		return 5 + len(x), nil
	case FloatArray:
		return 5 + 9*len(x), nil
	case Seq:
		total := 5
		for _, el := range x {
			n, err := sizeOf(el, depth+1)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case Tuple:
		total := 1
		for _, el := range x {
			n, err := sizeOf(el, depth+1)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case nil:
		return 0, errors.New(errors.ErrorTypeUnsupportedType, "cannot encode nil value")
	default:
		return 0, errors.Newf(errors.ErrorTypeUnsupportedType, "cannot encode %T", v)
	}
}

// Decode decodes one value from the front of b and reports how many bytes it
// consumed. Trailing bytes are left for the caller.
func Decode(b []byte) (Value, int, error) {
	d := decoder{buf: b}
	v, err := d.value(0)
	if err != nil {
		return nil, 0, err
	}
	return v, d.off, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) malformed(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeMalformedEncoding, msg).WithDetail("offset", d.off)
}

func (d *decoder) need(n uint64) error {
	if uint64(len(d.buf)-d.off) < n {
		return d.malformed("declared length exceeds remaining bytes").
			WithDetail("need", n).
			WithDetail("remaining", len(d.buf)-d.off)
	}
	return nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, d.malformed("value nesting exceeds maximum depth")
	}
	if err := d.need(1); err != nil {
		return nil, err
	}
	tag := d.buf[d.off]
	d.off++

	switch tag {
	case TagInt:
		if err := d.need(8); err != nil {
			return nil, err
		}
		v := int64(binary.BigEndian.Uint64(d.buf[d.off:]))
		d.off += 8
		return Int(v), nil
	case TagFloat:
		if err := d.need(8); err != nil {
			return nil, err
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(d.buf[d.off:]))
		d.off += 8
		return Float(v), nil
	case TagString:
		if err := d.need(4); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(d.buf[d.off:])
		d.off += 4
		if err := d.need(uint64(n)); err != nil {
			return nil, err
		}
		s := d.buf[d.off : d.off+int(n)]
		if !utf8.Valid(s) {
			return nil, d.malformed("string is not valid UTF-8")
		}
		d.off += int(n)
		return String(s), nil
	case TagSeq:
		if err := d.need(4); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(d.buf[d.off:])
		d.off += 4
		// every element occupies at least one byte
		if err := d.need(uint64(n)); err != nil {
			return nil, err
		}
		seq := make(Seq, n)
		for i := range seq {
			el, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			seq[i] = el
		}
		return seq, nil
	case TagTuple:
		var tup Tuple
		for i := range tup {
			if d.off >= len(d.buf) {
				return nil, d.malformed("tuple has fewer than two elements")
			}
			el, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			tup[i] = el
		}
		return tup, nil
	default:
		d.off--
		return nil, d.malformed(fmt.Sprintf("unrecognized tag 0x%02x", tag)).WithDetail("tag", tag)
	}
}

// ByteReader is the reader ReadValue consumes from; *bufio.Reader satisfies it.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// ReadValue reads one value from r. It returns io.EOF only when r is exhausted
// before the first tag byte; any later shortfall is a malformed encoding.
func ReadValue(r ByteReader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read tag")
	}
	return readTagged(r, tag, 0)
}

func readTagged(r ByteReader, tag byte, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, errors.New(errors.ErrorTypeMalformedEncoding, "value nesting exceeds maximum depth")
	}
	var scratch [8]byte
	switch tag {
	case TagInt:
		if err := readFull(r, scratch[:8]); err != nil {
			return nil, err
		}
		return Int(int64(binary.BigEndian.Uint64(scratch[:]))), nil
	case TagFloat:
		if err := readFull(r, scratch[:8]); err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(binary.BigEndian.Uint64(scratch[:]))), nil
	case TagString:
		if err := readFull(r, scratch[:4]); err != nil {
			return nil, err
		}
		n := int64(binary.BigEndian.Uint32(scratch[:4]))
		s, err := readString(r, n)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TagSeq:
		if err := readFull(r, scratch[:4]); err != nil {
			return nil, err
		}
		n := int(binary.BigEndian.Uint32(scratch[:4]))
		seq := make(Seq, 0, min(n, 4096))
		for i := 0; i < n; i++ {
			el, err := readChild(r, depth)
			if err != nil {
				return nil, err
			}
			seq = append(seq, el)
		}
		return seq, nil
	case TagTuple:
		var tup Tuple
		for i := range tup {
			el, err := readChild(r, depth)
			if err != nil {
				return nil, err
			}
			tup[i] = el
		}
		return tup, nil
	default:
		return nil, errors.New(errors.ErrorTypeMalformedEncoding, fmt.Sprintf("unrecognized tag 0x%02x", tag)).
			WithDetail("tag", tag)
	}
}

func readChild(r ByteReader, depth int) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, truncated(err)
	}
	return readTagged(r, tag, depth+1)
}

func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		return truncated(err)
	}
	return nil
}

func readString(r io.Reader, n int64) (string, error) {
	// Grow with the data actually present instead of trusting the declared length.
	buf := make([]byte, 0, min(n, 64*1024))
	for int64(len(buf)) < n {
		chunk := min(n-int64(len(buf)), 64*1024)
		start := len(buf)
		buf = append(buf, make([]byte, chunk)...)
		if _, err := io.ReadFull(r, buf[start:]); err != nil {
			return "", truncated(err)
		}
	}
	if !utf8.Valid(buf) {
		return "", errors.New(errors.ErrorTypeMalformedEncoding, "string is not valid UTF-8")
	}
	return string(buf), nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeMalformedEncoding, "declared length exceeds remaining bytes")
	}
	return errors.Wrap(err, errors.ErrorTypeFile, "failed to read value")
}
