package netcdf

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

const (
	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C

	maxNameLen = 1 << 16
)

type headerReader struct {
	r       io.ReaderAt
	off     int64
	size    int64
	version int
	buf     [8]byte
}

func malformed(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeData, "malformed netcdf header: "+msg)
}

func (h *headerReader) read(n int64) ([]byte, error) {
	if n < 0 || h.off+n > h.size {
		return nil, malformed("unexpected end of header").WithDetail("offset", h.off)
	}
	var b []byte
	if n <= int64(len(h.buf)) {
		b = h.buf[:n]
	} else {
		b = make([]byte, n)
	}
	if got, err := h.r.ReadAt(b, h.off); got < len(b) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read netcdf header")
	}
	h.off += n
	return b, nil
}

func (h *headerReader) u32() (uint32, error) {
	b, err := h.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (h *headerReader) u64() (uint64, error) {
	b, err := h.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// count reads NON_NEG: 4 bytes in CDF-1/2, 8 bytes in CDF-5.
func (h *headerReader) count() (int64, error) {
	if h.version == Data64 {
		v, err := h.u64()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, malformed("count out of range")
		}
		return int64(v), nil
	}
	v, err := h.u32()
	return int64(v), err
}

// offset reads OFFSET: 4 bytes in CDF-1, 8 bytes otherwise.
func (h *headerReader) offset() (int64, error) {
	if h.version == Classic {
		v, err := h.u32()
		return int64(v), err
	}
	v, err := h.u64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, malformed("offset out of range")
	}
	return int64(v), nil
}

func (h *headerReader) name() (string, error) {
	n, err := h.count()
	if err != nil {
		return "", err
	}
	if n > maxNameLen {
		return "", malformed("name too long")
	}
	b, err := h.read(pad4(n))
	if err != nil {
		return "", err
	}
	return string(b[:n]), nil
}

// list reads a tag and element count; ABSENT is a zero tag with zero count.
func (h *headerReader) list(want uint32) (int64, error) {
	tag, err := h.u32()
	if err != nil {
		return 0, err
	}
	n, err := h.count()
	if err != nil {
		return 0, err
	}
	if tag == 0 && n == 0 {
		return 0, nil
	}
	if tag != want {
		return 0, malformed("unexpected list tag").WithDetail("tag", tag).WithDetail("want", want)
	}
	// every element takes at least four header bytes
	if n > (h.size-h.off)/4 {
		return 0, malformed("list longer than header").WithDetail("count", n)
	}
	return n, nil
}

func (f *File) readHeader() error {
	h := &headerReader{r: f.r, size: f.size}

	if f.size < 4 {
		return errors.New(errors.ErrorTypeUnsupportedType, "file too short to be netcdf")
	}
	magic, err := h.read(4)
	if err != nil {
		return err
	}
	if string(magic[:3]) != "CDF" {
		sig := make([]byte, 8)
		if f.size >= 8 {
			if _, err := f.r.ReadAt(sig, 0); err == nil && string(sig) == hdf5Magic {
				return errors.New(errors.ErrorTypeUnsupportedType, "netcdf-4/hdf5 files are not supported; convert with nccopy -k classic")
			}
		}
		return errors.New(errors.ErrorTypeUnsupportedType, "not a netcdf file")
	}
	switch v := int(magic[3]); v {
	case Classic, Offset64, Data64:
		f.Version = v
		h.version = v
	default:
		return errors.Newf(errors.ErrorTypeUnsupportedType, "unsupported netcdf version %d", v)
	}

	if h.version == Data64 {
		n, err := h.u64()
		if err != nil {
			return err
		}
		f.NumRecs = int64(n)
		if n == math.MaxUint64 {
			f.NumRecs = streamingRec
		}
	} else {
		n, err := h.u32()
		if err != nil {
			return err
		}
		f.NumRecs = int64(n)
		if n == math.MaxUint32 {
			f.NumRecs = streamingRec
		}
	}
	if f.NumRecs < streamingRec {
		return malformed("negative record count")
	}

	if err := f.readDims(h); err != nil {
		return err
	}
	if f.Attrs, err = readAttrs(h); err != nil {
		return err
	}
	if err := f.readVars(h); err != nil {
		return err
	}
	if f.NumRecs == streamingRec {
		f.NumRecs = f.inferNumRecs()
		for i := range f.Dims {
			if f.Dims[i].Unlimited {
				f.Dims[i].Len = f.NumRecs
			}
		}
	}
	return nil
}

func (f *File) readDims(h *headerReader) error {
	n, err := h.list(tagDimension)
	if err != nil {
		return err
	}
	f.Dims = make([]Dim, 0, n)
	for i := int64(0); i < n; i++ {
		name, err := h.name()
		if err != nil {
			return err
		}
		length, err := h.count()
		if err != nil {
			return err
		}
		d := Dim{Name: name, Len: length}
		if length == 0 {
			d.Unlimited = true
			d.Len = f.NumRecs
		}
		f.Dims = append(f.Dims, d)
	}
	return nil
}

func readAttrs(h *headerReader) ([]Attr, error) {
	n, err := h.list(tagAttribute)
	if err != nil {
		return nil, err
	}
	attrs := make([]Attr, 0, n)
	for i := int64(0); i < n; i++ {
		name, err := h.name()
		if err != nil {
			return nil, err
		}
		t, err := h.u32()
		if err != nil {
			return nil, err
		}
		typ := Type(t)
		if typ.Size() == 0 {
			return nil, malformed("unknown attribute type").WithDetail("attribute", name)
		}
		count, err := h.count()
		if err != nil {
			return nil, err
		}
		if count > h.size {
			return nil, malformed("attribute longer than file").WithDetail("attribute", name)
		}
		raw, err := h.read(pad4(count * typ.Size()))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attr{Name: name, Type: typ, Value: decodeAttr(typ, raw[:count*typ.Size()])})
	}
	return attrs, nil
}

func decodeAttr(t Type, b []byte) interface{} {
	switch t {
	case Char:
		return trimName(b)
	case Byte:
		out := make([]int8, len(b))
		for i := range b {
			out[i] = int8(b[i])
		}
		return out
	case UByte:
		return append([]uint8(nil), b...)
	case Short:
		out := make([]int16, len(b)/2)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(b[2*i:]))
		}
		return out
	case UShort:
		out := make([]uint16, len(b)/2)
		for i := range out {
			out[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		return out
	case Int:
		out := make([]int32, len(b)/4)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(b[4*i:]))
		}
		return out
	case UInt:
		out := make([]uint32, len(b)/4)
		for i := range out {
			out[i] = binary.BigEndian.Uint32(b[4*i:])
		}
		return out
	case Float:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
		}
		return out
	case Double:
		out := make([]float64, len(b)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
		}
		return out
	case Int64:
		out := make([]int64, len(b)/8)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(b[8*i:]))
		}
		return out
	case UInt64:
		out := make([]uint64, len(b)/8)
		for i := range out {
			out[i] = binary.BigEndian.Uint64(b[8*i:])
		}
		return out
	}
	return nil
}

func (f *File) readVars(h *headerReader) error {
	n, err := h.list(tagVariable)
	if err != nil {
		return err
	}
	f.Vars = make([]*Var, 0, n)
	for i := int64(0); i < n; i++ {
		v := &Var{file: f}
		if v.Name, err = h.name(); err != nil {
			return err
		}
		ndims, err := h.count()
		if err != nil {
			return err
		}
		if ndims > 1024 {
			return malformed("too many dimensions").WithDetail("variable", v.Name)
		}
		v.DimIDs = make([]int, ndims)
		for j := range v.DimIDs {
			id, err := h.count()
			if err != nil {
				return err
			}
			if id >= int64(len(f.Dims)) {
				return malformed("dimension id out of range").WithDetail("variable", v.Name)
			}
			if j > 0 && f.Dims[id].Unlimited {
				return malformed("unlimited dimension must come first").WithDetail("variable", v.Name)
			}
			v.DimIDs[j] = int(id)
		}
		if v.Attrs, err = readAttrs(h); err != nil {
			return err
		}
		t, err := h.u32()
		if err != nil {
			return err
		}
		v.Type = Type(t)
		if v.Type.Size() == 0 {
			return malformed("unknown variable type").WithDetail("variable", v.Name)
		}
		// vsize is redundant with the shape and overflows for large variables
		if h.version == Data64 {
			_, err = h.u64()
		} else {
			_, err = h.u32()
		}
		if err != nil {
			return err
		}
		if v.Begin, err = h.offset(); err != nil {
			return err
		}
		f.Vars = append(f.Vars, v)
	}
	return nil
}

// inferNumRecs derives the record count of a file written in streaming mode
// from the file size.
func (f *File) inferNumRecs() int64 {
	var first int64 = -1
	for _, v := range f.Vars {
		if v.IsRecord() && (first < 0 || v.Begin < first) {
			first = v.Begin
		}
	}
	recSize := int64(0)
	for _, v := range f.Vars {
		if v.IsRecord() {
			recSize += pad4(v.sliceLen() * v.Type.Size())
		}
	}
	if first < 0 || recSize == 0 || f.size <= first {
		return 0
	}
	return (f.size - first) / recSize
}
