package netcdf

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// maxRead caps a single variable read.
const maxRead = 1 << 34

// ReadFloat64s reads every value of v, converting numeric types to float64.
// Record variables are read record by record in order.
func (v *Var) ReadFloat64s() ([]float64, error) {
	if !v.IsRecord() {
		return v.readFloat64s(v.Begin, v.sliceLen())
	}
	out := make([]float64, 0, v.sliceLen()*v.file.NumRecs)
	for rec := int64(0); rec < v.file.NumRecs; rec++ {
		vals, err := v.ReadRecordFloat64s(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

// ReadRecordFloat64s reads record rec of a record variable.
func (v *Var) ReadRecordFloat64s(rec int64) ([]float64, error) {
	if !v.IsRecord() {
		return nil, errors.Newf(errors.ErrorTypeValidation, "variable %q is not a record variable", v.Name)
	}
	if rec < 0 || rec >= v.file.NumRecs {
		return nil, errors.Newf(errors.ErrorTypeValidation, "record %d out of range [0, %d)", rec, v.file.NumRecs).
			WithDetail("variable", v.Name)
	}
	return v.readFloat64s(v.Begin+rec*v.file.recSize, v.sliceLen())
}

// ReadSliceFloat64s reads index i along the first dimension of a fixed-size
// variable, i.e. the contiguous block of values whose first index is i.
func (v *Var) ReadSliceFloat64s(i int64) ([]float64, error) {
	if v.IsRecord() {
		return v.ReadRecordFloat64s(i)
	}
	shape := v.Shape()
	if len(shape) == 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "variable %q is a scalar", v.Name)
	}
	if i < 0 || i >= shape[0] {
		return nil, errors.Newf(errors.ErrorTypeValidation, "index %d out of range [0, %d)", i, shape[0]).
			WithDetail("variable", v.Name)
	}
	n := v.sliceLen() / shape[0]
	return v.readFloat64s(v.Begin+i*n*v.Type.Size(), n)
}

func (v *Var) readRaw(off, n int64) ([]byte, error) {
	size := n * v.Type.Size()
	if n < 0 || size > maxRead {
		return nil, errors.Newf(errors.ErrorTypeData, "variable %q is too large to read at once", v.Name)
	}
	if off < 0 || off+size > v.file.size {
		return nil, errors.New(errors.ErrorTypeData, "variable data extends past end of file").
			WithDetail("variable", v.Name).
			WithDetail("offset", off).
			WithDetail("length", size)
	}
	b := make([]byte, size)
	if got, err := v.file.r.ReadAt(b, off); got < len(b) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read variable data").WithDetail("variable", v.Name)
	}
	return b, nil
}

func (v *Var) readFloat64s(off, n int64) ([]float64, error) {
	if v.Type == Char {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "variable %q holds characters, not numbers", v.Name)
	}
	b, err := v.readRaw(off, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	switch v.Type {
	case Double:
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[8*i:]))
		}
	case Float:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(b[4*i:])))
		}
	case Int:
		for i := range out {
			out[i] = float64(int32(binary.BigEndian.Uint32(b[4*i:])))
		}
	case UInt:
		for i := range out {
			out[i] = float64(binary.BigEndian.Uint32(b[4*i:]))
		}
	case Short:
		for i := range out {
			out[i] = float64(int16(binary.BigEndian.Uint16(b[2*i:])))
		}
	case UShort:
		for i := range out {
			out[i] = float64(binary.BigEndian.Uint16(b[2*i:]))
		}
	case Byte:
		for i := range out {
			out[i] = float64(int8(b[i]))
		}
	case UByte:
		for i := range out {
			out[i] = float64(b[i])
		}
	case Int64:
		for i := range out {
			out[i] = float64(int64(binary.BigEndian.Uint64(b[8*i:])))
		}
	case UInt64:
		for i := range out {
			out[i] = float64(binary.BigEndian.Uint64(b[8*i:]))
		}
	}
	return out, nil
}

// ReadStrings reads a fixed-size character variable as rows of its last
// dimension, trimming NUL padding and trailing blanks from each row.
func (v *Var) ReadStrings() ([]string, error) {
	if v.Type != Char {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "variable %q is %s, not char", v.Name, v.Type)
	}
	if v.IsRecord() {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "record character variable %q is not supported", v.Name)
	}
	shape := v.Shape()
	if len(shape) == 0 {
		b, err := v.readRaw(v.Begin, 1)
		if err != nil {
			return nil, err
		}
		return []string{trimName(b)}, nil
	}
	width := shape[len(shape)-1]
	total := v.Len()
	b, err := v.readRaw(v.Begin, total)
	if err != nil {
		return nil, err
	}
	if width == 0 {
		return nil, nil
	}
	rows := make([]string, 0, total/width)
	for off := int64(0); off < total; off += width {
		rows = append(rows, trimName(b[off:off+width]))
	}
	return rows, nil
}
