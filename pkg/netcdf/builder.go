package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Builder assembles a small CDF-2 (64-bit offset) file in memory. It exists
// to generate fixtures and synthetic datasets; it is not a general writer.
type Builder struct {
	dims  []Dim
	attrs []Attr
	vars  []builderVar
}

type builderVar struct {
	name   string
	typ    Type
	dimIDs []int
	attrs  []Attr
	data   interface{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddDim adds a dimension. A zero length declares the unlimited dimension,
// whose length is taken from the record variables.
func (b *Builder) AddDim(name string, length int64) *Builder {
	b.dims = append(b.dims, Dim{Name: name, Len: length, Unlimited: length == 0})
	return b
}

// AddAttr adds a global attribute. value is a string, []int32, []float32 or
// []float64.
func (b *Builder) AddAttr(name string, value interface{}) *Builder {
	b.attrs = append(b.attrs, newAttr(name, value))
	return b
}

// AddVar adds a variable over the named dimensions. data is []float64 for
// numeric types (converted on write) or []string for Char, one string per row
// of the last dimension. Record variables hold all records back to back.
func (b *Builder) AddVar(name string, t Type, dims []string, data interface{}) *Builder {
	v := builderVar{name: name, typ: t, data: data}
	for _, d := range dims {
		id := -1
		for i := range b.dims {
			if b.dims[i].Name == d {
				id = i
			}
		}
		v.dimIDs = append(v.dimIDs, id)
	}
	b.vars = append(b.vars, v)
	return b
}

func newAttr(name string, value interface{}) Attr {
	switch value.(type) {
	case string:
		return Attr{Name: name, Type: Char, Value: value}
	case []int32:
		return Attr{Name: name, Type: Int, Value: value}
	case []float32:
		return Attr{Name: name, Type: Float, Value: value}
	default:
		return Attr{Name: name, Type: Double, Value: value}
	}
}

func (b *Builder) isRecord(v builderVar) bool {
	return len(v.dimIDs) > 0 && v.dimIDs[0] >= 0 && b.dims[v.dimIDs[0]].Unlimited
}

// sliceLen counts values per record (or in total for fixed variables).
func (b *Builder) sliceLen(v builderVar) int64 {
	n := int64(1)
	for i, id := range v.dimIDs {
		if i == 0 && b.isRecord(v) {
			continue
		}
		n *= b.dims[id].Len
	}
	return n
}

// Bytes encodes the file.
func (b *Builder) Bytes() ([]byte, error) {
	for _, v := range b.vars {
		for _, id := range v.dimIDs {
			if id < 0 {
				return nil, fmt.Errorf("variable %q uses an undeclared dimension", v.name)
			}
		}
	}

	payloads := make([][]byte, len(b.vars))
	numRecs := int64(0)
	for i, v := range b.vars {
		width := int64(1)
		if len(v.dimIDs) > 0 {
			width = b.dims[v.dimIDs[len(v.dimIDs)-1]].Len
		}
		p, err := encodeValues(v, width)
		if err != nil {
			return nil, err
		}
		payloads[i] = p
		if b.isRecord(v) {
			per := b.sliceLen(v) * v.typ.Size()
			if per > 0 {
				numRecs = max(numRecs, int64(len(p))/per)
			}
		} else if want := b.sliceLen(v) * v.typ.Size(); int64(len(p)) != want {
			return nil, fmt.Errorf("variable %q has %d bytes of data, want %d", v.name, len(p), want)
		}
	}

	var recVars []int
	for i, v := range b.vars {
		if b.isRecord(v) {
			recVars = append(recVars, i)
		}
	}
	recPad := func(n int64) int64 {
		if len(recVars) == 1 {
			return n
		}
		return pad4(n)
	}

	begins := make([]int64, len(b.vars))
	headerLen := int64(len(b.header(numRecs, begins)))
	off := headerLen
	for i, v := range b.vars {
		if !b.isRecord(v) {
			begins[i] = off
			off += pad4(int64(len(payloads[i])))
		}
	}
	recStart := off
	for _, i := range recVars {
		begins[i] = off
		off += recPad(b.sliceLen(b.vars[i]) * b.vars[i].typ.Size())
	}
	recSize := off - recStart

	out := b.header(numRecs, begins)
	for i, v := range b.vars {
		if !b.isRecord(v) {
			out = append(out, payloads[i]...)
			out = appendPad(out)
		}
	}
	for rec := int64(0); rec < numRecs; rec++ {
		for _, i := range recVars {
			per := b.sliceLen(b.vars[i]) * b.vars[i].typ.Size()
			chunk := make([]byte, recPad(per))
			if start := rec * per; start < int64(len(payloads[i])) {
				copy(chunk, payloads[i][start:min(start+per, int64(len(payloads[i])))])
			}
			out = append(out, chunk...)
		}
	}
	if int64(len(out)) != recStart+numRecs*recSize {
		return nil, fmt.Errorf("internal layout error: %d bytes, want %d", len(out), recStart+numRecs*recSize)
	}
	return out, nil
}

// WriteFile encodes the file and writes it to path.
func (b *Builder) WriteFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *Builder) header(numRecs int64, begins []int64) []byte {
	out := []byte{'C', 'D', 'F', Offset64}
	out = binary.BigEndian.AppendUint32(out, uint32(numRecs))

	if len(b.dims) == 0 {
		out = append(out, 0, 0, 0, 0, 0, 0, 0, 0)
	} else {
		out = binary.BigEndian.AppendUint32(out, tagDimension)
		out = binary.BigEndian.AppendUint32(out, uint32(len(b.dims)))
		for _, d := range b.dims {
			out = appendName(out, d.Name)
			if d.Unlimited {
				out = binary.BigEndian.AppendUint32(out, 0)
			} else {
				out = binary.BigEndian.AppendUint32(out, uint32(d.Len))
			}
		}
	}

	out = appendAttrs(out, b.attrs)

	if len(b.vars) == 0 {
		return append(out, 0, 0, 0, 0, 0, 0, 0, 0)
	}
	out = binary.BigEndian.AppendUint32(out, tagVariable)
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.vars)))
	for i, v := range b.vars {
		out = appendName(out, v.name)
		out = binary.BigEndian.AppendUint32(out, uint32(len(v.dimIDs)))
		for _, id := range v.dimIDs {
			out = binary.BigEndian.AppendUint32(out, uint32(id))
		}
		out = appendAttrs(out, v.attrs)
		out = binary.BigEndian.AppendUint32(out, uint32(v.typ))
		out = binary.BigEndian.AppendUint32(out, uint32(min(pad4(b.sliceLen(v)*v.typ.Size()), math.MaxUint32)))
		out = binary.BigEndian.AppendUint64(out, uint64(begins[i]))
	}
	return out
}

func appendName(out []byte, name string) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(name)))
	out = append(out, name...)
	return appendPad(out)
}

func appendPad(out []byte) []byte {
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func appendAttrs(out []byte, attrs []Attr) []byte {
	if len(attrs) == 0 {
		return append(out, 0, 0, 0, 0, 0, 0, 0, 0)
	}
	out = binary.BigEndian.AppendUint32(out, tagAttribute)
	out = binary.BigEndian.AppendUint32(out, uint32(len(attrs)))
	for _, a := range attrs {
		out = appendName(out, a.Name)
		out = binary.BigEndian.AppendUint32(out, uint32(a.Type))
		switch v := a.Value.(type) {
		case string:
			out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
			out = append(out, v...)
		case []int32:
			out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
			for _, x := range v {
				out = binary.BigEndian.AppendUint32(out, uint32(x))
			}
		case []float32:
			out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
			for _, x := range v {
				out = binary.BigEndian.AppendUint32(out, math.Float32bits(x))
			}
		case []float64:
			out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
			for _, x := range v {
				out = binary.BigEndian.AppendUint64(out, math.Float64bits(x))
			}
		default:
			out = binary.BigEndian.AppendUint32(out, 0)
		}
		out = appendPad(out)
	}
	return out
}

func encodeValues(v builderVar, width int64) ([]byte, error) {
	switch data := v.data.(type) {
	case []string:
		if v.typ != Char {
			return nil, fmt.Errorf("variable %q: strings need type char", v.name)
		}
		out := make([]byte, 0, int64(len(data))*width)
		for _, s := range data {
			if int64(len(s)) > width {
				return nil, fmt.Errorf("variable %q: %q is longer than %d", v.name, s, width)
			}
			row := make([]byte, width)
			copy(row, s)
			out = append(out, row...)
		}
		return out, nil
	case []float64:
		out := make([]byte, 0, int64(len(data))*v.typ.Size())
		for _, x := range data {
			switch v.typ {
			case Double:
				out = binary.BigEndian.AppendUint64(out, math.Float64bits(x))
			case Float:
				out = binary.BigEndian.AppendUint32(out, math.Float32bits(float32(x)))
			case Int:
				out = binary.BigEndian.AppendUint32(out, uint32(int32(x)))
			case Short:
				out = binary.BigEndian.AppendUint16(out, uint16(int16(x)))
			case Byte, UByte:
				out = append(out, byte(int8(x)))
			default:
				return nil, fmt.Errorf("variable %q: builder cannot write %s", v.name, v.typ)
			}
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("variable %q: unsupported data %T", v.name, v.data)
}
