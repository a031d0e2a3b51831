// Package netcdf reads classic NetCDF files: the original CDF-1 format, the
// 64-bit offset CDF-2 format and the 64-bit data CDF-5 format. Exodus II
// databases are stored in one of these unless they were written through the
// HDF5-based NetCDF-4 layer, which this package rejects.
//
// Only the header is parsed up front. Variable data is read on demand through
// an io.ReaderAt, one variable or one record at a time, so a caller can walk a
// large time series without holding it in memory.
package netcdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/mmap"
)

// Type is a NetCDF external data type.
type Type int32

const (
	Byte   Type = 1
	Char   Type = 2
	Short  Type = 3
	Int    Type = 4
	Float  Type = 5
	Double Type = 6
	UByte  Type = 7
	UShort Type = 8
	UInt   Type = 9
	Int64  Type = 10
	UInt64 Type = 11
)

// Size returns the width of one value in bytes, or 0 for an unknown type.
func (t Type) Size() int64 {
	switch t {
	case Byte, Char, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, Float, UInt:
		return 4
	case Double, Int64, UInt64:
		return 8
	}
	return 0
}

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case UByte:
		return "ubyte"
	case UShort:
		return "ushort"
	case UInt:
		return "uint"
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// Format versions, as stored in the fourth magic byte.
const (
	Classic      = 1
	Offset64     = 2
	Data64       = 5
	hdf5Magic    = "\x89HDF\r\n\x1a\n"
	streamingRec = -1
)

// Dim is a named dimension. The unlimited (record) dimension has Len equal to
// the file's record count.
type Dim struct {
	Name      string
	Len       int64
	Unlimited bool
}

// Attr is a named attribute. Value holds a string for Char attributes and a
// slice of the matching Go type otherwise ([]int8, []int16, []int32,
// []float32, []float64, []uint8, []uint16, []uint32, []int64, []uint64).
type Attr struct {
	Name  string
	Type  Type
	Value interface{}
}

// Float64s returns numeric attribute values as float64.
func (a Attr) Float64s() []float64 {
	var out []float64
	switch v := a.Value.(type) {
	case []int8:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []uint8:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []int16:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []uint16:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []int32:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []uint32:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []int64:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []uint64:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []float32:
		for _, x := range v {
			out = append(out, float64(x))
		}
	case []float64:
		out = append(out, v...)
	}
	return out
}

// Var is a variable described by the header.
type Var struct {
	Name   string
	Type   Type
	DimIDs []int
	Attrs  []Attr
	Begin  int64

	file *File
}

// File is an open classic NetCDF file.
type File struct {
	Version int
	NumRecs int64
	Dims    []Dim
	Attrs   []Attr
	Vars    []*Var

	r       io.ReaderAt
	size    int64
	recSize int64
	closer  io.Closer
}

// Open maps the file at path and parses its header.
func Open(path string) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open dataset").WithDetail("path", path)
	}
	f, err := NewFile(m, m.Size())
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	f.closer = m
	return f, nil
}

// NewFile parses the header of the size-byte file behind r.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}
	if err := f.readHeader(); err != nil {
		return nil, err
	}
	f.computeRecordSize()
	return f, nil
}

// Close releases the file when it was opened with Open.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	c := f.closer
	f.closer = nil
	return c.Close()
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Dim looks up a dimension by name.
func (f *File) Dim(name string) (Dim, bool) {
	for _, d := range f.Dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dim{}, false
}

// Var looks up a variable by name.
func (f *File) Var(name string) (*Var, bool) {
	for _, v := range f.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Attr looks up a global attribute by name.
func (f *File) Attr(name string) (Attr, bool) {
	return findAttr(f.Attrs, name)
}

func findAttr(attrs []Attr, name string) (Attr, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Attr looks up a variable attribute by name.
func (v *Var) Attr(name string) (Attr, bool) {
	return findAttr(v.Attrs, name)
}

// IsRecord reports whether v varies along the unlimited dimension.
func (v *Var) IsRecord() bool {
	return len(v.DimIDs) > 0 && v.file.Dims[v.DimIDs[0]].Unlimited
}

// Shape returns the length of each of v's dimensions.
func (v *Var) Shape() []int64 {
	shape := make([]int64, len(v.DimIDs))
	for i, id := range v.DimIDs {
		shape[i] = v.file.Dims[id].Len
	}
	return shape
}

// DimNames returns the names of v's dimensions.
func (v *Var) DimNames() []string {
	names := make([]string, len(v.DimIDs))
	for i, id := range v.DimIDs {
		names[i] = v.file.Dims[id].Name
	}
	return names
}

// Len returns the total number of values in v.
func (v *Var) Len() int64 {
	n := int64(1)
	for _, d := range v.Shape() {
		n *= d
	}
	return n
}

// sliceLen is the number of values in one record of a record variable, or in
// the whole variable otherwise.
func (v *Var) sliceLen() int64 {
	n := int64(1)
	for i, id := range v.DimIDs {
		if i == 0 && v.IsRecord() {
			continue
		}
		n *= v.file.Dims[id].Len
	}
	return n
}

func (f *File) computeRecordSize() {
	var recVars []*Var
	for _, v := range f.Vars {
		if v.IsRecord() {
			recVars = append(recVars, v)
		}
	}
	if len(recVars) == 1 {
		f.recSize = recVars[0].sliceLen() * recVars[0].Type.Size()
		return
	}
	for _, v := range recVars {
		f.recSize += pad4(v.sliceLen() * v.Type.Size())
	}
}

func pad4(n int64) int64 {
	return (n + 3) &^ 3
}

func trimName(b []byte) string {
	return string(bytes.TrimRight(b, "\x00 "))
}
