// Package exodus reads Exodus II finite element databases stored as classic
// NetCDF files and exposes their nodal time series as a dataset.Accessor.
package exodus

import (
	"fmt"
	"path/filepath"

	"github.com/ajitpratap0/exoseq/pkg/dataset"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/netcdf"
)

// Variable and dimension names defined by the Exodus II format.
const (
	VarTime        = "time_whole"
	VarCoordX      = "coordx"
	VarCoordY      = "coordy"
	VarCoordZ      = "coordz"
	VarCoord       = "coord"
	VarCoordNames  = "coor_names"
	VarNodVarNames = "name_nod_var"
	VarNodVals     = "vals_nod_var"
	VarInfoRecords = "info_records"
	VarQARecords   = "qa_records"

	DimNumNodes  = "num_nodes"
	DimNumElem   = "num_elem"
	DimNumDim    = "num_dim"
	DimNumNodVar = "num_nod_var"
)

// File is an open Exodus II database.
type File struct {
	path  string
	cdf   *netcdf.File
	names []string
	nodes int
}

var _ dataset.Accessor = (*File)(nil)

// Open opens the database at path.
func Open(path string) (*File, error) {
	cdf, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := New(cdf)
	if err != nil {
		_ = cdf.Close()
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to read exodus database").WithDetail("path", path)
	}
	f.path = path
	return f, nil
}

// New wraps an already parsed NetCDF file.
func New(cdf *netcdf.File) (*File, error) {
	f := &File{cdf: cdf}
	if d, ok := cdf.Dim(DimNumNodes); ok {
		f.nodes = int(d.Len)
	}
	if v, ok := cdf.Var(VarNodVarNames); ok {
		names, err := v.ReadStrings()
		if err != nil {
			return nil, err
		}
		f.names = names
	}
	return f, nil
}

// Close releases the underlying file.
func (f *File) Close() error {
	return f.cdf.Close()
}

// NetCDF returns the underlying NetCDF file.
func (f *File) NetCDF() *netcdf.File {
	return f.cdf
}

// NumNodes returns the number of mesh nodes.
func (f *File) NumNodes() int {
	return f.nodes
}

// NumTimeSteps returns the length of the time_whole variable.
func (f *File) NumTimeSteps() int {
	v, ok := f.cdf.Var(VarTime)
	if !ok {
		return 0
	}
	return int(v.Len())
}

func (f *File) TimeValue(step int) (float64, error) {
	if err := dataset.CheckStep(f, step); err != nil {
		return 0, err
	}
	v, _ := f.cdf.Var(VarTime)
	vals, err := v.ReadSliceFloat64s(int64(step))
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, errors.Newf(errors.ErrorTypeData, "%s is not one value per step", VarTime)
	}
	return vals[0], nil
}

// Coordinates returns the coordinate array for axis. Meshes with fewer
// dimensions than the axis get zeros.
func (f *File) Coordinates(axis dataset.Axis) ([]float64, error) {
	if axis < dataset.X || axis > dataset.Z {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown axis %d", int(axis))
	}
	name := [...]string{VarCoordX, VarCoordY, VarCoordZ}[axis]
	if v, ok := f.cdf.Var(name); ok {
		return v.ReadFloat64s()
	}
	if v, ok := f.cdf.Var(VarCoord); ok {
		shape := v.Shape()
		if len(shape) != 2 {
			return nil, errors.Newf(errors.ErrorTypeData, "%s has %d dimensions, want 2", VarCoord, len(shape))
		}
		if int64(axis) < shape[0] {
			return v.ReadSliceFloat64s(int64(axis))
		}
		return make([]float64, shape[1]), nil
	}
	if axis == dataset.X {
		return nil, errors.New(errors.ErrorTypeData, "database has no nodal coordinates")
	}
	return make([]float64, f.nodes), nil
}

// VariableNames returns the node variable names in file order.
func (f *File) VariableNames() []string {
	return append([]string(nil), f.names...)
}

// VariableValues reads one time step of a node variable. Only that step's
// slice is read from disk.
func (f *File) VariableValues(name string, step int) ([]float64, error) {
	index := -1
	for i, n := range f.names {
		if n == name {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, errors.VariableNotFound(name)
	}
	if err := dataset.CheckStep(f, step); err != nil {
		return nil, err
	}

	if v, ok := f.cdf.Var(fmt.Sprintf("%s%d", VarNodVals, index+1)); ok {
		return v.ReadSliceFloat64s(int64(step))
	}
	// older databases store every variable in one (time, var, node) array
	if v, ok := f.cdf.Var(VarNodVals); ok {
		rec, err := v.ReadSliceFloat64s(int64(step))
		if err != nil {
			return nil, err
		}
		per := len(rec) / max(len(f.names), 1)
		if per*len(f.names) != len(rec) {
			return nil, errors.Newf(errors.ErrorTypeData, "%s does not divide evenly by variable", VarNodVals)
		}
		return rec[index*per : (index+1)*per], nil
	}
	return nil, errors.Newf(errors.ErrorTypeData, "no values stored for variable %q", name).WithDetail("variable", name)
}

// Info reads the database summary.
func (f *File) Info() (dataset.Info, error) {
	info := dataset.Info{
		NumNodes:          f.nodes,
		NumElem:           f.dimLen(DimNumElem),
		NumDim:            f.dimLen(DimNumDim),
		NumNodeVars:       f.dimLen(DimNumNodVar),
		NumTimeSteps:      f.NumTimeSteps(),
		NodeVariableNames: f.VariableNames(),
	}
	if f.path != "" {
		info.Filename = filepath.Base(f.path)
	}
	if a, ok := f.cdf.Attr("title"); ok {
		if s, ok := a.Value.(string); ok {
			info.Title = s
		}
	}
	info.Version = f.floatAttr("version")
	info.APIVersion = f.floatAttr("api_version", "api version")
	info.FloatingPointWordSize = int(f.floatAttr("floating_point_word_size", "floating point word size"))
	info.FileSize = int(f.floatAttr("file_size"))

	var err error
	if info.CoordinateNames, err = f.strings(VarCoordNames); err != nil {
		return info, err
	}
	if info.InfoRecords, err = f.strings(VarInfoRecords); err != nil {
		return info, err
	}
	qa, err := f.strings(VarQARecords)
	if err != nil {
		return info, err
	}
	if v, ok := f.cdf.Var(VarQARecords); ok && len(v.Shape()) == 3 {
		per := int(v.Shape()[1])
		for i := 0; per > 0 && i+per <= len(qa); i += per {
			info.QARecords = append(info.QARecords, qa[i:i+per])
		}
	}
	return info, nil
}

func (f *File) dimLen(name string) int {
	if d, ok := f.cdf.Dim(name); ok {
		return int(d.Len)
	}
	return 0
}

func (f *File) floatAttr(names ...string) float64 {
	for _, name := range names {
		if a, ok := f.cdf.Attr(name); ok {
			if vals := a.Float64s(); len(vals) > 0 {
				return vals[0]
			}
		}
	}
	return 0
}

func (f *File) strings(name string) ([]string, error) {
	v, ok := f.cdf.Var(name)
	if !ok {
		return nil, nil
	}
	return v.ReadStrings()
}
