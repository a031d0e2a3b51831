package exodus

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/ajitpratap0/exoseq/pkg/netcdf"
)

// Synthetic describes a generated database: a regular grid of nodes carrying
// smooth nodal fields over evenly spaced time steps.
type Synthetic struct {
	Title     string
	NX, NY    int
	NZ        int // 0 or 1 generates a 2-D mesh
	Steps     int
	TimeStep  float64
	Variables []string
	// Combined stores all variables in one vals_nod_var array instead of one
	// array per variable.
	Combined bool
}

// Build encodes the database. Variable k at node n and step s holds
// 100*(k+1) + s + n/1000.
func (s Synthetic) Build() ([]byte, error) {
	if s.NX < 1 || s.NY < 1 || s.Steps < 0 {
		return nil, fmt.Errorf("synthetic mesh needs at least one node, got %dx%d", s.NX, s.NY)
	}
	nz := max(s.NZ, 1)
	numDim := 3
	if s.NZ <= 1 {
		numDim = 2
	}
	nodes := s.NX * s.NY * nz
	x := make([]float64, 0, nodes)
	y := make([]float64, 0, nodes)
	z := make([]float64, 0, nodes)
	for k := 0; k < nz; k++ {
		for j := 0; j < s.NY; j++ {
			for i := 0; i < s.NX; i++ {
				x = append(x, float64(i))
				y = append(y, float64(j))
				z = append(z, float64(k))
			}
		}
	}
	dt := s.TimeStep
	if dt == 0 {
		dt = 0.1
	}
	times := make([]float64, s.Steps)
	for i := range times {
		times[i] = math.Round(float64(i)*dt*1e9) / 1e9
	}

	nameLen := int64(32)
	b := netcdf.NewBuilder().
		AddDim("len_string", 33).
		AddDim("len_name", nameLen).
		AddDim("four", 4).
		AddDim(DimNumDim, int64(numDim)).
		AddDim(DimNumNodes, int64(nodes)).
		AddDim("num_qa_rec", 1)
	// hexes (or quads in 2-D) between grid points
	b.AddDim(DimNumElem, int64(max(s.NX-1, 1)*max(s.NY-1, 1)*max(nz-1, 1)))
	if len(s.Variables) > 0 {
		b.AddDim(DimNumNodVar, int64(len(s.Variables)))
	}
	b.AddDim("time_step", 0).
		AddAttr("title", s.Title).
		AddAttr("version", []float32{5.1}).
		AddAttr("api_version", []float32{5.1}).
		AddAttr("floating_point_word_size", []int32{8}).
		AddAttr("file_size", []int32{1})

	coordNames := []string{"x", "y", "z"}[:numDim]
	b.AddVar(VarCoordNames, netcdf.Char, []string{DimNumDim, "len_name"}, coordNames).
		AddVar(VarQARecords, netcdf.Char, []string{"num_qa_rec", "four", "len_string"}, []string{"exoseq", "1.0", "01/15/2024", "10:30:00"}).
		AddVar(VarCoordX, netcdf.Double, []string{DimNumNodes}, x).
		AddVar(VarCoordY, netcdf.Double, []string{DimNumNodes}, y)
	if numDim == 3 {
		b.AddVar(VarCoordZ, netcdf.Double, []string{DimNumNodes}, z)
	}
	if len(s.Variables) > 0 {
		b.AddVar(VarNodVarNames, netcdf.Char, []string{DimNumNodVar, "len_name"}, s.Variables)
	}
	b.AddVar(VarTime, netcdf.Double, []string{"time_step"}, times)

	value := func(k, step, node int) float64 {
		return float64(100*(k+1)+step) + float64(node)/1000
	}
	if s.Combined && len(s.Variables) > 0 {
		vals := make([]float64, 0, s.Steps*len(s.Variables)*nodes)
		for step := 0; step < s.Steps; step++ {
			for k := range s.Variables {
				for n := 0; n < nodes; n++ {
					vals = append(vals, value(k, step, n))
				}
			}
		}
		b.AddVar(VarNodVals, netcdf.Double, []string{"time_step", DimNumNodVar, DimNumNodes}, vals)
	} else {
		for k := range s.Variables {
			vals := make([]float64, 0, s.Steps*nodes)
			for step := 0; step < s.Steps; step++ {
				for n := 0; n < nodes; n++ {
					vals = append(vals, value(k, step, n))
				}
			}
			b.AddVar(VarNodVals+strconv.Itoa(k+1), netcdf.Double, []string{"time_step", DimNumNodes}, vals)
		}
	}
	return b.Bytes()
}

// WriteFile writes the database to path.
func (s Synthetic) WriteFile(path string) error {
	data, err := s.Build()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
