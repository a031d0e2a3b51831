// Package dataset defines the read-only view of a time-indexed mesh that the
// partitioner consumes, plus an in-memory implementation.
package dataset

import (
	"fmt"
	"slices"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// Axis names one coordinate direction.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Axes lists the coordinate axes in preamble order.
var Axes = []Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Accessor is a random-access view of one dataset. Time steps are indexed
// from zero. Coordinate and variable arrays have one entry per node.
type Accessor interface {
	NumTimeSteps() int
	TimeValue(step int) (float64, error)
	Coordinates(axis Axis) ([]float64, error)
	VariableNames() []string
	VariableValues(name string, step int) ([]float64, error)
}

// CheckVariables returns a variable-not-found error for the first name ds
// does not carry.
func CheckVariables(ds Accessor, names []string) error {
	have := ds.VariableNames()
	for _, name := range names {
		if !slices.Contains(have, name) {
			return errors.VariableNotFound(name).WithDetail("available", have)
		}
	}
	return nil
}

// CheckStep validates a time step index against ds.
func CheckStep(ds Accessor, step int) error {
	if step < 0 || step >= ds.NumTimeSteps() {
		return errors.Newf(errors.ErrorTypeValidation, "time step %d out of range [0, %d)", step, ds.NumTimeSteps())
	}
	return nil
}

// Memory is an Accessor over in-memory arrays.
type Memory struct {
	Times  []float64
	Coords [3][]float64
	// Vars maps a variable name to one array per time step.
	Vars  map[string][][]float64
	Order []string
}

// NewMemory returns a Memory dataset with the given coordinates and times. A
// nil z becomes zeros, as for a 2-D mesh.
func NewMemory(x, y, z, times []float64) *Memory {
	if z == nil {
		z = make([]float64, len(x))
	}
	return &Memory{
		Times:  times,
		Coords: [3][]float64{x, y, z},
		Vars:   make(map[string][][]float64),
	}
}

// AddVariable adds a node variable with one array per time step.
func (m *Memory) AddVariable(name string, steps [][]float64) *Memory {
	if _, ok := m.Vars[name]; !ok {
		m.Order = append(m.Order, name)
	}
	m.Vars[name] = steps
	return m
}

func (m *Memory) NumTimeSteps() int {
	return len(m.Times)
}

func (m *Memory) TimeValue(step int) (float64, error) {
	if err := CheckStep(m, step); err != nil {
		return 0, err
	}
	return m.Times[step], nil
}

func (m *Memory) Coordinates(axis Axis) ([]float64, error) {
	if axis < X || axis > Z {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown axis %d", int(axis))
	}
	return m.Coords[axis], nil
}

func (m *Memory) VariableNames() []string {
	return slices.Clone(m.Order)
}

func (m *Memory) VariableValues(name string, step int) ([]float64, error) {
	steps, ok := m.Vars[name]
	if !ok {
		return nil, errors.VariableNotFound(name)
	}
	if err := CheckStep(m, step); err != nil {
		return nil, err
	}
	if step >= len(steps) {
		return nil, errors.Newf(errors.ErrorTypeData, "variable %q has no data for step %d", name, step)
	}
	return steps[step], nil
}
