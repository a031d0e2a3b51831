package partition

import (
	"github.com/ajitpratap0/exoseq/pkg/dataset"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// SummaryName keys the terminal index record holding the total step count.
const SummaryName = "total"

// AxisKey returns the key of the coordinate preamble for axis: -1 for x,
// -2 for y and -3 for z. No other key in a partition is a negative integer.
func AxisKey(axis dataset.Axis) typedbytes.Int {
	return typedbytes.Int(-1 - int64(axis))
}

// StepKey returns the key of a step record, the pair (step, time). Step keys
// are always tuples, so they never collide with an axis key.
func StepKey(step int, time float64) typedbytes.Tuple {
	return typedbytes.Pair(typedbytes.Int(step), typedbytes.Float(time))
}

// SummaryKey returns the key of the terminal index record.
func SummaryKey() typedbytes.String {
	return typedbytes.String(SummaryName)
}

// AxisOf reports which axis a preamble key names.
func AxisOf(key typedbytes.Value) (dataset.Axis, bool) {
	i, ok := key.(typedbytes.Int)
	if !ok || i > -1 || i < -3 {
		return 0, false
	}
	return dataset.Axis(-1 - int64(i)), true
}

// ParseStepKey splits a step key into its step and time.
func ParseStepKey(key typedbytes.Value) (int, float64, error) {
	t, ok := key.(typedbytes.Tuple)
	if !ok {
		return 0, 0, errors.Newf(errors.ErrorTypeData, "step key is a %s, want a tuple", kindOf(key))
	}
	step, ok1 := t[0].(typedbytes.Int)
	time, ok2 := t[1].(typedbytes.Float)
	if !ok1 || !ok2 {
		return 0, 0, errors.New(errors.ErrorTypeData, "step key is not an (int, float) pair")
	}
	return int(step), float64(time), nil
}

func kindOf(v typedbytes.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
