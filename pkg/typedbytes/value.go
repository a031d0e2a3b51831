package typedbytes

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies one of the five value variants.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindSeq
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindTuple:
		return "tuple"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed value. The set of implementations is closed: Int, Float,
// String, Seq, Tuple and FloatArray.
type Value interface {
	Kind() Kind
	isValue()
}

// Int is a signed 64-bit integer.
type Int int64

// Float is an IEEE-754 binary64 number. NaN and infinities are encoded as
// their bit patterns.
type Float float64

// String is a UTF-8 string.
type String string

// Seq is an ordered, possibly heterogeneous, sequence of values.
type Seq []Value

// Tuple is an ordered pair of values.
type Tuple [2]Value

// FloatArray encodes exactly like a Seq of Float without boxing each element.
// It decodes as a Seq; use AsFloats to get the numbers back.
type FloatArray []float64

func (Int) Kind() Kind        { return KindInt }
func (Float) Kind() Kind      { return KindFloat }
func (String) Kind() Kind     { return KindString }
func (Seq) Kind() Kind        { return KindSeq }
func (Tuple) Kind() Kind      { return KindTuple }
func (FloatArray) Kind() Kind { return KindSeq }

func (Int) isValue()        {}
func (Float) isValue()      {}
func (String) isValue()     {}
func (Seq) isValue()        {}
func (Tuple) isValue()      {}
func (FloatArray) isValue() {}

// Pair builds a Tuple.
func Pair(a, b Value) Tuple {
	return Tuple{a, b}
}

// AsFloats returns the numbers held by a FloatArray, or by a Seq whose
// elements are all Float.
func AsFloats(v Value) ([]float64, bool) {
	switch x := v.(type) {
	case FloatArray:
		return []float64(x), true
	case Seq:
		out := make([]float64, len(x))
		for i, el := range x {
			f, ok := el.(Float)
			if !ok {
				return nil, false
			}
			out[i] = float64(f)
		}
		return out, true
	default:
		return nil, false
	}
}

// Equal reports whether a and b are the same value. Floats compare by bit
// pattern, so NaN equals an identically encoded NaN. A FloatArray equals a Seq
// holding the same Floats, since both have the same encoding.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Int:
		return x == b.(Int)
	case Float:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Float)))
	case String:
		return x == b.(String)
	case Tuple:
		y := b.(Tuple)
		return Equal(x[0], y[0]) && Equal(x[1], y[1])
	case Seq, FloatArray:
		if seqLen(a) != seqLen(b) {
			return false
		}
		for i := 0; i < seqLen(a); i++ {
			if !Equal(seqAt(a, i), seqAt(b, i)) {
				return false
			}
		}
		return true
	}
	return false
}

func seqLen(v Value) int {
	switch x := v.(type) {
	case Seq:
		return len(x)
	case FloatArray:
		return len(x)
	}
	return 0
}

func seqAt(v Value, i int) Value {
	switch x := v.(type) {
	case Seq:
		return x[i]
	case FloatArray:
		return Float(x[i])
	}
	return nil
}

// Format renders v in a compact, human readable form. Sequences longer than
// limit elements are elided; limit <= 0 prints everything.
func Format(v Value, limit int) string {
	var sb strings.Builder
	format(&sb, v, limit)
	return sb.String()
}

func format(sb *strings.Builder, v Value, limit int) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case String:
		sb.WriteString(strconv.Quote(string(x)))
	case Tuple:
		sb.WriteByte('(')
		format(sb, x[0], limit)
		sb.WriteString(", ")
		format(sb, x[1], limit)
		sb.WriteByte(')')
	case Seq, FloatArray:
		n := seqLen(x)
		sb.WriteByte('[')
		for i := 0; i < n; i++ {
			if limit > 0 && i == limit {
				sb.WriteString(", ... ")
				sb.WriteString(strconv.Itoa(n - limit))
				sb.WriteString(" more")
				break
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, seqAt(x, i), limit)
		}
		sb.WriteByte(']')
	}
}
