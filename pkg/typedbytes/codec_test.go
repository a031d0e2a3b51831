package typedbytes

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	b, err := Encode(v)
	require.NoError(t, err)

	n, err := Size(v)
	require.NoError(t, err)
	assert.Equal(t, n, len(b), "Size disagrees with Encode")

	got, consumed, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), consumed)

	streamed, err := ReadValue(bufio.NewReader(bytes.NewReader(b)))
	require.NoError(t, err)
	assert.True(t, Equal(got, streamed), "streaming decode differs: %s vs %s", Format(got, 0), Format(streamed, 0))
	return got
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"zero", Int(0)},
		{"negative", Int(-3)},
		{"min int", Int(math.MinInt64)},
		{"max int", Int(math.MaxInt64)},
		{"float", Float(1.5)},
		{"negative zero", Float(math.Copysign(0, -1))},
		{"inf", Float(math.Inf(1))},
		{"nan", Float(math.NaN())},
		{"empty string", String("")},
		{"string", String("HEAT_FLUX_x")},
		{"unicode", String("température ∂T/∂t")},
		{"empty seq", Seq{}},
		{"mixed seq", Seq{Int(1), Float(2.5), String("three")}},
		{"tuple", Tuple{Int(3), Float(1.5)}},
		{"named arrays", Seq{
			Tuple{String("TEMP"), Seq{Float(1), Float(2)}},
			Tuple{String("HEAT_FLUX_x"), Seq{Float(-1), Float(0.25)}},
		}},
		{"depth 4", Seq{Tuple{Seq{Tuple{Int(1), Seq{Float(2)}}}, String("x")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.v)
			assert.True(t, Equal(tt.v, got), "want %s, got %s", Format(tt.v, 0), Format(got, 0))
		})
	}
}

func TestTupleKeepsNumericKinds(t *testing.T) {
	got := roundTrip(t, Tuple{Int(3), Float(1.5)})

	tup, ok := got.(Tuple)
	require.True(t, ok)
	assert.Equal(t, Int(3), tup[0])
	assert.Equal(t, Float(1.5), tup[1])
}

func TestFloatArrayEncodesAsSeq(t *testing.T) {
	xs := []float64{0, 1.25, -7, math.Inf(-1)}

	fromArray, err := Encode(FloatArray(xs))
	require.NoError(t, err)
	fromSeq, err := Encode(Seq{Float(0), Float(1.25), Float(-7), Float(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, fromSeq, fromArray)

	got, _, err := Decode(fromArray)
	require.NoError(t, err)
	assert.IsType(t, Seq{}, got)
	back, ok := AsFloats(got)
	require.True(t, ok)
	assert.Equal(t, xs, back)
}

func TestExactBytes(t *testing.T) {
	b, err := Encode(Tuple{Int(3), Float(1.5)})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		TagTuple,
		TagInt, 0, 0, 0, 0, 0, 0, 0, 3,
		TagFloat, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0,
	}, b)

	b, err = Encode(Seq{String("ab")})
	require.NoError(t, err)
	assert.Equal(t, []byte{TagSeq, 0, 0, 0, 1, TagString, 0, 0, 0, 2, 'a', 'b'}, b)

	b, err = Encode(Int(-1))
	require.NoError(t, err)
	assert.Equal(t, []byte{TagInt, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, b)
}

func TestDecodeLeavesTrailingBytes(t *testing.T) {
	a, err := Encode(Int(-1))
	require.NoError(t, err)
	b, err := Encode(String("total"))
	require.NoError(t, err)

	buf := append(append([]byte{}, a...), b...)
	v, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Int(-1), v)
	assert.Equal(t, len(a), n)

	v, _, err = Decode(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, String("total"), v)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{0x63}},
		{"short int", []byte{TagInt, 0, 0, 0}},
		{"short float", []byte{TagFloat, 1, 2}},
		{"string length past end", []byte{TagString, 0, 0, 0, 9, 'a'}},
		{"string missing length", []byte{TagString, 0, 0}},
		{"seq count past end", []byte{TagSeq, 0, 0, 0, 3, TagInt, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"huge seq count", []byte{TagSeq, 0xff, 0xff, 0xff, 0xff}},
		{"tuple with one element", []byte{TagTuple, TagInt, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"tuple with none", []byte{TagTuple}},
		{"invalid utf8", []byte{TagString, 0, 0, 0, 1, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.in)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEncoding), "got %v", err)
		})
	}
}

func TestReadValueMalformed(t *testing.T) {
	_, err := ReadValue(bufio.NewReader(bytes.NewReader(nil)))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadValue(bufio.NewReader(bytes.NewReader([]byte{TagTuple, TagInt, 0, 0, 0, 0, 0, 0, 0, 1})))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEncoding))

	_, err = ReadValue(bufio.NewReader(bytes.NewReader([]byte{0x09})))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEncoding))
}

func TestDecodeDepthLimit(t *testing.T) {
	var v Value = Int(1)
	for i := 0; i < MaxDepth+2; i++ {
		v = Seq{v}
	}
	_, err := Encode(v)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))

	deep := bytes.Repeat([]byte{TagSeq, 0, 0, 0, 1}, MaxDepth+2)
	_, _, err = Decode(deep)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedEncoding))
}

func TestEncodeUnsupported(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"nil", nil},
		{"nil element", Seq{Int(1), nil}},
		{"nil tuple half", Tuple{String("a"), nil}},
		{"invalid utf8", String([]byte{0xc3, 0x28})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.v)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType), "got %v", err)
		})
	}
}

func TestAppendKeepsDstOnError(t *testing.T) {
	dst := []byte{1, 2, 3}
	out, err := Append(dst, Seq{Int(1), nil})
	require.Error(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(FloatArray{1, 2}, Seq{Float(1), Float(2)}))
	assert.False(t, Equal(FloatArray{1, 2}, Seq{Float(1), Int(2)}))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.False(t, Equal(Seq{Int(1)}, Tuple{Int(1), Int(1)}))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(Int(0), nil))
}

func TestFormat(t *testing.T) {
	v := Tuple{Int(3), Seq{Float(1.5), String("a"), Float(2), Float(3)}}
	assert.Equal(t, `(3, [1.5, "a", 2, 3])`, Format(v, 0))
	assert.Equal(t, `(3, [1.5, "a", ... 2 more])`, Format(v, 2))
}
