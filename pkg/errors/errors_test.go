package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeData, "bad array")
	outer := Wrap(inner, ErrorTypeWriteFailure, "append failed")

	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeWriteFailure))
	assert.True(t, IsType(outer, ErrorTypeData))
	assert.False(t, IsType(outer, ErrorTypeConfig))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeFile, "unused"))
}

func TestIsTypeOnForeignError(t *testing.T) {
	assert.False(t, IsType(io.EOF, ErrorTypeFile))
	assert.Equal(t, ErrorTypeInternal, TypeOf(io.EOF))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"write failure", New(ErrorTypeWriteFailure, "disk full"), true},
		{"connection", New(ErrorTypeConnection, "reset"), true},
		{"timeout", New(ErrorTypeTimeout, "deadline"), true},
		{"variable not found", VariableNotFound("TEMP"), false},
		{"malformed", New(ErrorTypeMalformedEncoding, "bad tag"), false},
		{"plain error", stderrors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestVariableNotFoundDetail(t *testing.T) {
	err := VariableNotFound("HEAT_FLUX_x")

	v, ok := err.Detail("variable")
	require.True(t, ok)
	assert.Equal(t, "HEAT_FLUX_x", v)
	assert.NotEmpty(t, err.Stack)
}
