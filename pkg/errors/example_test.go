package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// Example demonstrates basic error creation with context details.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "window size must be at least 1").
		WithDetail("window_size", 0)

	fmt.Println(err.Error())

	// Output:
	// validation: window size must be at least 1
}

// ExampleWrap shows how to wrap an I/O error so callers can branch on its type.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeWriteFailure, "failed to append record").
		WithDetail("file", "run_part0.seq")

	if errors.IsType(err, errors.ErrorTypeWriteFailure) {
		fmt.Println("write failure")
	}
	if errors.Is(err, io.ErrShortWrite) {
		fmt.Println("caused by short write")
	}
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// write failure
	// caused by short write
	// true
}

// ExampleVariableNotFound shows the error raised for an unknown variable name.
func ExampleVariableNotFound() {
	err := errors.VariableNotFound("PRESSURE")

	fmt.Println(err)
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// variable_not_found: variable "PRESSURE" does not exist
	// false
}
