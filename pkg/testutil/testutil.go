// Package testutil provides testing utilities for exoseq
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/exoseq/pkg/dataset"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// Value is the value MemoryDataset stores for variable k at node n and step s.
// It matches the values exodus.Synthetic generates.
func Value(k, step, node int) float64 {
	return float64(100*(k+1)+step) + float64(node)/1000
}

// MemoryDataset builds an in-memory dataset with steps time steps spaced 0.1
// apart, nodes nodes along the x axis and one variable per name.
func MemoryDataset(steps, nodes int, names ...string) *dataset.Memory {
	x := make([]float64, nodes)
	y := make([]float64, nodes)
	for n := range x {
		x[n] = float64(n)
		y[n] = float64(n) / 2
	}
	times := make([]float64, steps)
	for s := range times {
		times[s] = float64(s) / 10
	}
	m := dataset.NewMemory(x, y, nil, times)
	for k, name := range names {
		vals := make([][]float64, steps)
		for s := range vals {
			vals[s] = make([]float64, nodes)
			for n := range vals[s] {
				vals[s][n] = Value(k, s, n)
			}
		}
		m.AddVariable(name, vals)
	}
	return m
}

// VariableNames returns n generated variable names.
func VariableNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("VAR_%d", i)
	}
	return names
}
