package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
)

func TestTraceNoop(t *testing.T) {
	require.NoError(t, Init(Config{Exporter: "none"}))

	called := false
	err := Trace(context.Background(), "noop", func(ctx context.Context, span *Span) error {
		called = true
		span.SetAttribute("input", "cube.e")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTraceStdout(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Exporter = "stdout"
	cfg.Output = &out
	require.NoError(t, Init(cfg))

	failure := errors.New(errors.ErrorTypeWriteFailure, "disk full")
	err := Trace(context.Background(), "convert", func(ctx context.Context, span *Span) error {
		span.SetAttribute("input", "cube.e")
		span.SetAttribute("attempt", 2)
		_, child := StartSpan(ctx, "upload")
		child.End()
		return failure
	})
	assert.Equal(t, error(failure), err)

	require.NoError(t, Shutdown(context.Background()))
	text := out.String()
	assert.Contains(t, text, `"Name":"convert"`)
	assert.Contains(t, text, `"Name":"upload"`)
	assert.Contains(t, text, "write_failure")
	assert.Contains(t, text, "cube.e")

	assert.GreaterOrEqual(t, testutil.CollectAndCount(metrics.OperationDuration), 2)
}
