package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
)

// Span wraps a trace span and records its duration on End
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
	failed     bool
}

// StartSpan starts a span named operation
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operation)
	return ctx, &Span{
		span:      span,
		name:      operation,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span. Attributes are attached on End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed. A nil err is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.failed = true
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.SetAttribute("error.type", string(errors.TypeOf(err)))
}

// End ends the span and records its duration
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	status := "ok"
	if s.failed {
		status = "error"
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	metrics.OperationDuration.WithLabelValues(s.name, status).Observe(time.Since(s.startTime).Seconds())
	s.span.End()
}

// Trace runs fn inside a span named operation
func Trace(ctx context.Context, operation string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx, span)
	span.RecordError(err)
	return err
}
