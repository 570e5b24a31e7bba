package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewExporterRejectsBadConfig(t *testing.T) {
	_, err := newExporter(context.Background(), TracingConfig{Exporter: "jaeger"})
	assert.Error(t, err)

	_, err = newExporter(context.Background(), TracingConfig{Exporter: ExporterOTLP})
	assert.Error(t, err)

	exporter, err := newExporter(context.Background(), TracingConfig{Exporter: " STDOUT "})
	require.NoError(t, err)
	assert.NotNil(t, exporter)
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", newSampler(1).Description())
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "spekulus-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartAndEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, span := StartSpan(context.Background(), "maintenance", "activate", attribute.String("maintenance.duration", "1h"))
	EndSpan(span, errors.New("store down"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "maintenance.activate", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("maintenance.duration", "1h"))
}
