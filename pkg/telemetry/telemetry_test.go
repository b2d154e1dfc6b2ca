package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTracing(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Tracing: true, Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "write journal")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "write journal")
}

func TestSetupMetrics(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Metrics: true, Writer: &buf})
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry-test").Int64Counter("fixmd.test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "fixmd.test.events")
}

func TestSetupNothing(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
