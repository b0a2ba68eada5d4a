package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory span recorder and returns it.
func setupTracingTest(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
	})
	return recorder
}

func TestSpanManager_RunSpan(t *testing.T) {
	recorder := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartRunSpan(context.Background(), "my pipeline", "run-123")
	require.NotNil(t, ctx)
	sm.EndSpanWithError(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agentgraph.run", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.String("framework.name", "my pipeline"))
	assert.Contains(t, attrs, attribute.String("run.id", "run-123"))
}

func TestSpanManager_NodeSpanChildOfRun(t *testing.T) {
	recorder := setupTracingTest(t)
	sm := NewSpanManager()

	runCtx, runSpan := sm.StartRunSpan(context.Background(), "p", "run-1")
	_, nodeSpan := sm.StartNodeSpan(runCtx, "agent-1")
	sm.EndSpanWithError(nodeSpan, nil)
	sm.EndSpanWithError(runSpan, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	node, run := spans[0], spans[1]
	assert.Equal(t, "agentgraph.node.agent-1", node.Name())
	assert.Equal(t, run.SpanContext().SpanID(), node.Parent().SpanID())
}

func TestSpanManager_ErrorStatus(t *testing.T) {
	recorder := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartNodeSpan(context.Background(), "n")
	sm.EndSpanWithError(span, errors.New("script: boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "script: boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1) // the recorded error
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	recorder := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartRunSpan(context.Background(), "p", "run-1")
	sm.AddSpanEvent(ctx, "fan-in", attribute.Int("sources", 2))
	sm.EndSpanWithError(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "fan-in", events[0].Name)
}

func TestSpanManager_EndNilSpan(t *testing.T) {
	sm := NewSpanManager()
	assert.NotPanics(t, func() {
		sm.EndSpanWithError(nil, errors.New("x"))
	})
}
