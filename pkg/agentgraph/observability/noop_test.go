package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordNodeExecution(context.Background(), "n", time.Second, errors.New("x"))
		m.RecordRun(context.Background(), true, time.Second)
		m.RecordTokens(context.Background(), "model", 100)
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}

	ctx := context.Background()
	outCtx, span := sm.StartRunSpan(ctx, "fw", "run")
	assert.Equal(t, ctx, outCtx)
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	outCtx, span = sm.StartNodeSpan(ctx, "n")
	assert.Equal(t, ctx, outCtx)
	assert.NotNil(t, span)

	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("x"))
		sm.AddSpanEvent(ctx, "event")
	})
}
