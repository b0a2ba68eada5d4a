package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

func TestLogHelpers_NilLoggerSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "run", "fw")
		LogRunComplete(nil, "run", 10, 3)
		LogRunError(nil, "run", errors.New("x"), 10)
		LogNodeStart(nil, "n")
		LogNodeComplete(nil, "n", 5)
		LogNodeError(nil, "n", errors.New("x"))
	})
}

func TestLogRunStart(t *testing.T) {
	logger, buf := newBufferLogger()

	LogRunStart(logger, "run-1", "fw-1")

	out := buf.String()
	assert.Contains(t, out, "run starting")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "fw-1")
}

func TestLogRunError(t *testing.T) {
	logger, buf := newBufferLogger()

	LogRunError(logger, "run-1", errors.New("cycle detected"), 42)

	out := buf.String()
	assert.Contains(t, out, "run failed")
	assert.Contains(t, out, "cycle detected")
	assert.Contains(t, out, `"level":"ERROR"`)
}

func TestLogNodeError_IsWarning(t *testing.T) {
	logger, buf := newBufferLogger()

	LogNodeError(logger, "agent-1", errors.New("completion: timeout"))

	out := buf.String()
	assert.Contains(t, out, "node failed")
	// Node failures don't fail the run, so they log at warn.
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestTimedOperation(t *testing.T) {
	elapsed := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, elapsed(), float64(0))
}
