package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*CapMeshLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:       level,
		Format:      "json",
		Output:      &buf,
		CustomAttrs: map[string]interface{}{},
	})
	return logger, &buf
}

func TestSlogAdapterForwards(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	adapter.Info("chain registered", "service", "completion")

	out := buf.String()
	assert.Contains(t, out, "chain registered")
	assert.Contains(t, out, `"service":"completion"`)
}

func TestWithConversationAttachesIdentifiers(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.WithConversation("conv-1", "dec-9").Info("turn handled")

	out := buf.String()
	assert.Contains(t, out, `"conversation_id":"conv-1"`)
	assert.Contains(t, out, `"decision_id":"dec-9"`)
}

func TestWithContextDoesNotMutateParent(t *testing.T) {
	parent, buf := newBufferLogger(LogLevelInfo)

	child := parent.WithContext("tenant", "acme").WithComponent("broker")
	child.Info("attempt")
	require.Contains(t, buf.String(), `"tenant":"acme"`)

	buf.Reset()
	parent.Info("unrelated")
	assert.NotContains(t, buf.String(), "tenant")
	assert.NotContains(t, buf.String(), `"component":"broker"`)
}

func TestLogProviderCall(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogProviderCall("openai-gpt4o-mini", "complete", 120*time.Millisecond, true, nil)
	out := buf.String()
	assert.Contains(t, out, "Provider call completed")
	assert.Contains(t, out, `"provider":"openai-gpt4o-mini"`)
	assert.Contains(t, out, `"operation":"complete"`)
	assert.Contains(t, out, `"success":true`)

	buf.Reset()
	logger.LogProviderCall("openai-gpt4o-mini", "complete", 0, false, errors.New("rate limited"))
	out = buf.String()
	assert.Contains(t, out, "Provider call failed")
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "rate limited")
}

func TestLogProbe(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogProbe("anthropic-sonnet", 40*time.Millisecond, false, errors.New("timeout"))

	out := buf.String()
	assert.Contains(t, out, "Health probe failed")
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"provider":"anthropic-sonnet"`)
	assert.Contains(t, out, "timeout")
}

func TestLogRouteDecision(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogRouteDecision("dec-1", "finance", "interactive", 35*time.Millisecond, false, "")
	out := buf.String()
	assert.Contains(t, out, "Routing decision completed")
	assert.Contains(t, out, `"specialist":"finance"`)
	assert.Contains(t, out, `"tier":"interactive"`)

	buf.Reset()
	logger.LogRouteDecision("dec-2", "", "", time.Millisecond, true, "daily budget exhausted")
	out = buf.String()
	assert.Contains(t, out, "Routing decision rejected")
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, "daily budget exhausted")
}

func TestStartTimerLogsDuration(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	stop := logger.StartTimer("probe_round")
	stop()

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, `"operation":"probe_round"`)
	assert.Contains(t, out, "duration")
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelError)

	logger.Info("should be dropped")
	assert.Empty(t, buf.String())

	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
