package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/providers/mock"
	"github.com/hupe1980/capmesh/registry"
)

func newTestBroker(t *testing.T) (*Broker, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	b := New(reg, func(o *Options) {
		o.BackoffUnit = time.Millisecond
	})
	return b, reg
}

func TestInvoke_Success(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().WithCompletion("hello")
	require.NoError(t, reg.Register(core.Provider{ID: "primary", Kind: core.CapabilityCompletion, Handle: h}))

	result, err := b.Invoke(context.Background(), "primary", core.OpComplete, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", core.Text(result))
	assert.Equal(t, 1, h.CallCount())
	assert.Zero(t, b.Attempts("primary", core.OpComplete))
}

func TestInvoke_UnknownProvider(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.Invoke(context.Background(), "nope", core.OpComplete, nil)
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
}

func TestInvoke_UnknownOperation(t *testing.T) {
	b, reg := newTestBroker(t)
	require.NoError(t, reg.Register(core.Provider{ID: "tts", Kind: core.CapabilitySynthesis, Handle: mock.NewHandle()}))

	_, err := b.Invoke(context.Background(), "tts", core.OpComplete, nil)
	assert.ErrorIs(t, err, core.ErrUnknownOperation)
}

func TestInvoke_CircuitOpenSkipsCall(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().WithCompletion("unused")
	require.NoError(t, reg.Register(core.Provider{ID: "flaky", Kind: core.CapabilityCompletion, Handle: h}))

	// Push consecutive failures past the ceiling.
	for i := 0; i <= reg.FailureCeiling(); i++ {
		reg.RecordFailure("flaky", errors.New("boom"))
	}
	require.False(t, reg.IsEligible("flaky"))

	_, err := b.Invoke(context.Background(), "flaky", core.OpComplete, nil)
	assert.ErrorIs(t, err, core.ErrProviderUnhealthy)
	assert.Zero(t, h.CallCount(), "no network call may be attempted")
	assert.Zero(t, b.Attempts("flaky", core.OpComplete), "no attempt counter increment")
}

func TestInvoke_RetriesThenSucceeds(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().WithCompletion("ok").FailTimes(2, errors.New("transient"))
	require.NoError(t, reg.Register(core.Provider{ID: "primary", Kind: core.CapabilityCompletion, Handle: h}))

	result, err := b.Invoke(context.Background(), "primary", core.OpComplete, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", core.Text(result))
	assert.Equal(t, 3, h.CallCount())
	assert.Zero(t, b.Attempts("primary", core.OpComplete), "success resets the pair's counter")

	health, err := reg.Health("primary")
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Zero(t, health.ConsecutiveFailures)
}

func TestInvoke_MaxRetriesExceeded(t *testing.T) {
	b, reg := newTestBroker(t)
	underlying := errors.New("permanent outage")
	h := mock.NewHandle().FailAlways(underlying)
	require.NoError(t, reg.Register(core.Provider{ID: "down", Kind: core.CapabilityCompletion, Handle: h}))

	_, err := b.Invoke(context.Background(), "down", core.OpComplete, nil)
	require.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, underlying, "carries the last underlying error")
	assert.Equal(t, 3, h.CallCount(), "attempts never exceed maxRetries")
	assert.Equal(t, 3, b.Attempts("down", core.OpComplete))

	health, err := reg.Health("down")
	require.NoError(t, err)
	assert.Equal(t, 3, health.ConsecutiveFailures, "every attempt outcome updates health")
}

func TestInvoke_MaxRetriesOverride(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().FailAlways(errors.New("down"))
	require.NoError(t, reg.Register(core.Provider{ID: "p", Kind: core.CapabilityCompletion, Handle: h}))

	_, err := b.Invoke(context.Background(), "p", core.OpComplete, nil, func(o *InvokeOptions) { o.MaxRetries = 1 })
	require.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
	assert.Equal(t, 1, h.CallCount())
}

func TestInvoke_BackoffCancellation(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().FailAlways(errors.New("down"))
	require.NoError(t, reg.Register(core.Provider{ID: "p", Kind: core.CapabilityCompletion, Handle: h}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Invoke(ctx, "p", core.OpComplete, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, h.CallCount(), 1, "pending backoff waits abort on cancellation")
}

func TestInvokeWithFallback_SecondProviderWins(t *testing.T) {
	b, reg := newTestBroker(t)
	a := mock.NewHandle().FailAlways(errors.New("a down"))
	bb := mock.NewHandle().WithCompletion("from b")
	c := mock.NewHandle().WithCompletion("never")
	require.NoError(t, reg.Register(core.Provider{ID: "a", Kind: core.CapabilityCompletion, Handle: a}))
	require.NoError(t, reg.Register(core.Provider{ID: "b", Kind: core.CapabilityCompletion, Handle: bb}))
	require.NoError(t, reg.Register(core.Provider{ID: "c", Kind: core.CapabilityCompletion, Handle: c}))
	require.NoError(t, reg.RegisterChain("completion", "a", "b", "c"))

	result, servedBy, err := b.InvokeWithFallback(context.Background(), "completion", core.OpComplete, nil)
	require.NoError(t, err)
	assert.Equal(t, "from b", core.Text(result))
	assert.Equal(t, "b", servedBy)
	assert.Zero(t, c.CallCount(), "never calls a provider past the first success")
}

func TestInvokeWithFallback_AllFail(t *testing.T) {
	b, reg := newTestBroker(t)
	errA := errors.New("a down")
	errB := errors.New("b down")
	require.NoError(t, reg.Register(core.Provider{ID: "a", Kind: core.CapabilityCompletion, Handle: mock.NewHandle().FailAlways(errA)}))
	require.NoError(t, reg.Register(core.Provider{ID: "b", Kind: core.CapabilityCompletion, Handle: mock.NewHandle().FailAlways(errB)}))
	require.NoError(t, reg.RegisterChain("completion", "a", "b"))

	_, _, err := b.InvokeWithFallback(context.Background(), "completion", core.OpComplete, nil)
	require.ErrorIs(t, err, core.ErrAllProvidersFailed)
	assert.ErrorIs(t, err, errA, "aggregates first provider error")
	assert.ErrorIs(t, err, errB, "aggregates second provider error")
}

func TestInvokeWithFallback_UnknownService(t *testing.T) {
	b, _ := newTestBroker(t)
	_, _, err := b.InvokeWithFallback(context.Background(), "telepathy", core.OpComplete, nil)
	assert.ErrorIs(t, err, core.ErrUnknownService)
}

func TestInvoke_ConcurrentHealthUpdates(t *testing.T) {
	b, reg := newTestBroker(t)
	h := mock.NewHandle().WithCompletion("ok")
	require.NoError(t, reg.Register(core.Provider{ID: "p", Kind: core.CapabilityCompletion, Handle: h}))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_, _ = b.Invoke(context.Background(), "p", core.OpComplete, nil)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	health, err := reg.Health("p")
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Zero(t, health.ConsecutiveFailures)
}
