package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns errs in order, then succeeds with content.
type scriptedModel struct {
	mu      sync.Mutex
	errs    []error
	content string
	calls   int
	block   bool
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(ctx context.Context, _ Request) (Response, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	if n <= len(m.errs) {
		return Response{}, m.errs[n-1]
	}
	return Response{Content: m.content}, nil
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func transient() error {
	return &TransientError{Provider: "scripted", StatusCode: 503, Err: errors.New("unavailable")}
}

func TestInvoker_FirstAttemptSucceeds(t *testing.T) {
	m := &scriptedModel{content: "ok"}
	inv := NewInvoker(m, DefaultPolicy)

	resp, err := inv.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, "scripted", inv.Name())
}

func TestInvoker_RetriesTransientWithBackoff(t *testing.T) {
	m := &scriptedModel{errs: []error{transient(), transient()}, content: "ok"}
	sleeps := &recordedSleeps{}
	inv := NewInvoker(m, Policy{MaxAttempts: 3, BaseDelay: time.Second}, WithSleep(sleeps.sleep))

	resp, err := inv.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, m.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.delays)
}

func TestInvoker_Exhausted(t *testing.T) {
	m := &scriptedModel{errs: []error{transient(), transient(), transient(), transient()}}
	sleeps := &recordedSleeps{}
	inv := NewInvoker(m, Policy{MaxAttempts: 3, BaseDelay: time.Second}, WithSleep(sleeps.sleep))

	_, err := inv.Generate(context.Background(), Request{})

	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.Equal(t, 3, m.calls)
	assert.Len(t, sleeps.delays, 2)

	var te *TransientError
	assert.ErrorAs(t, err, &te, "last failure should be reachable through Unwrap")
}

func TestInvoker_AuthErrorNotRetried(t *testing.T) {
	m := &scriptedModel{errs: []error{&AuthError{Provider: "scripted", StatusCode: 401, Message: "bad key"}}}
	inv := NewInvoker(m, DefaultPolicy, WithSleep((&recordedSleeps{}).sleep))

	_, err := inv.Generate(context.Background(), Request{})
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, m.calls)
}

func TestInvoker_RequestErrorNotRetried(t *testing.T) {
	m := &scriptedModel{errs: []error{&RequestError{Provider: "scripted", StatusCode: 400, Message: "unknown model"}}}
	inv := NewInvoker(m, DefaultPolicy, WithSleep((&recordedSleeps{}).sleep))

	_, err := inv.Generate(context.Background(), Request{})
	var re *RequestError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, 1, m.calls)
}

func TestInvoker_AttemptTimeout(t *testing.T) {
	m := &scriptedModel{block: true}
	inv := NewInvoker(m, Policy{MaxAttempts: 2, Timeout: 10 * time.Millisecond}, WithSleep((&recordedSleeps{}).sleep))

	_, err := inv.Generate(context.Background(), Request{})

	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2, timeout.Attempt)
	assert.Equal(t, 2, m.calls)
}

func TestInvoker_ParentCancelled(t *testing.T) {
	m := &scriptedModel{block: true}
	inv := NewInvoker(m, Policy{MaxAttempts: 3, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.calls)
}

func TestInvoker_CancelledDuringBackoff(t *testing.T) {
	m := &scriptedModel{errs: []error{transient(), transient()}}
	ctx, cancel := context.WithCancel(context.Background())
	inv := NewInvoker(m, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := inv.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.calls)
}

func TestInvoker_RateLimit(t *testing.T) {
	inv := NewInvoker(&scriptedModel{}, DefaultPolicy, WithRateLimit(0))
	assert.Nil(t, inv.limiter)

	inv = NewInvoker(&scriptedModel{content: "ok"}, DefaultPolicy, WithRateLimit(600))
	require.NotNil(t, inv.limiter)

	_, err := inv.Generate(context.Background(), Request{})
	assert.NoError(t, err, "first request takes the initial token")
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
