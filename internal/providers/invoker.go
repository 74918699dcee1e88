package providers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/prpilot/internal/logging"
)

// Policy bounds how a model is called.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt. It doubles for each
	// further attempt.
	BaseDelay time.Duration
	// Timeout applies to each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
}

// DefaultPolicy is three attempts, 1s then 2s apart, 60s each.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second, Timeout: 60 * time.Second}

// Delay returns the wait after a failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

type invokeState int

const (
	stateAttempting invokeState = iota
	stateBackoff
	stateSucceeded
	stateFailed
	stateExhausted
)

func (s invokeState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateBackoff:
		return "backoff"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Invoker wraps a Model with per-attempt timeouts, bounded retries of
// transient failures and an optional request rate limit. It satisfies Model
// itself, so callers need not know whether retries are in play.
type Invoker struct {
	model   Model
	policy  Policy
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRateLimit caps outgoing requests per minute. Zero or less disables it.
func WithRateLimit(perMinute int) InvokerOption {
	return func(inv *Invoker) {
		if perMinute <= 0 {
			inv.limiter = nil
			return
		}
		inv.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithSleep replaces the backoff wait. Tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) InvokerOption {
	return func(inv *Invoker) { inv.sleep = fn }
}

// NewInvoker returns an Invoker around m. A zero MaxAttempts means
// DefaultPolicy.MaxAttempts; a zero Timeout disables the attempt deadline.
func NewInvoker(m Model, policy Policy, opts ...InvokerOption) *Invoker {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	inv := &Invoker{model: m, policy: policy, sleep: sleepContext}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (inv *Invoker) Name() string { return inv.model.Name() }

// Generate runs the attempt loop. Auth and request errors end it at once.
// Transient failures and attempt timeouts are retried until MaxAttempts is
// reached, after which a *ModelUnavailableError is returned. Cancellation of
// ctx ends the loop with ctx.Err().
func (inv *Invoker) Generate(ctx context.Context, req Request) (Response, error) {
	var (
		resp    Response
		err     error
		attempt = 1
		state   = stateAttempting
		log     = logging.L().With(zap.String("provider", inv.model.Name()))
	)

	for {
		switch state {
		case stateAttempting:
			if inv.limiter != nil {
				if werr := inv.limiter.Wait(ctx); werr != nil {
					if ctx.Err() != nil {
						return Response{}, ctx.Err()
					}
					return Response{}, werr
				}
			}
			resp, err = inv.attempt(ctx, req, attempt)
			switch {
			case err == nil:
				state = stateSucceeded
			case ctx.Err() != nil:
				return Response{}, ctx.Err()
			case !IsRetryable(err):
				state = stateFailed
			case attempt >= inv.policy.MaxAttempts:
				state = stateExhausted
			default:
				state = stateBackoff
			}
			log.Debug("model attempt finished",
				zap.Int("attempt", attempt),
				zap.Stringer("next", state),
				zap.Error(err))

		case stateBackoff:
			delay := inv.policy.Delay(attempt)
			log.Warn("retrying model call",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", inv.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(err))
			if serr := inv.sleep(ctx, delay); serr != nil {
				return Response{}, serr
			}
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return resp, nil

		case stateFailed:
			return Response{}, err

		case stateExhausted:
			return Response{}, &ModelUnavailableError{
				Provider: inv.model.Name(),
				Attempts: attempt,
				Last:     err,
			}
		}
	}
}

func (inv *Invoker) attempt(ctx context.Context, req Request, n int) (Response, error) {
	if inv.policy.Timeout <= 0 {
		return inv.model.Generate(ctx, req)
	}
	actx, cancel := context.WithTimeout(ctx, inv.policy.Timeout)
	defer cancel()

	resp, err := inv.model.Generate(actx, req)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return Response{}, &TimeoutError{Provider: inv.model.Name(), Timeout: inv.policy.Timeout, Attempt: n}
	}
	return resp, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
