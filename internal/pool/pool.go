// Package pool runs a batch of dispatches with bounded concurrency.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/torosent/barrage/internal/httpclient"
)

var (
	// ErrInvalidConcurrency is returned for a concurrency limit below one.
	ErrInvalidConcurrency = errors.New("pool: concurrency must be at least 1")
	// ErrCanceled is returned when the context ends before every target was dispatched.
	ErrCanceled = errors.New("pool: run canceled")
)

// Dispatcher performs a single request against url.
type Dispatcher interface {
	Dispatch(ctx context.Context, url string) httpclient.Outcome
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, url string) httpclient.Outcome

func (f DispatchFunc) Dispatch(ctx context.Context, url string) httpclient.Outcome {
	return f(ctx, url)
}

// Option configures a Pool.
type Option func(*Pool)

// WithRateLimit paces dispatch starts to rps per second (0 means unlimited).
func WithRateLimit(rps int) Option {
	return func(p *Pool) { p.rps = rps }
}

// WithLimiterFactory overrides how the rate limiter is built; used by tests.
func WithLimiterFactory(factory func(rps int) *rate.Limiter) Option {
	return func(p *Pool) { p.limiterFactory = factory }
}

// WithOutcomeHook registers fn to be called from the worker goroutine as
// each outcome arrives. fn must be safe for concurrent use.
func WithOutcomeHook(fn func(httpclient.Outcome)) Option {
	return func(p *Pool) { p.onOutcome = fn }
}

// Pool executes dispatches with at most Concurrency in flight.
type Pool struct {
	concurrency    int
	rps            int
	limiterFactory func(rps int) *rate.Limiter
	onOutcome      func(httpclient.Outcome)
}

// New returns a pool bounded to concurrency simultaneous dispatches.
func New(concurrency int, opts ...Option) (*Pool, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidConcurrency, concurrency)
	}
	p := &Pool{concurrency: concurrency}
	for _, opt := range opts {
		opt(p)
	}
	if p.rps < 0 {
		p.rps = 0
	}
	if p.limiterFactory == nil {
		p.limiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps starts evenly spaced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	return p, nil
}

// Concurrency returns the in-flight bound.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Run dispatches every target and returns one outcome per dispatched
// target, in target order. It does not return until every started
// dispatch has finished.
//
// If ctx ends first, no further dispatches start and Run returns the
// outcomes produced so far together with an error matching ErrCanceled.
func (p *Pool) Run(ctx context.Context, targets []httpclient.Target, d Dispatcher) ([]httpclient.Outcome, error) {
	if p == nil || p.concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	if d == nil {
		return nil, errors.New("pool: dispatcher is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slots := semaphore.NewWeighted(int64(p.concurrency))
	limiter := p.limiterFactory(p.rps)

	outcomes := make([]httpclient.Outcome, len(targets))
	dispatched := make([]bool, len(targets))

	var wg sync.WaitGroup
	var stopErr error
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				stopErr = waitErr(ctx, err)
				break
			}
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		// Acquire may succeed on an already-canceled context.
		if err := ctx.Err(); err != nil {
			slots.Release(1)
			stopErr = err
			break
		}

		dispatched[i] = true
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer slots.Release(1)

			out := safeDispatch(ctx, d, url)
			outcomes[i] = out
			if p.onOutcome != nil {
				p.onOutcome(out)
			}
		}(i, target.URL())
	}
	wg.Wait()

	if stopErr == nil {
		return outcomes, nil
	}

	partial := make([]httpclient.Outcome, 0, len(targets))
	for i, ok := range dispatched {
		if ok {
			partial = append(partial, outcomes[i])
		}
	}
	return partial, fmt.Errorf("%w: %w", ErrCanceled, stopErr)
}

// safeDispatch turns a panicking dispatcher into a transport error so the
// slot is released and the outcome count stays exact.
func safeDispatch(ctx context.Context, d Dispatcher, url string) (out httpclient.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = httpclient.TransportError(fmt.Errorf("dispatcher panic: %v", r), time.Since(start))
		}
	}()
	return d.Dispatch(ctx, url)
}

// waitErr normalizes limiter errors; rate.Limiter reports a would-exceed
// deadline before the context actually ends.
func waitErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
