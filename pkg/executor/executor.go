// Package executor runs a single network operation reliably: each attempt is
// time-bounded, failed attempts are retried with exponential backoff, and
// retries are held back while the device is offline.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
)

// Operation is one unit of work. It must honour ctx: when an attempt times out
// its ctx is cancelled with ErrAttemptTimeout as the cause, and work that
// ignores that keeps running after the executor has moved on.
type Operation[T any] func(ctx context.Context) (T, error)

// Option customises an Executor at construction.
type Option func(*Executor)

// WithClock replaces the clock used for backoff and connectivity waits.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// Executor holds a retry policy and a connectivity source. It is stateless
// between invocations and safe for concurrent use.
type Executor struct {
	cfg    Config
	conn   connectivity.Provider
	clock  clock.Clock
	logger zerolog.Logger
}

// New creates an Executor. conn may be nil, in which case the executor always
// assumes it is online.
func New(cfg *Config, conn connectivity.Provider, logger zerolog.Logger, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	e := &Executor{
		cfg:    *cfg,
		conn:   conn,
		clock:  clock.NewDefaultClock(),
		logger: logger.With().Str("component", "Executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs op until it succeeds, returns a Permanent error, or the attempt
// budget is spent. Attempts are strictly sequential. On failure the returned
// *Error wraps the final attempt's error.
func Execute[T any](ctx context.Context, e *Executor, op Operation[T], opts ...CallOption) (T, error) {
	var zero T
	cfg := e.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := e.logger.With().Str("invocation_id", uuid.NewString()).Logger()

	var lastErr error
	attempts := 0
	for attempts < cfg.Retries {
		if attempts > 0 {
			if err := e.awaitConnectivity(ctx, cfg.ConnectivityWait, logger); err != nil {
				return zero, e.fail(attempts, fmt.Errorf("%w (last attempt: %w)", err, lastErr))
			}
			delay := backoff(cfg.BaseDelay, attempts-1)
			logger.Debug().Int("next_attempt", attempts+1).Dur("delay", delay).Msg("Backing off before retry.")
			if err := e.sleep(ctx, delay); err != nil {
				return zero, e.fail(attempts, fmt.Errorf("%w (last attempt: %w)", err, lastErr))
			}
		}

		attempts++
		value, err := runAttempt(ctx, cfg.Timeout, op)
		if err == nil {
			if attempts > 1 {
				logger.Info().Int("attempts", attempts).Msg("Operation succeeded after retry.")
			}
			return value, nil
		}
		lastErr = err

		if ctxErr := context.Cause(ctx); ctxErr != nil {
			logger.Debug().Err(ctxErr).Msg("Caller cancelled, not retrying.")
			return zero, e.fail(attempts, err)
		}
		if IsPermanent(err) {
			logger.Warn().Err(err).Int("attempt", attempts).Msg("Operation failed permanently, not retrying.")
			break
		}
		logger.Warn().Err(err).Int("attempt", attempts).Int("max_attempts", cfg.Retries).Msg("Attempt failed.")
	}

	logger.Error().Err(lastErr).Int("attempts", attempts).Msg("Operation failed, retries exhausted.")
	return zero, e.fail(attempts, lastErr)
}

func (e *Executor) fail(attempts int, err error) *Error {
	return &Error{
		Attempts:  attempts,
		Connected: e.conn == nil || e.conn.IsConnected(),
		Err:       err,
	}
}

// runAttempt races op against the attempt timeout. op runs in its own
// goroutine writing into a buffered channel, so an abandoned attempt never
// blocks once it finally returns.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, timeout, ErrAttemptTimeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op(attemptCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(context.Cause(attemptCtx), ErrAttemptTimeout) {
			return r.value, fmt.Errorf("%w: %w", ErrAttemptTimeout, r.err)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		var zero T
		cause := context.Cause(attemptCtx)
		if errors.Is(cause, ErrAttemptTimeout) {
			return zero, fmt.Errorf("%w after %v", ErrAttemptTimeout, timeout)
		}
		return zero, cause
	}
}

// awaitConnectivity holds a retry while offline. The restoration
// subscription and the bound timer share one scope, so both are released on
// every exit path. Returning nil after the bound lets the retry proceed.
func (e *Executor) awaitConnectivity(ctx context.Context, bound time.Duration, logger zerolog.Logger) error {
	if e.conn == nil || e.conn.IsConnected() {
		return nil
	}

	restored := make(chan struct{}, 1)
	unsubscribe := e.conn.OnRestored(func() {
		select {
		case restored <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// Connectivity may have returned between the check and the subscription.
	if e.conn.IsConnected() {
		return nil
	}

	logger.Info().Dur("max_wait", bound).Msg("Offline, waiting for connectivity before retrying.")
	select {
	case <-restored:
		logger.Info().Msg("Connectivity restored, resuming retries.")
	case <-e.clock.TickAfter(bound):
		logger.Warn().Msg("Connectivity not restored in time, retrying anyway.")
	case <-ctx.Done():
		return context.Cause(ctx)
	}
	return nil
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-e.clock.TickAfter(d):
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// backoff returns base * 2^i, with the exponent capped to avoid overflow.
func backoff(base time.Duration, i int) time.Duration {
	if i > 30 {
		i = 30
	}
	return base * time.Duration(1<<uint(i))
}
