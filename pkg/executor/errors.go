package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrAttemptTimeout is the cause attached to an attempt's context when its
// timeout fires.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Error is returned once every attempt has failed. It unwraps to the last
// attempt's error; earlier attempts are not aggregated.
type Error struct {
	// Attempts is how many attempts were started.
	Attempts int
	// Connected is the connectivity state when the executor gave up.
	Connected bool
	// Err is the error of the final attempt.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("operation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying, for example a validation
// rejection. The executor stops after the attempt that returned it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Kind is a presentation-only classification of a failure.
type Kind int

const (
	KindNone Kind = iota
	KindCancelled
	KindOffline
	KindTimeout
	KindRefused
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCancelled:
		return "cancelled"
	case KindOffline:
		return "offline"
	case KindTimeout:
		return "timeout"
	case KindRefused:
		return "refused"
	default:
		return "operation"
	}
}

// Classify maps an error to a Kind. It never affects retry behaviour.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var execErr *Error
	if errors.As(err, &execErr) && !execErr.Connected {
		return KindOffline
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	return KindOperation
}

// Describe returns a short message suitable for a non-blocking error banner.
func Describe(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindCancelled:
		return "The request was cancelled."
	case KindOffline:
		return "You appear to be offline. Showing saved content."
	case KindTimeout:
		return "The server is taking too long to respond. Please try again."
	case KindRefused:
		return "The server could not be reached. Please try again later."
	default:
		return "Something went wrong while loading. Please try again."
	}
}
