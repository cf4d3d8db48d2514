package executor_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/illmade-knight/go-chatsync/pkg/executor"
	"github.com/stretchr/testify/assert"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want executor.Kind
	}{
		{name: "nil", err: nil, want: executor.KindNone},
		{name: "cancelled", err: fmt.Errorf("fetch: %w", context.Canceled), want: executor.KindCancelled},
		{name: "attempt timeout", err: &executor.Error{Attempts: 3, Connected: true, Err: executor.ErrAttemptTimeout}, want: executor.KindTimeout},
		{name: "deadline", err: context.DeadlineExceeded, want: executor.KindTimeout},
		{name: "net timeout", err: &net.OpError{Op: "read", Err: timeoutNetError{}}, want: executor.KindTimeout},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: executor.KindRefused},
		{name: "offline wins over timeout", err: &executor.Error{Attempts: 3, Connected: false, Err: executor.ErrAttemptTimeout}, want: executor.KindOffline},
		{name: "operation", err: errors.New("permission denied"), want: executor.KindOperation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, executor.Classify(tc.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, executor.Describe(nil))
	assert.Contains(t, executor.Describe(&executor.Error{Connected: false, Err: errors.New("x")}), "offline")
	assert.Contains(t, executor.Describe(executor.ErrAttemptTimeout), "too long")
	assert.Contains(t, executor.Describe(errors.New("boom")), "Something went wrong")
}

func TestPermanent(t *testing.T) {
	base := errors.New("invalid listing")

	assert.Nil(t, executor.Permanent(nil))
	assert.False(t, executor.IsPermanent(base))

	wrapped := fmt.Errorf("create listing: %w", executor.Permanent(base))
	assert.True(t, executor.IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "offline", executor.KindOffline.String())
}
