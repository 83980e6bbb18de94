package helpers

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPollInterval is used by Poll when no interval is given.
const DefaultPollInterval = 50 * time.Millisecond

// ErrTimedOut is returned by Poll when the condition never became true within the timeout.
var ErrTimedOut = errors.New("timed out")

// Poll calls checkFn at a fixed interval until it returns true, the timeout elapses, or ctx is
// done. It does not start any goroutines, so checkFn runs on the caller's goroutine and may
// terminate the test (for instance with FailNow).
//
// The first check happens immediately. When the timeout elapses, checkFn gets one last chance
// so that a condition which became true between two ticks is not missed. Poll returns nil on
// success, ErrTimedOut if the timeout elapsed, or ctx.Err() if the parent context ended first.
//
// The context passed to checkFn expires with the poll, so a slow check cannot outlive it by more
// than one interval.
func Poll(ctx context.Context, timeout, interval time.Duration, checkFn func(context.Context) bool) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow() // the first check is free; every later one waits a full interval
	for {
		if checkFn(pollCtx) {
			return nil
		}
		if err := limiter.Wait(pollCtx); err != nil {
			// Wait gives up early when the next tick would land past the deadline.
			break
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-pollCtx.Done():
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	finalCtx, finalCancel := context.WithTimeout(ctx, interval)
	defer finalCancel()
	if checkFn(finalCtx) {
		return nil
	}
	return ErrTimedOut
}

// PollForSpecificResultValue calls testFn repeatedly at intervals until the expected value is
// seen or the timeout elapses. Returns true if the value was matched, false if timed out.
func PollForSpecificResultValue[V comparable](
	testFn func() V,
	timeout time.Duration,
	interval time.Duration,
	expectedValue V,
) bool {
	return Poll(context.Background(), timeout, interval, func(context.Context) bool {
		return testFn() == expectedValue
	}) == nil
}

// AssertEventually is equivalent to assert.Eventually from stretchr/testify/assert, except that
// it does not use a separate goroutine so it does not cause problems with our test framework. It
// calls testFn repeatedly at intervals until it gets a true value; if the timeout elapses, the
// test fails.
func AssertEventually(
	t TestContext,
	testFn func() bool,
	timeout time.Duration,
	interval time.Duration,
	failureMsgFormat string,
	failureMsgArgs ...interface{},
) bool {
	t.Helper()
	if PollForSpecificResultValue(testFn, timeout, interval, true) {
		return true
	}
	t.Errorf(failureMsgFormat, failureMsgArgs...)
	return false
}

// RequireEventually is the same as AssertEventually, except that the test terminates
// immediately on failure.
func RequireEventually(
	t TestContext,
	testFn func() bool,
	timeout time.Duration,
	interval time.Duration,
	failureMsgFormat string,
	failureMsgArgs ...interface{},
) {
	t.Helper()
	if !AssertEventually(t, testFn, timeout, interval, failureMsgFormat, failureMsgArgs...) {
		t.FailNow()
	}
}
