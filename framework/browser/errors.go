package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronymia/ui-test-harness/framework/helpers"
)

// ErrPageClosed is returned by any Page operation after the page has been released.
var ErrPageClosed = errors.New("page has already been closed")

// ErrElementDetached is wrapped by a Session's Fill or Click when the element could not be
// resolved any more, so that nothing was done to the page. Page looks for the element again after
// it; any other error from Fill or Click ends the interaction.
var ErrElementDetached = errors.New("element is no longer attached to the page")

// A TimeoutError is any failure caused by a deadline passing rather than by something the page
// actively did wrong.
type TimeoutError interface {
	error
	Timeout() bool
}

// IsTimeout returns true if anything in err's chain is a deadline or poll timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te TimeoutError
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, helpers.ErrTimedOut)
}

func isPollTimeout(err error) bool {
	return errors.Is(err, helpers.ErrTimedOut) || errors.Is(err, context.DeadlineExceeded)
}

// NavigationError means the target URL could not be loaded: it was unreachable, returned a
// network-level failure, or did not finish loading before the navigation timeout.
type NavigationError struct {
	URL      string
	Err      error
	TimedOut bool
}

func (e *NavigationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("navigation to %s did not finish loading in time: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Timeout() bool {
	return e.TimedOut || errors.Is(e.Err, context.DeadlineExceeded)
}

// ElementNotFoundError means an interaction's locator never matched any element.
type ElementNotFoundError struct {
	Action  string
	Locator Locator
	Waited  time.Duration
	Err     error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("%s: no element matched %s within %s", e.Action, e.Locator, e.Waited)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

func (e *ElementNotFoundError) Timeout() bool { return isPollTimeout(e.Err) }

// ElementNotInteractableError means an interaction's locator matched, but the element never
// became visible, enabled (and for fills, editable), or the action itself failed.
type ElementNotInteractableError struct {
	Action    string
	Locator   Locator
	Waited    time.Duration
	LastState ElementState
	// LastErr is the most recent error from the driver while attempting the action, if any.
	LastErr error
	// Dispatched is true if the action reached the page and the driver then reported LastErr.
	// Such an action is not repeated.
	Dispatched bool
	Err        error
}

func (e *ElementNotInteractableError) Error() string {
	if e.Dispatched {
		return fmt.Sprintf("%s: %s failed after it was sent to the page: %v", e.Action, e.Locator, e.LastErr)
	}
	msg := fmt.Sprintf("%s: %s was found but not interactable within %s (last state: %s)",
		e.Action, e.Locator, e.Waited, e.LastState)
	if e.LastErr != nil {
		msg += fmt.Sprintf("; last error: %v", e.LastErr)
	}
	return msg
}

func (e *ElementNotInteractableError) Unwrap() error { return e.Err }

func (e *ElementNotInteractableError) Timeout() bool { return isPollTimeout(e.Err) }

// AssertionTimeoutError means an expectation never held within its timeout. LastState describes
// what was observed on the final poll.
type AssertionTimeoutError struct {
	Description string
	Waited      time.Duration
	LastState   string
	// LastErr is set if the final poll could not observe the page at all.
	LastErr error
	Err     error
}

func (e *AssertionTimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s; last observed: %s", e.Waited, e.Description, e.LastState)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (error: %v)", e.LastErr)
	}
	return msg
}

func (e *AssertionTimeoutError) Unwrap() error { return e.Err }

func (e *AssertionTimeoutError) Timeout() bool { return !errors.Is(e.Err, context.Canceled) }
