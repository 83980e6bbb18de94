package uitest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"
)

type environment struct {
	config  TestConfiguration
	ctx     context.Context
	slots   chan struct{} // limits how many parallel subtests run at once
	results Results
	lock    sync.Mutex
}

func (e *environment) record(result TestResult) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if result.Outcome.IsFailure() {
		e.results.Failures = append(e.results.Failures, result)
	}
	e.results.Tests = append(e.results.Tests, result)
}

func (e *environment) snapshot() Results {
	e.lock.Lock()
	defer e.lock.Unlock()
	return Results{
		Tests:    append([]TestResult(nil), e.results.Tests...),
		Failures: append([]TestResult(nil), e.results.Failures...),
	}
}

// T represents a test scope. It is very similar to Go's testing.T type.
//
// A T belongs to the goroutine running its test function. The exception is Failed, which any
// goroutine may call.
type T struct {
	env         *environment
	id          TestID
	ctx         context.Context
	cancel      context.CancelFunc
	debugLogger framework.CapturingLogger
	started     time.Time
	releaseSlot func()
	children    sync.WaitGroup
	cleanups    []func()
	helperFns   []string

	lock       sync.Mutex
	failed     bool
	skipped    bool
	skipReason string
	errors     []error
	artifacts  []Artifact
}

// TestConfiguration contains options for the entire test run.
type TestConfiguration struct {
	// Filter is an optional function for determining which tests to run based on their names.
	Filter Filter

	// TestLogger receives status information about each test.
	TestLogger TestLogger

	// Env is an optional value of any type defined by the application which can be accessed from tests.
	Env interface{}

	// Capabilities is a list of strings which are used by T.Capabilities and T.RequireCapability.
	Capabilities []string

	// Context is the parent of every test's context; if nil, context.Background() is used.
	Context context.Context

	// TestTimeout bounds the context of each test scope. Zero means no deadline.
	TestTimeout time.Duration

	// Parallelism is how many subtests started with RunParallel may run at once. Values below 2
	// make RunParallel behave like Run.
	Parallelism int
}

func (c TestConfiguration) WithEnv(env interface{}) TestConfiguration {
	c.Env = env
	return c
}

// Run starts a top-level test scope.
func Run(
	config TestConfiguration,
	action func(*T),
) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	env := &environment{config: config, ctx: config.Context}
	if config.Parallelism > 1 {
		env.slots = make(chan struct{}, config.Parallelism)
	}
	t := env.newScope(nil)
	t.run(action)
	return env.snapshot()
}

func (e *environment) newScope(id TestID) *T {
	t := &T{env: e, id: id, started: time.Now()}
	if e.config.TestTimeout > 0 {
		t.ctx, t.cancel = context.WithTimeout(e.ctx, e.config.TestTimeout)
	} else {
		t.ctx, t.cancel = context.WithCancel(e.ctx)
	}
	return t
}

func (t *T) run(action func(*T)) (result TestResult) {
	defer func() {
		r := recover()
		if t.releaseSlot != nil {
			t.releaseSlot()
		}
		t.children.Wait()
		if r != nil {
			t.recordPanic(r)
		}
		t.runCleanups()
		t.cancel()
		result = t.result()
		t.env.record(result)
	}()

	action(t)
	return
}

func (t *T) recordPanic(r interface{}) {
	var addError error
	if _, ok := r.(*T); ok {
		t.lock.Lock()
		if t.skipped {
			t.lock.Unlock()
			return
		}
		t.failed = true
		hasErrors := len(t.errors) != 0
		t.lock.Unlock()
		if hasErrors {
			return
		}
		addError = errors.New("test failed with no failure message")
	} else {
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	t.addError(addError)
}

// runCleanups calls the deferred functions in reverse order. Each one is protected so that a
// cleanup that fails or panics does not prevent the others from running.
func (t *T) runCleanups() {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.recordPanic(r)
				}
			}()
			t.cleanups[i]()
		}()
	}
	t.cleanups = nil
}

func (t *T) result() TestResult {
	t.lock.Lock()
	defer t.lock.Unlock()
	result := TestResult{
		TestID:    t.id,
		Errors:    append([]error(nil), t.errors...),
		Duration:  time.Since(t.started),
		Artifacts: append([]Artifact(nil), t.artifacts...),
	}
	switch {
	case t.failed:
		// An assertion or navigation that gave up waiting is an ordinary failure; only running
		// out of the test's own time limit counts as timing out.
		result.Outcome = OutcomeFailed
		if errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
			result.Outcome = OutcomeTimedOut
		}
	case t.skipped:
		result.Outcome = OutcomeSkipped
		result.SkipReason = t.skipReason
	default:
		result.Outcome = OutcomePassed
	}
	return result
}

func (t *T) addError(err error) {
	t.lock.Lock()
	t.failed = true
	t.errors = append(t.errors, err)
	t.lock.Unlock()
	t.env.config.TestLogger.TestError(t.id, err)
}

// ID returns the full name of the current test.
func (t *T) ID() TestID {
	return t.id
}

// Run runs a subtest in its own scope, and returns when it has finished.
//
// This is equivalent to Go's testing.T.Run.
func (t *T) Run(name string, action func(*T)) {
	if c := t.newChild(name); c != nil {
		t.runChild(c, action)
	}
}

// RunParallel runs a subtest in its own scope on a separate goroutine, and returns immediately.
// At most TestConfiguration.Parallelism such subtests run at once; when that is less than 2,
// RunParallel is the same as Run. The parent scope does not finish, and its cleanups do not run,
// until all of its parallel subtests have finished.
func (t *T) RunParallel(name string, action func(*T)) {
	if t.env.slots == nil {
		t.Run(name, action)
		return
	}
	c := t.newChild(name)
	if c == nil {
		return
	}
	t.children.Add(1)
	go func() {
		defer t.children.Done()
		t.env.slots <- struct{}{}
		var once sync.Once
		c.releaseSlot = func() { once.Do(func() { <-t.env.slots }) }
		defer c.releaseSlot()
		t.runChild(c, action)
	}()
}

func (t *T) newChild(name string) *T {
	id := t.id.Plus(name)
	t.env.config.TestLogger.TestStarted(id)
	if t.env.config.Filter != nil && !t.env.config.Filter.Match(id) {
		t.env.config.TestLogger.TestSkipped(id, "excluded by filter parameters")
		return nil
	}
	return t.env.newScope(id)
}

func (t *T) runChild(c *T, action func(*T)) {
	t.debugLogger.AddChildLogger(&c.debugLogger) // see comments on t.DebugLogger()
	result := c.run(action)
	t.debugLogger.RemoveChildLogger(&c.debugLogger)
	if result.Outcome == OutcomeSkipped {
		t.env.config.TestLogger.TestSkipped(c.id, result.SkipReason)
	} else {
		t.env.config.TestLogger.TestFinished(c.id, result, c.debugLogger.Output())
	}
}

// Errorf reports a test failure. It is equivalent to Go's testing.T.Errorf. It does not cause the test
// to terminate, but adds the failure message to the output and marks the test as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) Errorf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	t.addError(transformError(err, getStacktrace(false, t.helperFns)))
}

// FailNow causes the test to immediately terminate and be marked as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) FailNow() {
	panic(t)
}

// Fatal records err as a failure and terminates the test. Unlike Errorf, the error keeps its
// type: a browser timeout passed to Fatal makes the outcome timed-out rather than failed.
func (t *T) Fatal(err error) {
	if err == nil {
		err = errors.New("Fatal called with nil error")
	}
	t.addError(transformError(err, getStacktrace(false, t.helperFns)))
	t.FailNow()
}

// Failed returns true if the test has failed so far.
func (t *T) Failed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.failed
}

// Skip causes the test to immediately terminate and be marked as skipped.
func (t *T) Skip() {
	t.lock.Lock()
	t.skipped = true
	t.lock.Unlock()
	panic(t)
}

// SkipWithReason is equivalent to Skip but provides a message.
func (t *T) SkipWithReason(reason string) {
	t.lock.Lock()
	t.skipReason = reason
	t.lock.Unlock()
	t.Skip()
}

// Debug writes a message to the output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger instance for writing output for this test scope.
//
// The output that is captured for a test will be passed to TestLogger.TestFinished at the end of
// the test. The test runner can choose whether to display this or not based on command-line options.
//
// When a test has subtests (created with t.Run), the logger for a subtest starts out with a copy of
// any output that was already logged for the parent test. During the lifetime of the subtest, any
// further output that is sent to the parent test's logger will go to the child test's logger
// instead. This is useful when the parent test scope manages an object such as a fixture server
// that is reused by many subtests. Parallel subtests each get a copy of the parent's output.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Defer schedules a cleanup function which is guaranteed to be called when this test scope
// exits for any reason: returning, failing, being skipped, or panicking. Cleanups run in the
// reverse of the order they were added. Unlike a Go defer statement, Defer can be used from
// within helper functions.
func (t *T) Defer(cleanupFn func()) {
	t.cleanups = append(t.cleanups, cleanupFn)
}

// Context returns a context that is cancelled when this test scope ends, and that expires when
// the configured TestTimeout elapses. Every blocking browser call in the test should use it.
func (t *T) Context() context.Context {
	return t.ctx
}

// Env returns the application-defined value, if any, that was specified in the
// TestConfiguration.
func (t *T) Env() interface{} {
	return t.env.config.Env
}

// AddArtifact attaches a reference to saved diagnostic data to this test's result.
func (t *T) AddArtifact(name, ref string) {
	t.lock.Lock()
	t.artifacts = append(t.artifacts, Artifact{Name: name, Ref: ref})
	t.lock.Unlock()
	t.Debug("Saved %s: %s", name, ref)
}

// Capabilities returns the capabilities reported by the browser driver.
func (t *T) Capabilities() framework.Capabilities {
	return append(framework.Capabilities(nil), t.env.config.Capabilities...)
}

// RequireCapability causes the test to be skipped if the browser driver lacks a capability.
func (t *T) RequireCapability(name string) {
	if !t.Capabilities().Has(name) {
		t.SkipWithReason(fmt.Sprintf("browser driver does not have capability %q", name))
	}
}

// Helper marks the function that calls it as a test helper that shouldn't appear in stacktraces.
// Equivalent to Go's testing.T.Helper().
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1) // 0 is Helper() itself, 1 is who called it
	if !ok {
		return
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return
	}
	t.helperFns = append(t.helperFns, f.Name())
}
