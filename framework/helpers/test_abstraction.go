package helpers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// TestContext is a minimal interface for types like *testing.T and *uitest.T representing a
// test that can fail. Functions can use this to avoid specific dependencies on those packages.
type TestContext interface {
	Errorf(msgFormat string, msgArgs ...interface{})
	FailNow()
	Helper()
}

// TestRecorder is a TestContext that just remembers what happened to it. It is used to check
// the behavior of helpers that report failures.
type TestRecorder struct {
	Errors     []string
	Terminated bool

	// PanicOnTerminate makes FailNow panic with the recorder itself, which is what *uitest.T
	// does, so that code after the FailNow call is not reached.
	PanicOnTerminate bool

	lock sync.Mutex
}

func (r *TestRecorder) Errorf(msgFormat string, msgArgs ...interface{}) {
	r.lock.Lock()
	r.Errors = append(r.Errors, fmt.Sprintf(msgFormat, msgArgs...))
	r.lock.Unlock()
}

func (r *TestRecorder) FailNow() {
	r.lock.Lock()
	r.Terminated = true
	r.lock.Unlock()
	if r.PanicOnTerminate {
		panic(r)
	}
}

func (r *TestRecorder) Helper() {}

// Err returns all recorded failure messages joined into one error, or nil if there were none.
func (r *TestRecorder) Err() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.Errors) == 0 {
		return nil
	}
	return errors.New(strings.Join(r.Errors, ", "))
}
