package uitest

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the final state of a test.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed-out"
	OutcomeSkipped  Outcome = "skipped"
)

// IsFailure returns true for the outcomes that make a run fail.
func (o Outcome) IsFailure() bool {
	return o == OutcomeFailed || o == OutcomeTimedOut
}

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID     TestID
	Outcome    Outcome
	Errors     []error
	Duration   time.Duration
	SkipReason string
	Artifacts  []Artifact
}

// Artifact is a reference to diagnostic data saved for a test, such as a screenshot.
type Artifact struct {
	Name string
	Ref  string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Count returns the number of tests with the given outcome. The root scope is not counted.
func (r Results) Count(outcome Outcome) int {
	n := 0
	for _, t := range r.Tests {
		if len(t.TestID) != 0 && t.Outcome == outcome {
			n++
		}
	}
	return n
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

func (f TestFailure) Unwrap() error { return f.Err }
