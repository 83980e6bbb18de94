package uitest

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ProgressTestLogger shows a progress bar instead of a line per test. Failures are still
// printed in full as they happen. Only leaf tests are counted; the total is not known in
// advance, so the bar counts up without a fixed end.
type ProgressTestLogger struct {
	bar      *progressbar.ProgressBar
	out      io.Writer
	parents  map[string]bool
	passed   int
	failed   int
	skipped  int
	finished bool
	lock     sync.Mutex
}

// NewProgressTestLogger creates a ProgressTestLogger writing to out; nil means standard error.
func NewProgressTestLogger(out io.Writer) *ProgressTestLogger {
	if out == nil {
		out = os.Stderr
	}
	p := &ProgressTestLogger{out: out, parents: make(map[string]bool)}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(p.description()),
		progressbar.OptionSetWidth(50),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return p
}

func (p *ProgressTestLogger) description() string {
	return color.CyanString("Running tests: ") +
		color.GreenString("[passed: %d", p.passed) +
		" | " +
		color.RedString("failed: %d", p.failed) +
		" | " +
		color.BlueString("skipped: %d]", p.skipped)
}

func (p *ProgressTestLogger) TestStarted(id TestID) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(id) > 1 {
		p.parents[id[:len(id)-1].String()] = true
	}
}

func (p *ProgressTestLogger) TestError(id TestID, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	_ = p.bar.Clear()
	_, _ = consoleTestErrorColor.Fprintf(p.out, "[%s] %s\n", id, err)
}

func (p *ProgressTestLogger) TestFinished(id TestID, result TestResult, _ framework.CapturedOutput) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.parents[id.String()] && !result.Outcome.IsFailure() {
		return // a group whose subtests have already been counted
	}
	if result.Outcome.IsFailure() {
		p.failed++
	} else {
		p.passed++
	}
	p.advance()
}

func (p *ProgressTestLogger) TestSkipped(id TestID, reason string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.skipped++
	p.advance()
}

func (p *ProgressTestLogger) advance() {
	p.bar.Describe(p.description())
	_ = p.bar.Add(1)
}

// Counts returns the numbers of passed, failed, and skipped tests seen so far.
func (p *ProgressTestLogger) Counts() (passed, failed, skipped int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.passed, p.failed, p.skipped
}

func (p *ProgressTestLogger) EndLog(results Results) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.finished {
		p.finished = true
		_ = p.bar.Finish()
	}
	PrintResults(p.out, results)
	return nil
}
