package uitests

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/acronymia/ui-test-harness/data"
	"github.com/acronymia/ui-test-harness/framework"
	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/harness"
	"github.com/acronymia/ui-test-harness/framework/uitest"
)

// DefaultRejectionWait is how long a test watches for a player entry that must not appear.
const DefaultRejectionWait = time.Second

// SuiteConfig holds the run options of the suite that are not part of the harness.
type SuiteConfig struct {
	// Context is the parent of every test's context; it can be cancelled to abort the run.
	Context context.Context

	// Parallelism is how many scenario tests may drive browsers at once.
	Parallelism int

	// TestTimeout bounds each test; zero means no limit beyond the individual waits.
	TestTimeout time.Duration

	// RejectionWait is how long to watch for a roster entry that should never appear.
	RejectionWait time.Duration

	// NicknameRules adds the join cases that expect blank and over-long nicknames to be refused.
	// The real lobby accepts any nickname, so this is only for applications that enforce the
	// rules, such as the fixture lobby.
	NicknameRules bool

	// NicknamePrefix starts every generated nickname.
	NicknamePrefix string

	// Output receives the description of filters and missing capabilities; nil means stdout.
	Output io.Writer
}

type suite struct {
	harness       *harness.TestHarness
	nicknames     *data.NicknameFactory
	rejectionWait time.Duration
	nicknameRules bool
}

// RunUITestSuite runs all of the lobby tests against the application the harness is connected to.
func RunUITestSuite(
	h *harness.TestHarness,
	filter uitest.Filter,
	testLogger uitest.TestLogger,
	config SuiteConfig,
) uitest.Results {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.RejectionWait <= 0 {
		config.RejectionWait = DefaultRejectionWait
	}
	if config.NicknamePrefix == "" {
		config.NicknamePrefix = "uitest-"
	}
	// other filter types cannot be described, but missing capabilities still are
	regexFilters, _ := filter.(uitest.RegexFilters)
	uitest.PrintFilterDescription(out, regexFilters, allImportantCapabilities(), h.Capabilities())

	s := &suite{
		harness:       h,
		nicknames:     data.NewNicknameFactory(config.NicknamePrefix),
		rejectionWait: config.RejectionWait,
		nicknameRules: config.NicknameRules,
	}
	uiConfig := uitest.TestConfiguration{
		Filter:       filter,
		TestLogger:   testLogger,
		Capabilities: h.Capabilities(),
		Context:      config.Context,
		TestTimeout:  config.TestTimeout,
		Parallelism:  config.Parallelism,
	}
	return uitest.Run(uiConfig, func(t *uitest.T) {
		t.Run("homepage", s.doHomepageTests)
		t.Run("join", s.doJoinTests)
		t.Run("isolation", s.doIsolationTests)
		t.Run("unique nickname", s.doUniqueNicknameTest)
		t.Run("diagnostics", s.doDiagnosticsTests)
	})
}

func allImportantCapabilities() framework.Capabilities {
	return framework.Capabilities{
		browser.CapabilityScreenshot,
		browser.CapabilityConsoleLog,
		browser.CapabilityHTML,
	}
}
