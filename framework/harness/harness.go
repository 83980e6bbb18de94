package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"
	"github.com/acronymia/ui-test-harness/framework/artifacts"
	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/uitest"

	"github.com/google/uuid"
)

const (
	// DefaultStartupTimeout is how long NewTestHarness waits for the application to answer.
	DefaultStartupTimeout = 10 * time.Second

	// DefaultSnapshotTimeout bounds the capture and upload of a failure snapshot.
	DefaultSnapshotTimeout = 10 * time.Second

	appRequestTimeout = 5 * time.Second
)

// Config holds the settings of a TestHarness.
type Config struct {
	// BaseURL is the root URL of the application under test. Relative URLs passed to
	// Page.Navigate are resolved against it.
	BaseURL string

	// StartupTimeout is how long to wait for the application to respond before giving up.
	StartupTimeout time.Duration

	// Timeout, PollInterval and NavigationTimeout configure every Page opened by the harness;
	// zero values mean the browser package defaults.
	Timeout           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration

	// Artifacts receives the snapshots of failed tests. If nil, no snapshots are taken.
	Artifacts artifacts.Store

	// SnapshotTimeout bounds how long capturing and storing one failure snapshot may take.
	SnapshotTimeout time.Duration

	// RunID names this run in artifact keys. If empty, a random ID is generated.
	RunID string
}

// TestHarness is the main component that connects tests to the application under test.
//
// It verifies on startup that the application is responding, and then hands out browser pages
// from its Driver, one isolated session per call to OpenPage. It contains no domain-specific
// test logic, but only provides a general mechanism for test suites to build on.
type TestHarness struct {
	config  Config
	baseURL *url.URL
	appInfo AppInfo
	driver  browser.Driver
	logger  framework.Logger

	pageCounts map[string]int
	lock       sync.Mutex
}

// NewTestHarness creates a TestHarness instance, and verifies that the application is responding
// by querying its base URL. Progress is written to startupOutput.
//
// The harness takes ownership of the driver and closes it in Close, even if it returns an error.
func NewTestHarness(
	config Config,
	driver browser.Driver,
	debugLogger framework.Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}
	if startupOutput == nil {
		startupOutput = io.Discard
	}
	if driver == nil {
		return nil, errors.New("no browser driver was provided")
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		_ = driver.Close()
		return nil, fmt.Errorf("invalid application URL %q", config.BaseURL)
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = DefaultStartupTimeout
	}
	if config.SnapshotTimeout <= 0 {
		config.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if config.Artifacts == nil {
		config.Artifacts = artifacts.NullStore()
	}
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}

	info, err := queryAppInfo(&http.Client{Timeout: appRequestTimeout}, baseURL.String(), config.StartupTimeout, startupOutput)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("application at %s is not available: %w", baseURL, err)
	}

	debugLogger.Printf("Using %s driver with capabilities %v, run ID %s", driver.Name(), driver.Capabilities(), config.RunID)

	return &TestHarness{
		config:     config,
		baseURL:    baseURL,
		appInfo:    info,
		driver:     driver,
		logger:     debugLogger,
		pageCounts: make(map[string]int),
	}, nil
}

// BaseURL returns the root URL of the application under test.
func (h *TestHarness) BaseURL() *url.URL {
	u := *h.baseURL
	return &u
}

// AppInfo returns the information received from the application in the initial query.
func (h *TestHarness) AppInfo() AppInfo {
	return h.appInfo
}

// RunID returns the identifier used for this run's artifacts.
func (h *TestHarness) RunID() string {
	return h.config.RunID
}

// Capabilities returns the capabilities of the browser driver.
func (h *TestHarness) Capabilities() framework.Capabilities {
	return h.driver.Capabilities()
}

// DriverName returns the name of the browser backend.
func (h *TestHarness) DriverName() string {
	return h.driver.Name()
}

// OpenPage starts a new isolated browser session for the test and returns a Page for it.
//
// The page is closed by a cleanup registered on t, so it is released however the test ends.
// If the test has failed by then, a snapshot of the page is saved to the artifact store first
// and the references are attached to the test result.
func (h *TestHarness) OpenPage(t *uitest.T) *browser.Page {
	t.Helper()
	session, err := h.driver.NewSession(t.Context())
	if err != nil {
		t.Fatal(fmt.Errorf("could not open a browser session: %w", err))
	}
	page := browser.NewPage(session, browser.PageConfig{
		BaseURL:           h.BaseURL(),
		Timeout:           h.config.Timeout,
		PollInterval:      h.config.PollInterval,
		NavigationTimeout: h.config.NavigationTimeout,
		Logger:            t.DebugLogger(),
	})
	testID := h.pageTestID(t.ID())
	t.Defer(func() {
		if t.Failed() {
			h.captureFailure(t, page, testID)
		}
		if err := page.Close(); err != nil {
			t.Debug("Error closing page: %s", err)
		}
	})
	return page
}

// pageTestID returns the artifact path for a page. A test that opens more than one page gets a
// separate path for each page after the first.
func (h *TestHarness) pageTestID(id uitest.TestID) uitest.TestID {
	h.lock.Lock()
	defer h.lock.Unlock()
	key := id.String()
	h.pageCounts[key]++
	if n := h.pageCounts[key]; n > 1 {
		return id.Plus(fmt.Sprintf("page-%d", n))
	}
	return id
}

func (h *TestHarness) captureFailure(t *uitest.T, page *browser.Page, testID uitest.TestID) {
	// The test's own context may already have expired, which is often why it failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.Context()), h.config.SnapshotTimeout)
	defer cancel()

	snap, err := page.Snapshot(ctx)
	if err != nil {
		t.Debug("Could not take a snapshot of the failed page: %s", err)
		return
	}
	saved, err := artifacts.SaveSnapshot(ctx, h.config.Artifacts, h.config.RunID, testID, snap)
	for _, s := range saved {
		t.AddArtifact(s.Name, s.Ref)
	}
	if err != nil {
		t.Debug("Could not save all of the page snapshot: %s", err)
	}
}

// Close shuts down the browser driver.
func (h *TestHarness) Close() error {
	return h.driver.Close()
}
