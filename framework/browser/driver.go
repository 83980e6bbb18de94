package browser

import (
	"context"
	"fmt"
	"io"

	"github.com/acronymia/ui-test-harness/framework"
)

// Capability names reported by Driver.Capabilities.
const (
	CapabilityScreenshot = "screenshot"
	CapabilityConsoleLog = "console-log"
	CapabilityHTML       = "html"
)

// Driver is a browser automation backend. One Driver is shared by the whole run; every test gets
// its own Session from it.
type Driver interface {
	Name() string
	Capabilities() framework.Capabilities
	// NewSession opens a new isolated browser context with a single tab. Sessions never share
	// cookies, storage, or connections with each other.
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one isolated browser context with one tab. Implementations do no waiting of their
// own beyond what is needed to complete a single step; retrying is the job of Page.
type Session interface {
	// Navigate loads url and waits for its load event.
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Probe evaluates the locator against the current DOM. Finding nothing is not an error.
	Probe(ctx context.Context, loc Locator) (ElementState, error)
	// Fill replaces the value of the first element matching loc.
	Fill(ctx context.Context, loc Locator, text string) error
	// Click clicks the first element matching loc.
	Click(ctx context.Context, loc Locator) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

// DriverConfig holds the settings common to the real browser backends.
type DriverConfig struct {
	Headless bool
	// BrowserBin is the path of the browser executable; empty means let the backend find or
	// download one.
	BrowserBin string
	// ControlURL, if set, makes the rod backend connect to an already running browser instead of
	// launching one.
	ControlURL string
	// Output receives the browser process's own log output.
	Output io.Writer
	Logger framework.Logger
}

// Driver names accepted by NewDriver.
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// NewDriver starts the named backend.
func NewDriver(name string, config DriverConfig) (Driver, error) {
	if config.Logger == nil {
		config.Logger = framework.NullLogger()
	}
	switch name {
	case DriverRod, "":
		return NewRodDriver(config)
	case DriverPlaywright:
		return NewPlaywrightDriver(config)
	default:
		return nil, fmt.Errorf("unknown browser driver %q (expected %q or %q)", name, DriverRod, DriverPlaywright)
	}
}
