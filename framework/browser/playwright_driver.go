package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver drives Chromium through the Playwright driver process.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  framework.Logger
}

// NewPlaywrightDriver starts Playwright and launches Chromium. The Playwright driver and browsers
// must already be installed.
func NewPlaywrightDriver(config DriverConfig) (*PlaywrightDriver, error) {
	logger := config.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w", err)
	}
	options := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(config.Headless),
		Args:     []string{"--no-sandbox", "--disable-gpu"},
	}
	if config.BrowserBin != "" {
		options.ExecutablePath = playwright.String(config.BrowserBin)
	}
	browser, err := pw.Chromium.Launch(options)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch Chromium: %w", err)
	}
	logger.Printf("Launched Chromium %s through Playwright", browser.Version())
	return &PlaywrightDriver{pw: pw, browser: browser, logger: logger}, nil
}

func (d *PlaywrightDriver) Name() string { return DriverPlaywright }

func (d *PlaywrightDriver) Capabilities() framework.Capabilities {
	return framework.Capabilities{CapabilityScreenshot, CapabilityConsoleLog, CapabilityHTML}
}

// NewSession creates a fresh BrowserContext with one page.
func (d *PlaywrightDriver) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := d.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	s := &playwrightSession{context: bctx, page: page}
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.lock.Lock()
		s.console = append(s.console, fmt.Sprintf("[%s] %s", msg.Type(), msg.Text()))
		s.lock.Unlock()
	})
	return s, nil
}

func (d *PlaywrightDriver) Close() error {
	err := d.browser.Close()
	if stopErr := d.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type playwrightSession struct {
	context playwright.BrowserContext
	page    playwright.Page
	console []string
	lock    sync.Mutex
}

// Playwright calls take a timeout in milliseconds rather than a context, so the context's
// deadline is translated. A context without a deadline gets the fallback.
func timeoutMS(ctx context.Context, fallback time.Duration) *float64 {
	remaining := fallback
	if deadline, ok := ctx.Deadline(); ok {
		remaining = time.Until(deadline)
		if remaining < time.Millisecond {
			remaining = time.Millisecond
		}
	}
	return playwright.Float(float64(remaining.Milliseconds()))
}

func (s *playwrightSession) locate(loc Locator) playwright.Locator {
	switch loc.Kind {
	case KindTestID:
		return s.page.GetByTestId(loc.Value)
	case KindRole:
		options := playwright.PageGetByRoleOptions{}
		if loc.Name != "" {
			options.Name = loc.Name
			options.Exact = playwright.Bool(loc.ExactName)
		}
		return s.page.GetByRole(playwright.AriaRole(loc.Value), options)
	default:
		return s.page.Locator(loc.Value)
	}
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMS(ctx, DefaultNavigationTimeout),
	})
	return err
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *playwrightSession) Probe(ctx context.Context, loc Locator) (ElementState, error) {
	var state ElementState
	if err := ctx.Err(); err != nil {
		return state, err
	}
	l := s.locate(loc)
	count, err := l.Count()
	if err != nil || count == 0 {
		return state, err
	}
	state.Count = count
	first := l.First()
	timeout := timeoutMS(ctx, DefaultTimeout)
	if state.Visible, err = first.IsVisible(); err != nil {
		return state, err
	}
	if state.Enabled, err = first.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: timeout}); err != nil {
		return state, err
	}
	// IsEditable and InputValue fail for elements that are not form fields; that just means
	// "not editable" and "use the rendered text".
	editable, err := first.IsEditable(playwright.LocatorIsEditableOptions{Timeout: timeout})
	state.Editable = err == nil && editable
	if value, err := first.InputValue(playwright.LocatorInputValueOptions{Timeout: timeout}); err == nil {
		state.Text = value
	} else if state.Text, err = first.InnerText(playwright.LocatorInnerTextOptions{Timeout: timeout}); err != nil {
		return state, err
	}
	return state, nil
}

func (s *playwrightSession) Fill(ctx context.Context, loc Locator, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.locate(loc).First().Fill(text, playwright.LocatorFillOptions{Timeout: timeoutMS(ctx, DefaultTimeout)})
}

func (s *playwrightSession) Click(ctx context.Context, loc Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.locate(loc).First().Click(playwright.LocatorClickOptions{Timeout: timeoutMS(ctx, DefaultTimeout)})
}

func (s *playwrightSession) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now(), URL: s.page.URL()}
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	var err error
	if snap.Title, err = s.page.Title(); err != nil {
		return snap, err
	}
	if snap.HTML, err = s.page.Content(); err != nil {
		return snap, err
	}
	if snap.Screenshot, err = s.page.Screenshot(playwright.PageScreenshotOptions{
		Timeout: timeoutMS(ctx, DefaultTimeout),
	}); err != nil {
		return snap, err
	}
	s.lock.Lock()
	snap.Console = append([]string(nil), s.console...)
	s.lock.Unlock()
	return snap, nil
}

func (s *playwrightSession) Close() error {
	return s.context.Close()
}
