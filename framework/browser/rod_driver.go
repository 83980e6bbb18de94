package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// probeScript finds elements for a Locator in the page. With mode "state" it returns the
// JSON-encoded ElementState of the matches; with mode "element" it returns the first match.
//
//go:embed probe.js
var probeScript string

// RodDriver drives Chromium over the DevTools protocol with go-rod.
type RodDriver struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   framework.Logger
}

// NewRodDriver launches a browser, or connects to the one at config.ControlURL.
func NewRodDriver(config DriverConfig) (*RodDriver, error) {
	logger := config.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	d := &RodDriver{logger: logger}
	controlURL := config.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(config.Headless).
			Set("no-sandbox").
			Set("disable-gpu")
		if config.BrowserBin != "" {
			l = l.Bin(config.BrowserBin)
		}
		if config.Output != nil {
			l = l.Logger(config.Output)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch Chrome: %w", err)
		}
		d.launcher = l
		controlURL = u
	} else if !strings.HasPrefix(controlURL, "ws") {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DevTools URL %s: %w", controlURL, err)
		}
		controlURL = u
	}

	d.browser = rod.New().ControlURL(controlURL)
	if err := d.browser.Connect(); err != nil {
		d.shutdownLauncher()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	logger.Printf("Connected to browser at %s", controlURL)
	return d, nil
}

func (d *RodDriver) Name() string { return DriverRod }

func (d *RodDriver) Capabilities() framework.Capabilities {
	return framework.Capabilities{CapabilityScreenshot, CapabilityConsoleLog, CapabilityHTML}
}

// NewSession creates an incognito browser context with one blank page.
func (d *RodDriver) NewSession(_ context.Context) (Session, error) {
	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &rodSession{
		context: incognito,
		page:    page.Context(sessionCtx),
		cancel:  cancel,
	}
	go s.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		s.recordConsole(e)
	})()
	return s, nil
}

func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.shutdownLauncher()
	return err
}

func (d *RodDriver) shutdownLauncher() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
}

type rodSession struct {
	context *rod.Browser
	page    *rod.Page
	cancel  context.CancelFunc
	console []string
	lock    sync.Mutex
}

func (s *rodSession) recordConsole(e *proto.RuntimeConsoleAPICalled) {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if arg.Value.Nil() {
			parts = append(parts, arg.Description)
		} else {
			parts = append(parts, arg.Value.Str())
		}
	}
	line := fmt.Sprintf("[%s] %s", e.Type, strings.Join(parts, " "))
	s.lock.Lock()
	s.console = append(s.console, line)
	s.lock.Unlock()
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (s *rodSession) Title(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *rodSession) Probe(ctx context.Context, loc Locator) (ElementState, error) {
	var state ElementState
	res, err := s.page.Context(ctx).Eval(probeScript, string(loc.Kind), loc.Value, loc.Name, loc.ExactName, "state")
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &state); err != nil {
		return state, fmt.Errorf("unexpected probe result: %w", err)
	}
	return state, nil
}

func (s *rodSession) element(ctx context.Context, loc Locator) (*rod.Element, error) {
	el, err := s.page.Context(ctx).ElementByJS(rod.Eval(probeScript, string(loc.Kind), loc.Value, loc.Name, loc.ExactName, "element"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrElementDetached, err)
	}
	return el, nil
}

func (s *rodSession) Fill(ctx context.Context, loc Locator, text string) error {
	el, err := s.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if text == "" {
		return el.Type(input.Backspace)
	}
	return el.Input(text)
}

func (s *rodSession) Click(ctx context.Context, loc Locator) error {
	el, err := s.element(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSession) Snapshot(ctx context.Context) (Snapshot, error) {
	p := s.page.Context(ctx)
	snap := Snapshot{TakenAt: time.Now()}
	info, err := p.Info()
	if err != nil {
		return snap, err
	}
	snap.URL, snap.Title = info.URL, info.Title
	if snap.HTML, err = p.HTML(); err != nil {
		return snap, err
	}
	if snap.Screenshot, err = p.Screenshot(false, nil); err != nil {
		return snap, err
	}
	s.lock.Lock()
	snap.Console = append([]string(nil), s.console...)
	s.lock.Unlock()
	return snap, nil
}

func (s *rodSession) Close() error {
	defer s.cancel()
	// Disposing of the incognito context also closes its page.
	return s.context.Close()
}
