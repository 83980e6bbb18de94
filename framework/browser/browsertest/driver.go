// Package browsertest provides an in-memory browser.Driver whose pages are scripted by the test,
// for exercising code that uses browser.Page without a real browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"
	"github.com/acronymia/ui-test-harness/framework/browser"
)

// ErrConnectionRefused is what navigating to a URL with no route returns.
var ErrConnectionRefused = errors.New("net::ERR_CONNECTION_REFUSED")

// Route describes how the fake responds to navigation to one URL.
type Route struct {
	// Delay is how long navigation takes; navigation gives up early if its context ends.
	Delay time.Duration
	// Err, if set, makes navigation fail after Delay.
	Err error
	// Render sets up the DOM once the page has loaded.
	Render func(*DOM)
}

// Driver is a scriptable browser.Driver.
type Driver struct {
	// NewSessionErr, if set, is returned by NewSession.
	NewSessionErr error

	routes       map[string]Route
	capabilities framework.Capabilities
	sessions     []*Session
	lock         sync.Mutex
}

// NewDriver creates a Driver with no routes.
func NewDriver() *Driver {
	return &Driver{
		routes: make(map[string]Route),
		capabilities: framework.Capabilities{
			browser.CapabilityScreenshot, browser.CapabilityConsoleLog, browser.CapabilityHTML,
		},
	}
}

// Route registers the response for an exact URL.
func (d *Driver) Route(url string, route Route) *Driver {
	d.lock.Lock()
	d.routes[url] = route
	d.lock.Unlock()
	return d
}

// SetCapabilities replaces the reported capabilities.
func (d *Driver) SetCapabilities(caps ...string) {
	d.lock.Lock()
	d.capabilities = caps
	d.lock.Unlock()
}

// Sessions returns every session created so far, in order.
func (d *Driver) Sessions() []*Session {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]*Session(nil), d.sessions...)
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Capabilities() framework.Capabilities {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.capabilities
}

func (d *Driver) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.NewSessionErr != nil {
		return nil, d.NewSessionErr
	}
	s := &Session{driver: d, dom: newDOM()}
	d.lock.Lock()
	d.sessions = append(d.sessions, s)
	d.lock.Unlock()
	return s, nil
}

func (d *Driver) Close() error { return nil }

func (d *Driver) route(url string) (Route, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	r, ok := d.routes[url]
	return r, ok
}

// Session is one fake browser tab. Its DOM is private to it.
type Session struct {
	driver     *Driver
	dom        *DOM
	closeCount int
	lock       sync.Mutex
}

// DOM returns the session's document.
func (s *Session) DOM() *DOM { return s.dom }

// CloseCount returns how many times Close has been called.
func (s *Session) CloseCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closeCount
}

func (s *Session) checkOpen() error {
	if s.CloseCount() > 0 {
		return errors.New("session is closed")
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	route, ok := s.driver.route(url)
	if !ok {
		return fmt.Errorf("%w at %s", ErrConnectionRefused, url)
	}
	if route.Delay > 0 {
		select {
		case <-time.After(route.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if route.Err != nil {
		return route.Err
	}
	s.dom.reset(url)
	if route.Render != nil {
		route.Render(s.dom)
	}
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	return s.dom.Title(), nil
}

func (s *Session) Probe(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := s.checkOpen(); err != nil {
		return browser.ElementState{}, err
	}
	return s.dom.state(loc), nil
}

func (s *Session) Fill(ctx context.Context, loc browser.Locator, text string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.dom.fill(loc, text)
}

func (s *Session) Click(ctx context.Context, loc browser.Locator) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.dom.click(loc)
}

func (s *Session) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	if err := s.checkOpen(); err != nil {
		return browser.Snapshot{}, err
	}
	return s.dom.snapshot(), nil
}

func (s *Session) Close() error {
	s.lock.Lock()
	s.closeCount++
	s.lock.Unlock()
	s.dom.stopTimers()
	return nil
}
