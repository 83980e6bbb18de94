package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"
	"github.com/acronymia/ui-test-harness/framework/helpers"
	"github.com/acronymia/ui-test-harness/framework/opt"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
)

const (
	// DefaultTimeout is how long interactions and assertions wait by default.
	DefaultTimeout = 5 * time.Second
	// DefaultNavigationTimeout is how long Navigate waits for the load event by default.
	DefaultNavigationTimeout = 15 * time.Second
)

// PageConfig holds the settings of a Page. Zero values mean the package defaults.
type PageConfig struct {
	// BaseURL is what relative URLs passed to Navigate are resolved against.
	BaseURL           *url.URL
	Timeout           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	Logger            framework.Logger
}

type pollSettings struct {
	timeout  opt.Maybe[time.Duration]
	interval opt.Maybe[time.Duration]
}

// PollOption overrides the wait settings of a single Page call.
type PollOption helpers.ConfigOption[pollSettings]

// WithTimeout overrides how long one call waits before failing.
func WithTimeout(timeout time.Duration) PollOption {
	return helpers.ConfigOptionFunc[pollSettings](func(s *pollSettings) error {
		s.timeout = opt.Some(timeout)
		return nil
	})
}

// WithInterval overrides how often one call re-checks the page.
func WithInterval(interval time.Duration) PollOption {
	return helpers.ConfigOptionFunc[pollSettings](func(s *pollSettings) error {
		s.interval = opt.Some(interval)
		return nil
	})
}

// Page is the handle a test uses to drive one browser tab. It is not shared between tests.
//
// Every interaction and assertion polls: the page is re-examined at a fixed interval until the
// condition holds or the timeout elapses. Nothing is asserted against a single instantaneous
// look at the DOM, since the application updates it asynchronously.
//
// The methods of a single Page may be called from one goroutine at a time; Close may be called
// from anywhere, any number of times.
type Page struct {
	session   Session
	config    PageConfig
	closeOnce sync.Once
	closeErr  error
	lock      sync.Mutex
	closed    bool
}

// NewPage wraps a Session. The Page takes ownership of it and closes it in Close.
func NewPage(session Session, config PageConfig) *Page {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = helpers.DefaultPollInterval
	}
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = DefaultNavigationTimeout
	}
	if config.Logger == nil {
		config.Logger = framework.NullLogger()
	}
	return &Page{session: session, config: config}
}

// Navigate loads a URL, resolving relative URLs against the configured base URL, and waits for
// the page to finish loading. It fails with a *NavigationError if the URL cannot be loaded
// within the navigation timeout.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if p.Closed() {
		return ErrPageClosed
	}
	target, err := p.resolveURL(rawURL)
	if err != nil {
		return &NavigationError{URL: rawURL, Err: err}
	}
	p.config.Logger.Printf("Navigating to %s", target)
	navCtx, cancel := context.WithTimeout(ctx, p.config.NavigationTimeout)
	defer cancel()
	if err := p.session.Navigate(navCtx, target); err != nil {
		return &NavigationError{
			URL:      target,
			Err:      err,
			TimedOut: errors.Is(navCtx.Err(), context.DeadlineExceeded),
		}
	}
	return nil
}

func (p *Page) resolveURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || p.config.BaseURL == nil {
		return u.String(), nil
	}
	return p.config.BaseURL.ResolveReference(u).String(), nil
}

// Fill waits until loc matches a visible, enabled, editable element and replaces its value. Like
// Click, it is attempted again only if the element went away before the fill reached it.
func (p *Page) Fill(ctx context.Context, loc Locator, text string, options ...PollOption) error {
	return p.act(ctx, "fill", loc, ElementState.Fillable, func(ctx context.Context) error {
		return p.session.Fill(ctx, loc, text)
	}, options)
}

// Click waits until loc matches a visible, enabled element and clicks it. The click is sent at
// most once: if the driver reports an error after dispatching it, that error is returned as an
// ElementNotInteractableError with Dispatched set. Only an element that went away before the
// click (ErrElementDetached) is looked for again.
func (p *Page) Click(ctx context.Context, loc Locator, options ...PollOption) error {
	return p.act(ctx, "click", loc, ElementState.Clickable, func(ctx context.Context) error {
		return p.session.Click(ctx, loc)
	}, options)
}

// act repeats the element lookup until the element is ready, then performs the action. An
// element that is re-rendered between the lookup and the action is found again on the next
// attempt; an action that reached the page is never repeated.
func (p *Page) act(
	ctx context.Context,
	action string,
	loc Locator,
	ready func(ElementState) bool,
	do func(context.Context) error,
	options []PollOption,
) error {
	if p.Closed() {
		return ErrPageClosed
	}
	timeout, interval := p.settings(options)
	var last ElementState
	var lastErr, actionErr error
	err := helpers.Poll(ctx, timeout, interval, func(ctx context.Context) bool {
		state, err := p.session.Probe(ctx, loc)
		if err != nil {
			lastErr = err
			return false
		}
		last, lastErr = state, nil
		if !ready(state) {
			return false
		}
		if err := do(ctx); err != nil {
			if errors.Is(err, ErrElementDetached) {
				lastErr = err
				return false
			}
			actionErr = err
		}
		return true
	})
	if err == nil && actionErr != nil {
		return &ElementNotInteractableError{
			Action:     action,
			Locator:    loc,
			Waited:     timeout,
			LastState:  last,
			LastErr:    actionErr,
			Dispatched: true,
			Err:        actionErr,
		}
	}
	if err == nil {
		p.config.Logger.Printf("%s %s", action, loc)
		return nil
	}
	if !last.Found() {
		return &ElementNotFoundError{Action: action, Locator: loc, Waited: timeout, Err: err}
	}
	return &ElementNotInteractableError{
		Action:    action,
		Locator:   loc,
		Waited:    timeout,
		LastState: last,
		LastErr:   lastErr,
		Err:       err,
	}
}

// ExpectVisible waits until loc matches an element that is visible.
func (p *Page) ExpectVisible(ctx context.Context, loc Locator, options ...PollOption) error {
	return p.expectElement(ctx, loc, loc.String()+" to be visible", options, func(s ElementState) bool {
		return s.Found() && s.Visible
	})
}

// ExpectHidden waits until loc matches nothing, or its first match is not visible.
func (p *Page) ExpectHidden(ctx context.Context, loc Locator, options ...PollOption) error {
	return p.expectElement(ctx, loc, loc.String()+" to be hidden", options, func(s ElementState) bool {
		return !s.Found() || !s.Visible
	})
}

// ExpectText waits until the first match of loc has exactly the given text, ignoring leading and
// trailing whitespace.
func (p *Page) ExpectText(ctx context.Context, loc Locator, text string, options ...PollOption) error {
	want := strings.TrimSpace(text)
	return p.expectElement(ctx, loc, fmt.Sprintf("%s to have text %q", loc, want), options, func(s ElementState) bool {
		return s.Found() && strings.TrimSpace(s.Text) == want
	})
}

// ExpectTextMatching waits until the text of the first match of loc satisfies a matcher.
func (p *Page) ExpectTextMatching(ctx context.Context, loc Locator, matcher m.Matcher, options ...PollOption) error {
	if p.Closed() {
		return ErrPageClosed
	}
	return p.expect(ctx, fmt.Sprintf("text of %s to match", loc), options, func(ctx context.Context) (string, bool, error) {
		state, err := p.session.Probe(ctx, loc)
		if err != nil {
			return "", false, err
		}
		if !state.Found() {
			return state.String(), false, nil
		}
		pass, desc := matcher.Test(strings.TrimSpace(state.Text))
		if pass {
			return state.String(), true, nil
		}
		return fmt.Sprintf("%s (%s)", state, desc), false, nil
	})
}

// ExpectCount waits until exactly n elements match loc.
func (p *Page) ExpectCount(ctx context.Context, loc Locator, n int, options ...PollOption) error {
	return p.expectElement(ctx, loc, fmt.Sprintf("%s to match %d element(s)", loc, n), options, func(s ElementState) bool {
		return s.Count == n
	})
}

// ExpectTitle waits until the document title equals title exactly.
func (p *Page) ExpectTitle(ctx context.Context, title string, options ...PollOption) error {
	if p.Closed() {
		return ErrPageClosed
	}
	return p.expect(ctx, fmt.Sprintf("page title to be %q", title), options, func(ctx context.Context) (string, bool, error) {
		actual, err := p.session.Title(ctx)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("title %q", actual), actual == title, nil
	})
}

func (p *Page) expectElement(
	ctx context.Context,
	loc Locator,
	description string,
	options []PollOption,
	cond func(ElementState) bool,
) error {
	if p.Closed() {
		return ErrPageClosed
	}
	return p.expect(ctx, description, options, func(ctx context.Context) (string, bool, error) {
		state, err := p.session.Probe(ctx, loc)
		if err != nil {
			return "", false, err
		}
		return state.String(), cond(state), nil
	})
}

func (p *Page) expect(
	ctx context.Context,
	description string,
	options []PollOption,
	check func(context.Context) (observed string, ok bool, err error),
) error {
	timeout, interval := p.settings(options)
	lastState := "nothing (the page could not be examined)"
	var lastErr error
	err := helpers.Poll(ctx, timeout, interval, func(ctx context.Context) bool {
		observed, ok, err := check(ctx)
		if err != nil {
			lastErr = err
			return false
		}
		lastState, lastErr = observed, nil
		return ok
	})
	if err == nil {
		p.config.Logger.Printf("Saw %s", description)
		return nil
	}
	return &AssertionTimeoutError{
		Description: description,
		Waited:      timeout,
		LastState:   lastState,
		LastErr:     lastErr,
		Err:         err,
	}
}

func (p *Page) settings(options []PollOption) (time.Duration, time.Duration) {
	var s pollSettings
	_ = helpers.ApplyOptions(&s, options...)
	return s.timeout.OrElse(p.config.Timeout), s.interval.OrElse(p.config.PollInterval)
}

// Snapshot captures the page's diagnostic state.
func (p *Page) Snapshot(ctx context.Context) (Snapshot, error) {
	if p.Closed() {
		return Snapshot{}, ErrPageClosed
	}
	snap, err := p.session.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}
	return snap, nil
}

// Close releases the page's browser context. Only the first call does anything; later calls
// return the same result.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.lock.Lock()
		p.closed = true
		p.lock.Unlock()
		p.closeErr = p.session.Close()
	})
	return p.closeErr
}

// Closed returns true once Close has been called.
func (p *Page) Closed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}
