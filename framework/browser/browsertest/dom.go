package browsertest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework/browser"
)

// Element is the fake's model of the elements matching one locator.
type Element struct {
	Count    int // 0 is treated as 1
	Visible  bool
	Enabled  bool
	Editable bool
	Text     string
}

// Shown returns a visible, enabled element with the given text.
func Shown(text string) Element {
	return Element{Visible: true, Enabled: true, Text: text}
}

// Input returns a visible, enabled, editable element with the given value.
func Input(value string) Element {
	return Element{Visible: true, Enabled: true, Editable: true, Text: value}
}

// DOM is a fake document: elements are keyed by the locator they were put with. A role locator
// also finds elements put under another name of the same role if the name matches by the
// locator's rule, the way ByRole("button", "Join") finds a button put as "Join!".
type DOM struct {
	url      string
	title    string
	elements map[string]Element
	locators map[string]browser.Locator
	onClick  map[string]func(*DOM)
	onFill   map[string]func(*DOM, string)
	console  []string
	timers   []*time.Timer
	lock     sync.Mutex
}

func newDOM() *DOM {
	d := &DOM{}
	d.reset("about:blank")
	return d
}

func (d *DOM) reset(url string) {
	d.stopTimers()
	d.lock.Lock()
	defer d.lock.Unlock()
	d.url = url
	d.title = ""
	d.elements = make(map[string]Element)
	d.locators = make(map[string]browser.Locator)
	d.onClick = make(map[string]func(*DOM))
	d.onFill = make(map[string]func(*DOM, string))
}

func (d *DOM) stopTimers() {
	d.lock.Lock()
	timers := d.timers
	d.timers = nil
	d.lock.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

// URL returns the URL of the loaded document.
func (d *DOM) URL() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.url
}

// Title returns the document title.
func (d *DOM) Title() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.title
}

// SetTitle changes the document title.
func (d *DOM) SetTitle(title string) {
	d.lock.Lock()
	d.title = title
	d.lock.Unlock()
}

// Put adds or replaces the element found by loc.
func (d *DOM) Put(loc browser.Locator, el Element) {
	if el.Count == 0 {
		el.Count = 1
	}
	d.lock.Lock()
	d.elements[loc.Key()] = el
	d.locators[loc.Key()] = loc
	d.lock.Unlock()
}

// Remove deletes the element found by loc.
func (d *DOM) Remove(loc browser.Locator) {
	d.lock.Lock()
	delete(d.elements, loc.Key())
	delete(d.locators, loc.Key())
	d.lock.Unlock()
}

// Value returns the current text or value of the element found by loc.
func (d *DOM) Value(loc browser.Locator) (string, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	keys := d.matching(loc)
	if len(keys) == 0 {
		return "", false
	}
	return d.elements[keys[0]].Text, true
}

// matching returns the keys of the elements loc finds, in key order. The lock must be held.
func (d *DOM) matching(loc browser.Locator) []string {
	if _, ok := d.elements[loc.Key()]; ok {
		return []string{loc.Key()}
	}
	if loc.Kind != browser.KindRole {
		return nil
	}
	var keys []string
	for key, stored := range d.locators {
		if stored.Kind == browser.KindRole && stored.Value == loc.Value && loc.MatchesName(stored.Name) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// OnClick sets what happens when the element found by loc is clicked.
func (d *DOM) OnClick(loc browser.Locator, fn func(*DOM)) {
	d.lock.Lock()
	d.onClick[loc.Key()] = fn
	d.lock.Unlock()
}

// OnFill sets what happens after the element found by loc is filled.
func (d *DOM) OnFill(loc browser.Locator, fn func(*DOM, string)) {
	d.lock.Lock()
	d.onFill[loc.Key()] = fn
	d.lock.Unlock()
}

// After runs fn against the DOM once delay has passed, as an asynchronous page update would.
// Pending updates are dropped when the page navigates away or the session closes.
func (d *DOM) After(delay time.Duration, fn func(*DOM)) {
	t := time.AfterFunc(delay, func() { fn(d) })
	d.lock.Lock()
	d.timers = append(d.timers, t)
	d.lock.Unlock()
}

// Log appends a line to the page console.
func (d *DOM) Log(format string, args ...interface{}) {
	d.lock.Lock()
	d.console = append(d.console, fmt.Sprintf(format, args...))
	d.lock.Unlock()
}

func (d *DOM) state(loc browser.Locator) browser.ElementState {
	d.lock.Lock()
	defer d.lock.Unlock()
	keys := d.matching(loc)
	if len(keys) == 0 {
		return browser.ElementState{}
	}
	el := d.elements[keys[0]]
	count := 0
	for _, k := range keys {
		count += d.elements[k].Count
	}
	return browser.ElementState{
		Count:    count,
		Visible:  el.Visible,
		Enabled:  el.Enabled,
		Editable: el.Editable && el.Enabled,
		Text:     el.Text,
	}
}

func (d *DOM) fill(loc browser.Locator, text string) error {
	d.lock.Lock()
	keys := d.matching(loc)
	if len(keys) == 0 {
		d.lock.Unlock()
		return fmt.Errorf("%w: no element for %s", browser.ErrElementDetached, loc)
	}
	el := d.elements[keys[0]]
	if !el.Editable {
		d.lock.Unlock()
		return fmt.Errorf("%s is not editable", loc)
	}
	el.Text = text
	d.elements[keys[0]] = el
	handler := d.onFill[keys[0]]
	d.lock.Unlock()
	if handler != nil {
		handler(d, text)
	}
	return nil
}

func (d *DOM) click(loc browser.Locator) error {
	d.lock.Lock()
	keys := d.matching(loc)
	var handler func(*DOM)
	if len(keys) > 0 {
		handler = d.onClick[keys[0]]
	}
	d.lock.Unlock()
	if len(keys) == 0 {
		return fmt.Errorf("%w: no element for %s", browser.ErrElementDetached, loc)
	}
	if handler != nil {
		handler(d)
	}
	return nil
}

// snapshot renders the elements as a simple HTML listing, sorted for stable output.
func (d *DOM) snapshot() browser.Snapshot {
	d.lock.Lock()
	defer d.lock.Unlock()
	keys := make([]string, 0, len(d.elements))
	for k := range d.elements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var html strings.Builder
	fmt.Fprintf(&html, "<html><head><title>%s</title></head><body>\n", d.title)
	for _, k := range keys {
		fmt.Fprintf(&html, "<!-- %s --><div>%s</div>\n", d.locators[k], d.elements[k].Text)
	}
	html.WriteString("</body></html>\n")
	return browser.Snapshot{
		TakenAt:    time.Now(),
		URL:        d.url,
		Title:      d.title,
		HTML:       html.String(),
		Screenshot: []byte("\x89PNG fake"),
		Console:    append([]string(nil), d.console...),
	}
}
