package browser

import (
	"fmt"
	"strings"
	"time"
)

// ElementState is what a Session reports about a Locator at one instant: how many elements
// matched, and the state of the first match.
type ElementState struct {
	Count    int    `json:"count"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Editable bool   `json:"editable"`
	Text     string `json:"text"`
}

// Found returns true if at least one element matched.
func (s ElementState) Found() bool { return s.Count > 0 }

// Clickable returns true if the first match can receive a click.
func (s ElementState) Clickable() bool { return s.Found() && s.Visible && s.Enabled }

// Fillable returns true if the first match can receive text input.
func (s ElementState) Fillable() bool { return s.Clickable() && s.Editable }

func (s ElementState) String() string {
	if !s.Found() {
		return "no matching element"
	}
	parts := []string{fmt.Sprintf("%d match(es)", s.Count)}
	parts = append(parts, flagWord(s.Visible, "visible", "hidden"))
	parts = append(parts, flagWord(s.Enabled, "enabled", "disabled"))
	if s.Editable {
		parts = append(parts, "editable")
	}
	parts = append(parts, fmt.Sprintf("text %q", s.Text))
	return strings.Join(parts, ", ")
}

func flagWord(b bool, ifTrue, ifFalse string) string {
	if b {
		return ifTrue
	}
	return ifFalse
}

// Snapshot is the diagnostic state of a page, captured when a test fails.
type Snapshot struct {
	TakenAt    time.Time
	URL        string
	Title      string
	HTML       string
	Screenshot []byte // PNG; empty if the driver cannot take screenshots
	Console    []string
}
