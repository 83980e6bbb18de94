package browser

import (
	"fmt"
	"strconv"
	"strings"
)

// LocatorKind says how a Locator finds elements.
type LocatorKind string

const (
	// KindTestID matches elements by their data-testid attribute.
	KindTestID LocatorKind = "testid"
	// KindRole matches elements by accessible role and, optionally, accessible name.
	KindRole LocatorKind = "role"
	// KindCSS matches elements by CSS selector.
	KindCSS LocatorKind = "css"
)

// TestIDAttribute is the attribute that ByTestID locators match on.
const TestIDAttribute = "data-testid"

// Locator is a deferred query against a page's DOM. It holds no reference to any element: every
// interaction or assertion that uses it evaluates it again against the page as it is at that
// moment, so a re-rendered element is found again rather than going stale.
type Locator struct {
	Kind  LocatorKind
	Value string
	// Name is the accessible name for KindRole locators; empty means any name.
	Name string
	// ExactName requires the accessible name to equal Name instead of containing it.
	ExactName bool
}

// ByTestID returns a Locator for elements whose data-testid attribute equals id.
func ByTestID(id string) Locator {
	return Locator{Kind: KindTestID, Value: id}
}

// ByRole returns a Locator for elements with the given ARIA role whose accessible name contains
// name, ignoring case and runs of whitespace, so "Join" finds a button labelled "Join!". An empty
// name matches any element with the role. Use Exact for a whole, case-sensitive match.
func ByRole(role, name string) Locator {
	return Locator{Kind: KindRole, Value: role, Name: name}
}

// Exact returns a copy of a role locator that only matches an accessible name equal to Name after
// whitespace normalization.
func (l Locator) Exact() Locator {
	l.ExactName = true
	return l
}

// MatchesName reports whether an element whose accessible name is actual satisfies the locator's
// name condition. The rod probe script and the playwright driver apply the same rule.
func (l Locator) MatchesName(actual string) bool {
	if l.Name == "" {
		return true
	}
	want, got := normalizeSpace(l.Name), normalizeSpace(actual)
	if l.ExactName {
		return got == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ByCSS returns a Locator for elements matching a CSS selector.
func ByCSS(selector string) Locator {
	return Locator{Kind: KindCSS, Value: selector}
}

// Selector returns a CSS selector equivalent to the locator, or "" for role locators, which
// cannot be expressed in CSS.
func (l Locator) Selector() string {
	switch l.Kind {
	case KindTestID:
		return "[" + TestIDAttribute + "=" + strconv.Quote(l.Value) + "]"
	case KindCSS:
		return l.Value
	default:
		return ""
	}
}

// Key is a stable identity for the locator, usable as a map key.
func (l Locator) Key() string {
	key := string(l.Kind) + "\x00" + l.Value + "\x00" + l.Name
	if l.ExactName {
		key += "\x00exact"
	}
	return key
}

func (l Locator) String() string {
	switch l.Kind {
	case KindTestID:
		return fmt.Sprintf("getByTestId(%q)", l.Value)
	case KindRole:
		if l.Name == "" {
			return fmt.Sprintf("getByRole(%q)", l.Value)
		}
		if l.ExactName {
			return fmt.Sprintf("getByRole(%q, name=%q, exact)", l.Value, l.Name)
		}
		return fmt.Sprintf("getByRole(%q, name=%q)", l.Value, l.Name)
	default:
		return fmt.Sprintf("locator(%q)", l.Value)
	}
}
