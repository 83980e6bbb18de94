package framework

import "golang.org/x/exp/slices"

// Capabilities is a list of strings representing optional features of a browser driver, such as
// whether it can take screenshots. The meanings of the strings are defined by the browser package.
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	return slices.Contains(cs, name)
}

// HasAll returns true if every one of the specified strings appears in the list.
func (cs Capabilities) HasAll(names ...string) bool {
	for _, n := range names {
		if !cs.Has(n) {
			return false
		}
	}
	return true
}
