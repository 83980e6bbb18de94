// Package browser contains the harness's view of a web browser: locators for finding elements,
// the element state that assertions look at, the errors that interactions and assertions can
// fail with, and Page, the per-test handle that gives every interaction poll-until-timeout
// semantics.
//
// The actual browser automation is behind the Driver and Session interfaces. There are two
// implementations, one using go-rod and one using playwright-go; the browsertest subpackage
// has an in-memory implementation for unit tests.
package browser
