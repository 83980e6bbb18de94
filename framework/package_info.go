// Package framework contains the low-level pieces of the UI test harness that are not specific
// to any one application. The base package holds shared types such as Logger; the runner,
// browser and harness components live in subpackages.
//
// The general model is:
//
// 1. The test harness talks to an application under test only through a browser: it navigates
// to pages and queries or manipulates their DOM.
//
// 2. Every test case gets its own isolated browser context (a Page), which it owns for its whole
// lifetime and which is released when the test scope ends, however it ends.
//
// 3. There is a general notion of a test scope which is similar to Go's testing.T, allowing
// pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what the application looks like is responsible for
// providing locators, scenario data, and the test bodies themselves.
package framework
