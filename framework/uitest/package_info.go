// Package uitest contains a test runner framework that is similar to Go's testing package,
// but is run as regular Go application code rather than Go tests. It adds what a browser test
// run needs on top of that: a per-test deadline exposed as a context.Context, parallel subtests,
// guaranteed cleanups, a timed-out outcome, diagnostic artifacts, and result reporting.
package uitest
