// Package uitests contains the browser tests for the Acronymia lobby.
//
// The tests only navigate, type, click and look at the DOM; they know nothing about how the
// application is built. Every check polls until it holds or its timeout elapses, because the
// application updates the page asynchronously.
package uitests
