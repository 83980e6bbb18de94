// Package mockapp is a stand-in for the Acronymia lobby, used to exercise the UI test suite
// without the real application. It is test tooling only: it implements just enough of the lobby
// for the suite's scenarios.
package mockapp
