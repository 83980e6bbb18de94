// Package artifacts stores the diagnostic data captured when a UI test fails: the page HTML, a
// screenshot, and the browser console output. Storage is either a local directory or an S3
// bucket (including S3-compatible services).
package artifacts
