package artifacts

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path"
	"regexp"
	"strings"

	"github.com/acronymia/ui-test-harness/framework/browser"
)

// Names of the artifacts written by SaveSnapshot.
const (
	NameHTML       = "page.html"
	NameScreenshot = "screenshot.png"
	NameConsole    = "console.log"
	NameInfo       = "page.txt"
)

// Saved describes one stored artifact.
type Saved struct {
	Name string
	Ref  string
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyPrefix returns the key under which a test's artifacts are stored: the run ID followed by
// the test ID segments, each reduced to characters that are safe in file names and URLs. A
// segment that had to be changed gets a short hash of its original text appended, so that
// "a b" and "a_b" do not share a key.
func KeyPrefix(runID string, testID []string) string {
	parts := make([]string, 0, len(testID)+1)
	for _, p := range append([]string{runID}, testID...) {
		parts = append(parts, keySegment(p))
	}
	return path.Join(parts...)
}

func keySegment(raw string) string {
	safe := strings.Trim(unsafeKeyChars.ReplaceAllString(raw, "_"), "_.")
	if safe == raw && safe != "" {
		return safe
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(raw))
	if safe == "" {
		safe = "_"
	}
	return fmt.Sprintf("%s-%08x", safe, h.Sum32())
}

// SaveSnapshot stores the parts of a snapshot that have content. It keeps going when one part
// fails, and returns what was saved along with all of the errors.
func SaveSnapshot(ctx context.Context, store Store, runID string, testID []string, snap browser.Snapshot) ([]Saved, error) {
	prefix := KeyPrefix(runID, testID)
	info := fmt.Sprintf("URL: %s\nTitle: %s\nTaken at: %s\n", snap.URL, snap.Title, snap.TakenAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	parts := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{NameInfo, "text/plain; charset=utf-8", []byte(info)},
		{NameHTML, "text/html; charset=utf-8", []byte(snap.HTML)},
		{NameScreenshot, "image/png", snap.Screenshot},
		{NameConsole, "text/plain; charset=utf-8", []byte(strings.Join(snap.Console, "\n"))},
	}
	var saved []Saved
	var errs []error
	for _, p := range parts {
		if len(p.data) == 0 {
			continue
		}
		ref, err := store.Put(ctx, prefix+"/"+p.name, p.contentType, p.data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ref != "" {
			saved = append(saved, Saved{Name: p.name, Ref: ref})
		}
	}
	return saved, errors.Join(errs...)
}
