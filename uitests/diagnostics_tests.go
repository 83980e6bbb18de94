package uitests

import (
	"fmt"
	"strings"

	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/uitest"
)

// doDiagnosticsTests checks that the page can be captured the way failure snapshots are, so a
// broken capture shows up as a failing test instead of as missing artifacts.
func (s *suite) doDiagnosticsTests(t *uitest.T) {
	t.Run("snapshot html", func(t *uitest.T) {
		t.RequireCapability(browser.CapabilityHTML)
		page := s.openLobby(t)
		requireNoError(t, page.ExpectVisible(t.Context(), nicknameInput))
		snap, err := page.Snapshot(t.Context())
		requireNoError(t, err)
		if !strings.Contains(snap.HTML, "input-nickname") {
			t.Fatal(fmt.Errorf("snapshot of %s does not contain the nickname input", snap.URL))
		}
	})

	t.Run("screenshot", func(t *uitest.T) {
		t.RequireCapability(browser.CapabilityScreenshot)
		page := s.openLobby(t)
		snap, err := page.Snapshot(t.Context())
		requireNoError(t, err)
		if len(snap.Screenshot) == 0 {
			t.Fatal(fmt.Errorf("snapshot of %s has no screenshot", snap.URL))
		}
	})
}
