package uitests

import (
	"fmt"

	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/uitest"
)

// The lobby's page structure, as the tests see it.
const (
	ExpectedTitle = "Acronymia"
	lobbyPath     = "/"
)

var (
	nicknameInput = browser.ByTestID("input-nickname")
	joinButton    = browser.ByRole("button", "Join")
)

func playerEntry(nickname string) browser.Locator {
	return browser.ByTestID("player-" + nickname)
}

// requireNoError ends the test if err is not nil. It keeps the error itself, rather than a
// message, so that a timeout is reported as one.
func requireNoError(t *uitest.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func (s *suite) openLobby(t *uitest.T) *browser.Page {
	t.Helper()
	page := s.harness.OpenPage(t)
	requireNoError(t, page.Navigate(t.Context(), lobbyPath))
	return page
}

// join types a nickname and presses Join. It does not wait for the result.
func join(t *uitest.T, page *browser.Page, nickname string) {
	t.Helper()
	t.Debug("Joining as %q", nickname)
	requireNoError(t, page.Fill(t.Context(), nicknameInput, nickname))
	requireNoError(t, page.Click(t.Context(), joinButton))
}

func expectJoined(t *uitest.T, page *browser.Page, nickname string) {
	t.Helper()
	requireNoError(t, page.ExpectVisible(t.Context(), playerEntry(nickname)))
	requireNoError(t, page.ExpectText(t.Context(), playerEntry(nickname), nickname))
}

// expectNeverJoined watches the roster for a while and fails if the player shows up. Checking
// only once would pass before a slow application had a chance to add the player.
func (s *suite) expectNeverJoined(t *uitest.T, page *browser.Page, nickname string) {
	t.Helper()
	err := page.ExpectVisible(t.Context(), playerEntry(nickname), browser.WithTimeout(s.rejectionWait))
	switch {
	case err == nil:
		t.Fatal(fmt.Errorf("%s appeared, but %q should not have joined", playerEntry(nickname), nickname))
	case !browser.IsTimeout(err):
		t.Fatal(err)
	}
}
