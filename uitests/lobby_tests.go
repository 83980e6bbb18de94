package uitests

import (
	"github.com/acronymia/ui-test-harness/data"
	"github.com/acronymia/ui-test-harness/framework/uitest"
)

func (s *suite) doHomepageTests(t *uitest.T) {
	t.RunParallel("title", func(t *uitest.T) {
		page := s.openLobby(t)
		requireNoError(t, page.ExpectTitle(t.Context(), ExpectedTitle))
	})

	t.RunParallel("join form", func(t *uitest.T) {
		page := s.openLobby(t)
		requireNoError(t, page.ExpectVisible(t.Context(), nicknameInput))
		requireNoError(t, page.ExpectVisible(t.Context(), joinButton))
	})
}

func (s *suite) doJoinTests(t *uitest.T) {
	cases, err := data.LoadJoinCases()
	requireNoError(t, err)
	if s.nicknameRules {
		ruleCases, err := data.LoadNicknameRuleCases()
		requireNoError(t, err)
		cases = append(cases, ruleCases...)
	}

	for _, c := range cases {
		t.RunParallel(c.Name, func(t *uitest.T) {
			page := s.openLobby(t)
			join(t, page, c.Nickname)
			if c.ExpectJoined {
				expectJoined(t, page, c.Nickname)
			} else {
				s.expectNeverJoined(t, page, c.Nickname)
			}
		})
	}
}

// doIsolationTests checks that two browser sessions do not share page state: each page shows the
// player it joined and not the other one.
func (s *suite) doIsolationTests(t *uitest.T) {
	first, second := s.nicknames.Get("isolation-first"), s.nicknames.Get("isolation-second")
	for _, p := range []struct {
		name, own, other string
	}{
		{"first page", first, second},
		{"second page", second, first},
	} {
		t.RunParallel(p.name, func(t *uitest.T) {
			page := s.openLobby(t)
			join(t, page, p.own)
			expectJoined(t, page, p.own)
			s.expectNeverJoined(t, page, p.other)
		})
	}
}

func (s *suite) doUniqueNicknameTest(t *uitest.T) {
	nickname := s.nicknames.Next()
	page := s.openLobby(t)
	join(t, page, nickname)
	expectJoined(t, page, nickname)
	requireNoError(t, page.ExpectCount(t.Context(), playerEntry(nickname), 1))
}
