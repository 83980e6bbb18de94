package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocatorString(t *testing.T) {
	assert.Equal(t, `getByTestId("input-nickname")`, ByTestID("input-nickname").String())
	assert.Equal(t, `getByRole("button", name="Join")`, ByRole("button", "Join").String())
	assert.Equal(t, `getByRole("list")`, ByRole("list", "").String())
	assert.Equal(t, `getByRole("button", name="Join!", exact)`, ByRole("button", "Join!").Exact().String())
	assert.Equal(t, `locator("ul > li")`, ByCSS("ul > li").String())
}

func TestRoleLocatorNameMatching(t *testing.T) {
	join := ByRole("button", "Join")
	assert.True(t, join.MatchesName("Join!"))
	assert.True(t, join.MatchesName("join"))
	assert.True(t, join.MatchesName("  Join\n the game "))
	assert.False(t, join.MatchesName("Leave"))
	assert.False(t, join.MatchesName(""))

	assert.True(t, ByRole("button", "join  the").MatchesName("Join the game"))
	assert.True(t, ByRole("button", "").MatchesName("anything"))

	exact := join.Exact()
	assert.True(t, exact.MatchesName(" Join "))
	assert.False(t, exact.MatchesName("Join!"))
	assert.False(t, exact.MatchesName("join"))
	assert.False(t, join.ExactName, "Exact returns a copy")
}

func TestLocatorSelector(t *testing.T) {
	assert.Equal(t, `[data-testid="player-Bob"]`, ByTestID("player-Bob").Selector())
	assert.Equal(t, `[data-testid="say \"hi\""]`, ByTestID(`say "hi"`).Selector())
	assert.Equal(t, "ul > li", ByCSS("ul > li").Selector())
	assert.Equal(t, "", ByRole("button", "Join").Selector())
}

func TestLocatorKeysAreDistinct(t *testing.T) {
	assert.NotEqual(t, ByRole("button", "").Key(), ByRole("button", "Join").Key())
	assert.NotEqual(t, ByTestID("x").Key(), ByCSS("x").Key())
	assert.NotEqual(t, ByRole("button", "Join").Key(), ByRole("button", "Join").Exact().Key())
	assert.Equal(t, ByTestID("x").Key(), ByTestID("x").Key())
}

func TestElementStateString(t *testing.T) {
	assert.Equal(t, "no matching element", ElementState{}.String())
	assert.Equal(t, `1 match(es), visible, enabled, editable, text "Bob"`,
		ElementState{Count: 1, Visible: true, Enabled: true, Editable: true, Text: "Bob"}.String())
	assert.Equal(t, `2 match(es), hidden, disabled, text ""`, ElementState{Count: 2}.String())
}

func TestElementStateReadiness(t *testing.T) {
	hidden := ElementState{Count: 1, Enabled: true, Editable: true}
	assert.False(t, hidden.Clickable())
	assert.False(t, hidden.Fillable())

	button := ElementState{Count: 1, Visible: true, Enabled: true}
	assert.True(t, button.Clickable())
	assert.False(t, button.Fillable())

	field := ElementState{Count: 1, Visible: true, Enabled: true, Editable: true}
	assert.True(t, field.Fillable())
}
