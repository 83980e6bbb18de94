package uitest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type regexFilterTestParams struct {
	run         []string
	skip        []string
	testID      TestID
	shouldMatch bool
}

func TestRegexFilters(t *testing.T) {
	allParams := []regexFilterTestParams{
		// matches everything by default
		{nil, nil, TestID(nil), true},
		{nil, nil, TestID{"a"}, true},
		{nil, nil, TestID{"a", "b"}, true},

		// --run with single component
		{[]string{"a"}, nil, TestID(nil), true},
		{[]string{"a"}, nil, TestID{"a"}, true},
		{[]string{"a"}, nil, TestID{"b"}, false},
		{[]string{"a"}, nil, TestID{"xax"}, true},
		{[]string{"a"}, nil, TestID{"a", "b"}, true},

		// --run with multiple components
		{[]string{"a/b"}, nil, TestID(nil), true},
		{[]string{"a/b"}, nil, TestID{"a"}, true},
		{[]string{"a/b"}, nil, TestID{"b"}, false},
		{[]string{"a/b"}, nil, TestID{"a", "b"}, true},
		{[]string{"a/b"}, nil, TestID{"xax", "xbx"}, true},

		// --run with multiple patterns
		{[]string{"a", "b"}, nil, TestID(nil), true},
		{[]string{"a", "b"}, nil, TestID{"a"}, true},
		{[]string{"a", "b"}, nil, TestID{"b"}, true},
		{[]string{"a", "b"}, nil, TestID{"c"}, false},
		{[]string{"a", "b"}, nil, TestID{"a", "c"}, true},

		// --skip with single component
		{nil, []string{"a"}, TestID(nil), true},
		{nil, []string{"a"}, TestID{"a"}, false},
		{nil, []string{"a"}, TestID{"b"}, true},
		{nil, []string{"a"}, TestID{"xax"}, false},
		{nil, []string{"a"}, TestID{"a", "b"}, false},

		// --skip with multiple components
		{nil, []string{"a/b"}, TestID(nil), true},
		{nil, []string{"a/b"}, TestID{"a"}, true},
		{nil, []string{"a/b"}, TestID{"a", "b"}, false},
		{nil, []string{"a/b"}, TestID{"a", "b", "c"}, false},
		{nil, []string{"a/b"}, TestID{"a", "c"}, true},

		// --skip overrides --run
		{[]string{"y"}, []string{"n"}, TestID{"y"}, true},
		{[]string{"y"}, []string{"n"}, TestID{"yn"}, false},
	}
	for _, params := range allParams {
		var r RegexFilters
		for _, s := range params.run {
			require.NoError(t, r.MustMatch.Set(s))
		}
		for _, s := range params.skip {
			require.NoError(t, r.MustNotMatch.Set(s))
		}
		t.Run(fmt.Sprintf("run=%s, skip=%s, id=%s", r.MustMatch, r.MustNotMatch, params.testID), func(t *testing.T) {
			assert.Equal(t, params.shouldMatch, r.Match(params.testID))
		})
	}
}

func TestInvalidPattern(t *testing.T) {
	var l TestIDPatternList
	assert.Error(t, l.Set("a/(b"))
	assert.False(t, l.IsDefined())
}

func TestReadSuppressions(t *testing.T) {
	var r RegexFilters
	input := "join/name (with parens)\n\nhomepage/title\n"
	require.NoError(t, ReadSuppressions(strings.NewReader(input), &r.MustNotMatch))

	assert.Len(t, r.MustNotMatch, 2)
	assert.False(t, r.Match(TestID{"join", "name (with parens)"}))
	assert.False(t, r.Match(TestID{"homepage", "title"}))
	assert.True(t, r.Match(TestID{"homepage", "title 2"}))
	assert.True(t, r.Match(TestID{"join"}))
}

func TestPrintFilterDescription(t *testing.T) {
	var r RegexFilters
	require.NoError(t, r.MustMatch.Set("join"))
	var buf bytes.Buffer
	PrintFilterDescription(&buf, r, []string{"screenshot", "html"}, []string{"html"})
	assert.Contains(t, buf.String(), `skip any not matching "join"`)
	assert.Contains(t, buf.String(), "  screenshot\n")
}

// A test ID excluded by a skip pattern built from that same ID is never run, whatever it contains.
func TestSuppressionAlwaysMatchesItsOwnTest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		segments := rapid.SliceOfN(rapid.StringMatching(`[^/\r\n]{1,12}`), 1, 4).Draw(rt, "segments")
		id := TestID(segments)
		var r RegexFilters
		require.NoError(rt, ReadSuppressions(strings.NewReader(id.String()+"\n"), &r.MustNotMatch))
		if strings.TrimSpace(id.String()) == "" {
			return
		}
		assert.False(rt, r.Match(id))
	})
}
