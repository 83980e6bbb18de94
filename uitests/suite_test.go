package uitests

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/browser/browsertest"
	"github.com/acronymia/ui-test-harness/framework/harness"
	"github.com/acronymia/ui-test-harness/framework/uitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderedJoinButton is the button as the lobby labels it; the suite finds it by part of the name.
var renderedJoinButton = browser.ByRole("button", "Join!").Exact()

type fakeLobby struct {
	title     string
	joinDelay time.Duration
	// broken makes Join do nothing, like a page whose live connection never comes up.
	broken bool
	// lax accepts any nickname.
	lax bool
}

func (l fakeLobby) render(dom *browsertest.DOM) {
	dom.SetTitle(l.title)
	dom.Put(nicknameInput, browsertest.Input(""))
	dom.Put(renderedJoinButton, browsertest.Shown("Join!"))
	dom.OnClick(renderedJoinButton, func(dom *browsertest.DOM) {
		name, _ := dom.Value(nicknameInput)
		valid := name != "" && utf8.RuneCountInString(name) <= 32
		if l.broken || (!valid && !l.lax) {
			dom.Log("join of %q did not go through", name)
			return
		}
		dom.After(l.joinDelay, func(dom *browsertest.DOM) {
			dom.Put(playerEntry(name), browsertest.Shown(name))
		})
	})
}

type suiteRun struct {
	results uitest.Results
	output  string
	driver  *browsertest.Driver
}

type suiteOptions struct {
	filter        uitest.Filter
	nicknameRules bool
	configure     func(*browsertest.Driver)
}

func runSuite(t *testing.T, lobby fakeLobby, options suiteOptions) suiteRun {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Acronymia</title></head></html>"))
	}))
	t.Cleanup(app.Close)

	driver := browsertest.NewDriver().Route(app.URL+"/", browsertest.Route{Render: lobby.render})
	if options.configure != nil {
		options.configure(driver)
	}
	h, err := harness.NewTestHarness(harness.Config{
		BaseURL:      app.URL,
		Timeout:      500 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}, driver, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	var out bytes.Buffer
	results := RunUITestSuite(h, options.filter, nil, SuiteConfig{
		Parallelism:   4,
		RejectionWait: 150 * time.Millisecond,
		NicknameRules: options.nicknameRules,
		Output:        &out,
	})
	return suiteRun{results: results, output: out.String(), driver: driver}
}

func testIDs(results []uitest.TestResult) []string {
	ret := make([]string, 0, len(results))
	for _, r := range results {
		if len(r.TestID) > 1 {
			ret = append(ret, r.TestID.String())
		}
	}
	return ret
}

func TestSuitePassesAgainstWorkingLobby(t *testing.T) {
	run := runSuite(t, fakeLobby{title: "Acronymia", joinDelay: 50 * time.Millisecond}, suiteOptions{})

	assert.True(t, run.results.OK(), "failures: %v", testIDs(run.results.Failures))
	assert.ElementsMatch(t, []string{
		"homepage/title",
		"homepage/join form",
		"join/accepts simple nickname",
		"join/accepts with a space nickname",
		"join/accepts non-ASCII nickname",
		"join/accepts maximum length nickname",
		"isolation/first page",
		"isolation/second page",
		"diagnostics/snapshot html",
		"diagnostics/screenshot",
	}, testIDs(run.results.Tests))

	for _, s := range run.driver.Sessions() {
		assert.Equal(t, 1, s.CloseCount())
	}
}

func TestSuiteChecksNicknameRulesOnlyWhenEnabled(t *testing.T) {
	rules := []string{"join/rejects empty nickname", "join/rejects over-length nickname"}

	lax := runSuite(t, fakeLobby{title: "Acronymia", lax: true}, suiteOptions{})
	assert.True(t, lax.results.OK(), "failures: %v", testIDs(lax.results.Failures))
	for _, id := range rules {
		assert.NotContains(t, testIDs(lax.results.Tests), id)
	}

	strict := runSuite(t, fakeLobby{title: "Acronymia"}, suiteOptions{nicknameRules: true})
	assert.True(t, strict.results.OK(), "failures: %v", testIDs(strict.results.Failures))
	assert.Subset(t, testIDs(strict.results.Tests), rules)
}

func TestSuiteReportsWrongTitle(t *testing.T) {
	run := runSuite(t, fakeLobby{title: "Other"}, suiteOptions{})

	var titleResult *uitest.TestResult
	for i, r := range run.results.Failures {
		if r.TestID.String() == "homepage/title" {
			titleResult = &run.results.Failures[i]
		}
	}
	require.NotNil(t, titleResult, "failures: %v", testIDs(run.results.Failures))
	assert.Equal(t, uitest.OutcomeFailed, titleResult.Outcome)
	require.Len(t, titleResult.Errors, 1)
	assert.Contains(t, titleResult.Errors[0].Error(), `page title to be "Acronymia"`)
	assert.Contains(t, titleResult.Errors[0].Error(), `title "Other"`)
}

func TestSuiteDetectsPlayerThatNeverAppears(t *testing.T) {
	run := runSuite(t, fakeLobby{title: "Acronymia", broken: true}, suiteOptions{})

	failed := testIDs(run.results.Failures)
	assert.Contains(t, failed, "join/accepts simple nickname")
	assert.Contains(t, failed, "isolation/first page")
	assert.NotContains(t, failed, "homepage/title")
	for _, r := range run.results.Failures {
		if len(r.TestID) > 1 {
			assert.Equal(t, uitest.OutcomeFailed, r.Outcome, r.TestID.String())
			var timeout *browser.AssertionTimeoutError
			assert.ErrorAs(t, r.Errors[0], &timeout, r.TestID.String())
		}
	}
}

func TestSuiteDetectsPlayerThatShouldHaveBeenRejected(t *testing.T) {
	run := runSuite(t, fakeLobby{title: "Acronymia", lax: true}, suiteOptions{nicknameRules: true})

	failed := testIDs(run.results.Failures)
	assert.ElementsMatch(t, []string{"join/rejects empty nickname", "join/rejects over-length nickname"}, failed)
	for _, r := range run.results.Failures {
		if len(r.TestID) > 1 {
			assert.Equal(t, uitest.OutcomeFailed, r.Outcome, r.TestID.String())
			assert.Contains(t, r.Errors[0].Error(), "should not have joined")
		}
	}
}

func TestSuiteTimesOutSlowTests(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Acronymia</title></head></html>"))
	}))
	t.Cleanup(app.Close)
	lobby := fakeLobby{title: "Acronymia", joinDelay: time.Minute}
	driver := browsertest.NewDriver().Route(app.URL+"/", browsertest.Route{Render: lobby.render})
	h, err := harness.NewTestHarness(harness.Config{BaseURL: app.URL, Timeout: 10 * time.Second}, driver, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	var filters uitest.RegexFilters
	require.NoError(t, filters.MustMatch.Set("join/simple"))
	results := RunUITestSuite(h, filters, nil, SuiteConfig{TestTimeout: 200 * time.Millisecond, Output: io.Discard})

	require.Len(t, testIDs(results.Failures), 1)
	for _, r := range results.Failures {
		if len(r.TestID) > 1 {
			assert.Equal(t, uitest.OutcomeTimedOut, r.Outcome)
		}
	}
}

func TestSuiteAppliesFilter(t *testing.T) {
	var filters uitest.RegexFilters
	require.NoError(t, filters.MustMatch.Set("homepage"))
	run := runSuite(t, fakeLobby{title: "Acronymia"}, suiteOptions{filter: filters})

	assert.True(t, run.results.OK())
	assert.ElementsMatch(t, []string{"homepage/title", "homepage/join form"}, testIDs(run.results.Tests))
	assert.Contains(t, run.output, `skip any not matching "homepage"`)
}

func TestSuiteSkipsTestsNeedingMissingCapabilities(t *testing.T) {
	for _, p := range []struct {
		desc   string
		filter uitest.Filter
	}{
		{"no filter", nil},
		{"filter function", uitest.FilterFunc(func(uitest.TestID) bool { return true })},
		{"regex filters", uitest.RegexFilters{}},
	} {
		t.Run(p.desc, func(t *testing.T) {
			run := runSuite(t, fakeLobby{title: "Acronymia"}, suiteOptions{
				filter:    p.filter,
				configure: func(d *browsertest.Driver) { d.SetCapabilities(browser.CapabilityHTML) },
			})

			assert.True(t, run.results.OK())
			for _, r := range run.results.Tests {
				if r.TestID.String() == "diagnostics/screenshot" {
					assert.Equal(t, uitest.OutcomeSkipped, r.Outcome)
				}
			}
			assert.Contains(t, run.output, "screenshot, console-log")
		})
	}
}
