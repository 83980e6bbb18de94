package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acronymia/ui-test-harness/framework/browser"
	"github.com/acronymia/ui-test-harness/framework/uitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory, so that no .env file is picked up.
func inTempDir(t *testing.T) string {
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func readParams(t *testing.T, args ...string) (commandParams, bool, string) {
	var params commandParams
	var errOut bytes.Buffer
	ok := params.Read(append([]string{"harness"}, args...), &errOut)
	return params, ok, errOut.String()
}

func TestParamsDefaults(t *testing.T) {
	inTempDir(t)
	params, ok, _ := readParams(t)
	require.True(t, ok)
	assert.Equal(t, defaultAppURL, params.appURL)
	assert.Equal(t, browser.DriverRod, params.driver)
	assert.True(t, params.headless)
	assert.Equal(t, 1, params.parallelism)
	assert.Equal(t, browser.DefaultTimeout, params.timeout)
	assert.Equal(t, browser.DefaultNavigationTimeout, params.navTimeout)
	assert.False(t, params.selfTest)
}

func TestParamsFromFlags(t *testing.T) {
	inTempDir(t)
	params, ok, _ := readParams(t,
		"-app-url", "http://lobby.test:8080/",
		"-driver", "playwright",
		"-headless=false",
		"-parallel", "4",
		"-timeout", "2s",
		"-run", "join/accepts",
		"-skip", "isolation",
		"-junit", "out.xml",
		"-artifacts-s3-bucket", "snapshots",
		"-artifacts-s3-path-style",
	)
	require.True(t, ok)
	assert.Equal(t, "http://lobby.test:8080/", params.appURL)
	assert.Equal(t, browser.DriverPlaywright, params.driver)
	assert.False(t, params.headless)
	assert.Equal(t, 4, params.parallelism)
	assert.Equal(t, 2*time.Second, params.timeout)
	assert.True(t, params.filters.Match(uitest.TestID{"join", "accepts simple nickname"}))
	assert.False(t, params.filters.Match(uitest.TestID{"homepage", "title"}))
	assert.Equal(t, "out.xml", params.jUnitFile)
	assert.Equal(t, "snapshots", params.s3.bucket)
	assert.True(t, params.s3.usePathStyle)
}

func TestParamsFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("ACRONYMIA_APP_URL", "http://from-env/")
	t.Setenv("ACRONYMIA_PARALLEL", "3")
	t.Setenv("ACRONYMIA_SELF_TEST", "true")
	t.Setenv("ACRONYMIA_NICKNAME_RULES", "1")
	t.Setenv("ACRONYMIA_NAV_TIMEOUT", "45s")

	params, ok, _ := readParams(t, "-parallel", "2")
	require.True(t, ok)
	assert.Equal(t, "http://from-env/", params.appURL)
	assert.Equal(t, 2, params.parallelism)
	assert.True(t, params.selfTest)
	assert.True(t, params.nicknameRules)
	assert.Equal(t, 45*time.Second, params.navTimeout)
}

func TestParamsRejectMalformedEnvironment(t *testing.T) {
	for _, p := range []struct {
		name, value string
	}{
		{"ACRONYMIA_NAV_TIMEOUT", "not a duration"},
		{"ACRONYMIA_TIMEOUT", "5"},
		{"ACRONYMIA_PARALLEL", "four"},
		{"ACRONYMIA_HEADLESS", "maybe"},
	} {
		t.Run(p.name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(p.name, p.value)

			_, ok, errOut := readParams(t)
			assert.False(t, ok)
			assert.Contains(t, errOut, p.name)
			assert.Contains(t, errOut, p.value)
		})
	}
}

func TestParamsNicknameRulesOffByDefault(t *testing.T) {
	inTempDir(t)
	params, ok, _ := readParams(t)
	require.True(t, ok)
	assert.False(t, params.nicknameRules)

	params, ok, _ = readParams(t, "-nickname-rules")
	require.True(t, ok)
	assert.True(t, params.nicknameRules)
}

func TestParamsFromEnvFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ci.env"),
		[]byte("ACRONYMIA_DRIVER=playwright\nACRONYMIA_REDIS_URL=redis://localhost:6379/0\n"), 0o600))
	t.Setenv("ACRONYMIA_DRIVER", "")
	os.Unsetenv("ACRONYMIA_DRIVER")
	t.Setenv("ACRONYMIA_REDIS_URL", "")
	os.Unsetenv("ACRONYMIA_REDIS_URL")

	params, ok, _ := readParams(t, "-env-file", "ci.env")
	require.True(t, ok)
	assert.Equal(t, browser.DriverPlaywright, params.driver)
	assert.Equal(t, "redis://localhost:6379/0", params.redisURL)
}

func TestParamsLoadDefaultEnvFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ACRONYMIA_JUNIT=report.xml\n"), 0o600))
	t.Setenv("ACRONYMIA_JUNIT", "")
	os.Unsetenv("ACRONYMIA_JUNIT")

	params, ok, _ := readParams(t)
	require.True(t, ok)
	assert.Equal(t, "report.xml", params.jUnitFile)
}

func TestParamsEnvironmentOverridesEnvFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ACRONYMIA_DRIVER=playwright\n"), 0o600))
	t.Setenv("ACRONYMIA_DRIVER", "rod")

	params, ok, _ := readParams(t)
	require.True(t, ok)
	assert.Equal(t, browser.DriverRod, params.driver)
}

func TestParamsErrors(t *testing.T) {
	inTempDir(t)
	for _, p := range []struct {
		desc    string
		args    []string
		message string
	}{
		{"missing env file", []string{"-env-file=nope.env"}, `cannot load environment file "nope.env"`},
		{"bad regex", []string{"-run", "("}, "invalid regex"},
		{"extra argument", []string{"extra"}, "unexpected arguments: extra"},
		{"two artifact stores", []string{"-artifacts-dir", "out", "-artifacts-s3-bucket", "b"}, "cannot be used together"},
	} {
		t.Run(p.desc, func(t *testing.T) {
			_, ok, errOut := readParams(t, p.args...)
			assert.False(t, ok)
			assert.Contains(t, errOut, p.message)
		})
	}
}

func TestLoadSuppressions(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "suppressions.txt")
	require.NoError(t, os.WriteFile(path, []byte("join/accepts non-ASCII nickname\n\nhomepage/title\n"), 0o600))

	params := commandParams{skipFile: path}
	require.NoError(t, loadSuppressions(&params))
	assert.False(t, params.filters.Match(uitest.TestID{"join", "accepts non-ASCII nickname"}))
	assert.False(t, params.filters.Match(uitest.TestID{"homepage", "title"}))
	assert.True(t, params.filters.Match(uitest.TestID{"homepage", "join form"}))

	params = commandParams{skipFile: filepath.Join(dir, "missing.txt")}
	assert.Error(t, loadSuppressions(&params))
}
