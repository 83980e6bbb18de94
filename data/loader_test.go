package data

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEmbedding(t *testing.T) {
	_, err := dataFilesRoot.ReadFile(dataBasePath + "/README.md")
	assert.NoError(t, err)

	files, err := dataFilesRoot.ReadDir(dataBasePath + "/join")
	assert.NoError(t, err)
	assert.NotEqual(t, 0, len(files))
}

func TestLoadDataFileExpandsParameters(t *testing.T) {
	sources, err := LoadDataFile("nickname-rules/rejected.yaml")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	for _, s := range sources {
		assert.Equal(t, "nickname-rules/rejected.yaml", s.FilePath)
		assert.Equal(t, "rejected.yaml", s.BaseName)
	}
	assert.Equal(t, `(label="empty",nickname="")`, sources[0].ParamsString())
}

func TestLoadDataFileReportsMissingFile(t *testing.T) {
	_, err := LoadDataFile("join/nope.yaml")
	assert.ErrorContains(t, err, `failed to read "join/nope.yaml"`)
}

func TestLoadAllDataFilesSkipsNonDataFiles(t *testing.T) {
	sources, err := LoadAllDataFiles(".")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestParamsString(t *testing.T) {
	assert.Equal(t, "", SourceInfo{}.ParamsString())
	s := SourceInfo{Params: map[string]ldvalue.Value{
		"b": ldvalue.Int(2),
		"a": ldvalue.String("x"),
	}}
	assert.Equal(t, `(a="x",b=2)`, s.ParamsString())
}

func TestLoadJoinCases(t *testing.T) {
	cases, err := LoadJoinCases()
	require.NoError(t, err)

	byName := make(map[string]JoinCase)
	for _, c := range cases {
		byName[c.Name] = c
	}
	assert.Equal(t, JoinCase{Name: "accepts simple nickname", Nickname: "Bob", ExpectJoined: true},
		byName["accepts simple nickname"])
	assert.Equal(t, "Zoë", byName["accepts non-ASCII nickname"].Nickname)
	assert.Len(t, byName["accepts maximum length nickname"].Nickname, MaxNicknameLength)
	for _, c := range cases {
		assert.True(t, c.ExpectJoined, "%q belongs with the nickname rules", c.Name)
	}
}

func TestLoadNicknameRuleCases(t *testing.T) {
	cases, err := LoadNicknameRuleCases()
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, JoinCase{Name: "rejects empty nickname", Nickname: "", ExpectJoined: false}, cases[0])
	assert.Equal(t, "rejects over-length nickname", cases[1].Name)
	assert.Len(t, cases[1].Nickname, MaxNicknameLength+1)
	assert.False(t, cases[1].ExpectJoined)
}
