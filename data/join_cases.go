package data

import (
	"fmt"
)

// JoinCase is one scenario of the lobby join flow: type a nickname, press Join, and check whether
// the player shows up in the roster.
type JoinCase struct {
	Name         string `json:"name"`
	Nickname     string `json:"nickname"`
	ExpectJoined bool   `json:"expectJoined"`
}

// LoadJoinCases reads every scenario under data-files/join. These hold for any lobby.
func LoadJoinCases() ([]JoinCase, error) {
	return loadJoinCases("join")
}

// LoadNicknameRuleCases reads the scenarios under data-files/nickname-rules, which only hold for
// a lobby that refuses blank and over-long nicknames.
func LoadNicknameRuleCases() ([]JoinCase, error) {
	return loadJoinCases("nickname-rules")
}

func loadJoinCases(dir string) ([]JoinCase, error) {
	sources, err := LoadAllDataFiles(dir)
	if err != nil {
		return nil, err
	}
	cases := make([]JoinCase, 0, len(sources))
	seen := make(map[string]string)
	for _, source := range sources {
		var c JoinCase
		if err := source.ParseInto(&c); err != nil {
			return nil, err
		}
		if c.Name == "" {
			return nil, fmt.Errorf("join case in %q %s has no name", source.BaseName, source.ParamsString())
		}
		if other, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("join case %q in %q duplicates one in %q", c.Name, source.BaseName, other)
		}
		seen[c.Name] = source.BaseName
		cases = append(cases, c)
	}
	return cases, nil
}
