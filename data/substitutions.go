package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// substitutionSet maps a variable name to its value. In a data file, "<name>" as an entire JSON
// string is replaced by the value's JSON form, and <name> anywhere else is replaced by its text.
type substitutionSet map[string]ldvalue.Value

func (s substitutionSet) sortedNames() []string {
	names := maps.Keys(s)
	slices.Sort(names)
	return names
}

func expandSubstitutions(originalData []byte) ([]SourceInfo, error) {
	var substs struct {
		Constants  substitutionSet   `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := ParseJSONOrYAML(originalData, &substs); err != nil {
		return nil, err
	}
	if len(substs.Constants) == 0 && len(substs.Parameters) == 0 {
		return []SourceInfo{{Data: originalData}}, nil
	}
	parameterSets, err := makeParameterPermutations(substs.Parameters)
	if err != nil {
		return nil, err
	}
	if len(parameterSets) == 0 {
		return []SourceInfo{{Data: replaceVariables(originalData, substs.Constants)}}, nil
	}
	ret := make([]SourceInfo, 0, len(parameterSets))
	for _, paramsSet := range parameterSets {
		// Constants go both before and after the parameters, so that a parameter value can refer
		// to a constant and a constant can refer to a parameter.
		transformed := replaceVariables(originalData, substs.Constants)
		transformed = replaceVariables(transformed, paramsSet)
		transformed = replaceVariables(transformed, substs.Constants)
		ret = append(ret, SourceInfo{Data: transformed, Params: paramsSet})
	}
	return ret, nil
}

// makeParameterPermutations reads the "parameters" list. A list of objects gives one parameter
// set per object. A list of lists gives every combination of one object from each list, with the
// first list varying fastest.
func makeParameterPermutations(paramsData []json.RawMessage) ([]substitutionSet, error) {
	if len(paramsData) == 0 {
		return nil, nil
	}
	allData, _ := json.Marshal(paramsData)
	switch ldvalue.Parse(paramsData[0]).Type() {
	case ldvalue.ObjectType:
		var list []substitutionSet
		if err := json.Unmarshal(allData, &list); err != nil {
			return nil, err
		}
		return list, nil
	case ldvalue.ArrayType:
	default:
		return nil, errors.New("unable to parse parameters - must be an array of objects or an array of arrays")
	}

	var lists [][]substitutionSet
	if err := json.Unmarshal(allData, &lists); err != nil {
		return nil, err
	}
	for i, list := range lists {
		if len(list) == 0 {
			return nil, fmt.Errorf("parameter list %d is empty", i)
		}
	}
	indices := make([]int, len(lists))
	var result []substitutionSet
	for {
		merged := make(substitutionSet)
		for i, list := range lists {
			for k, v := range list[indices[i]] {
				merged[k] = v
			}
		}
		result = append(result, merged)

		pos := 0
		for ; pos < len(lists); pos++ {
			indices[pos]++
			if indices[pos] < len(lists[pos]) {
				break
			}
			indices[pos] = 0
		}
		if pos == len(lists) {
			return result, nil
		}
	}
}

func replaceVariables(originalData []byte, substs substitutionSet) []byte {
	str := string(originalData)
	// json.Marshal escapes angle brackets, so re-marshaled data would hide the placeholders.
	str = strings.ReplaceAll(str, `\u003c`, "<")
	str = strings.ReplaceAll(str, `\u003e`, ">")
	for _, name := range substs.sortedNames() {
		value := substs[name]
		typed := value.JSONString()
		str = strings.ReplaceAll(str, `"<`+name+`>"`, typed)
		interpolated := typed
		if value.IsString() {
			interpolated = value.StringValue()
		}
		str = strings.ReplaceAll(str, "<"+name+">", interpolated)
	}
	return []byte(str)
}
