package data

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//go:embed data-files
var dataFilesRoot embed.FS

const dataBasePath = "data-files"

// SourceInfo represents JSON or YAML data that was read from a file, after post-processing to expand
// constants and parameters. For non-parameterized files, you will get one SourceInfo per file. For
// parameterized files, there can be many instances per file, each with its own version of Data.
// See data-files/README.md.
type SourceInfo struct {
	FilePath string
	BaseName string
	Params   map[string]ldvalue.Value
	Data     []byte
}

func (s SourceInfo) ParseInto(target interface{}) error {
	if err := ParseJSONOrYAML(s.Data, target); err != nil {
		return fmt.Errorf("error parsing %q %s: %w", s.BaseName, s.ParamsString(), err)
	}
	return nil
}

// ParamsString describes the parameter values of this instance, sorted by name, such as
// "(nickname=\"Bob\")". It is empty for a file without parameters.
func (s SourceInfo) ParamsString() string {
	if len(s.Params) == 0 {
		return ""
	}
	names := maps.Keys(s.Params)
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+s.Params[name].String())
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// LoadDataFile reads a data file and performs any necessary constant/parameter substitutions. It can
// return more than one SourceInfo because any file can be parameterized.
//
// The path parameter is relative to data/data-files.
func LoadDataFile(filePath string) ([]SourceInfo, error) {
	data, err := dataFilesRoot.ReadFile(path.Join(dataBasePath, filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", filePath, err)
	}
	sources, err := expandSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", filePath, err)
	}
	for i := range sources {
		sources[i].FilePath = filePath
		sources[i].BaseName = path.Base(filePath)
	}
	return sources, nil
}

// LoadAllDataFiles reads all JSON and YAML files in a directory, in name order, and performs any
// necessary constant/parameter substitutions.
//
// The path parameter is relative to data/data-files.
func LoadAllDataFiles(dir string) ([]SourceInfo, error) {
	files, err := dataFilesRoot.ReadDir(path.Join(dataBasePath, dir))
	if err != nil {
		return nil, err
	}
	var ret []SourceInfo
	for _, file := range files {
		if file.IsDir() || !isDataFile(file.Name()) {
			continue
		}
		sources, err := LoadDataFile(path.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		ret = append(ret, sources...)
	}
	return ret, nil
}

func isDataFile(name string) bool {
	switch path.Ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
