package data

import (
	"encoding/json"
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// ParseJSONOrYAML is used in the same way as json.Unmarshal, but also accepts YAML. A YAML
// document is converted to JSON first, so the target's json tags apply to both formats.
func ParseJSONOrYAML(data []byte, target interface{}) error {
	if json.Valid(data) {
		return json.Unmarshal(data, target)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := requireStringKeys(&doc); err != nil {
		return err
	}
	var raw interface{}
	if err := doc.Decode(&raw); err != nil {
		return err
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// requireStringKeys rejects mappings that JSON could not represent, such as "1: x".
func requireStringKeys(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				continue
			}
			switch key.ShortTag() {
			case "!!str", "!!merge":
			default:
				return fmt.Errorf("line %d: map key %q is a %s; only string keys are allowed",
					key.Line, key.Value, key.ShortTag())
			}
		}
	}
	for _, child := range node.Content {
		if err := requireStringKeys(child); err != nil {
			return err
		}
	}
	return nil
}
