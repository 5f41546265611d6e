package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("target must be a single platform mapping (line %d)", node.Line)
	}

	platform := Platform(node.Content[0].Value)
	if !platform.Valid() {
		return fmt.Errorf("unknown platform tag %q (line %d)", platform, node.Line)
	}

	var m PackageManagement
	if err := node.Content[1].Decode(&m); err != nil {
		return fmt.Errorf("%s: %w", platform, err)
	}

	t.Platform = platform
	t.Management = m
	return nil
}

func (t Target) MarshalYAML() (any, error) {
	return map[string]PackageManagement{string(t.Platform): t.Management}, nil
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]PackageManagement{string(t.Platform): t.Management})
}
