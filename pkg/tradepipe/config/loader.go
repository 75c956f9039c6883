package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile reads a pipeline configuration file, picking the decoder by
// extension. YAML (.yaml, .yml) and JSON (.json) are supported; see
// OptionsFromConfig in the pipeline package for the keys the
// orchestrator understands.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("config %s: unrecognized extension %q (want .yaml, .yml, or .json)", path, ext)
	}
}

// FromYAML decodes a YAML document into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON object into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("decode json config: %w", err)
	}
	return New(m), nil
}
