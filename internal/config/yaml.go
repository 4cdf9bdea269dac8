package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes turns the raw config file into JSON. Files with a
// .yaml/.yml extension are decoded as YAML and re-encoded; everything
// else is assumed to already be JSON and passed through untouched. The
// second return value names the format that was detected.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	if !isYAMLPath(path) {
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("parse yaml: %w", err)
	}
	doc = stringifyKeys(doc)

	jb, err := json.Marshal(doc)
	if err != nil {
		return nil, "yaml", fmt.Errorf("convert yaml to json: %w", err)
	}
	return jb, "yaml", nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// stringifyKeys rewrites YAML's map[any]any nodes into map[string]any so
// the document survives json.Marshal. Values are walked recursively.
func stringifyKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringifyKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringifyKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = stringifyKeys(val)
		}
		return t
	default:
		return v
	}
}
