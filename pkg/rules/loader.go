package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a ruleset from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json
// for JSON. If the extension is unrecognized, YAML is attempted first,
// then JSON.
//
// After loading, the ruleset is validated against the JSON schema and
// defaults are applied to optional fields.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ruleset file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading ruleset: %s", path)
		}
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}

	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a ruleset from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
//
// Validation runs on the raw data (converted to JSON) before parsing into
// the typed struct, so unknown fields are rejected rather than silently
// dropped by struct unmarshaling.
func LoadFromBytes(data []byte, path string) (*Ruleset, error) {
	if len(data) == 0 {
		return nil, errors.New("ruleset file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	rs, err := parseRuleset(data, path)
	if err != nil {
		return nil, err
	}

	rs.ApplyDefaults()

	return rs, nil
}

// LoadFromReader reads and validates a ruleset from an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Ruleset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}
	return LoadFromBytes(data, path)
}

// parseRuleset parses the ruleset data based on file extension.
func parseRuleset(data []byte, path string) (*Ruleset, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		rs, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return rs, nil
		}
		rs, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return rs, nil
		}
		return nil, fmt.Errorf("failed to parse ruleset (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("invalid JSON in ruleset: %w", err)
	}
	return &rs, nil
}

func parseYAML(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("invalid YAML in ruleset: %w", err)
	}
	return &rs, nil
}

// toJSON converts the input data to JSON for schema validation. YAML is
// converted; JSON is returned as-is after a syntax check.
func toJSON(data []byte, path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in ruleset: %w", err)
		}
		return data, nil

	case ".yaml", ".yml":
		return yamlToJSON(data)

	default:
		jsonData, err := yamlToJSON(data)
		if err == nil {
			return jsonData, nil
		}
		var raw any
		if jsonErr := json.Unmarshal(data, &raw); jsonErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("failed to parse ruleset (tried YAML and JSON): %w", err)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in ruleset: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert ruleset to JSON: %w", err)
	}

	return jsonData, nil
}
