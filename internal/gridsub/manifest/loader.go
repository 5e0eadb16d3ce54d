package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridsub/gridsub/pkg/errors"
)

// Load reads, validates, and decodes a manifest file. Validation runs on
// the raw document so schema errors name the offending field rather than
// surfacing as a half-populated struct.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapParseError(path, 0, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParseError(path, 0, err)
	}
	return m, nil
}

// Parse validates and decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	if err := schema.Validate(normalize(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// normalize rewrites YAML-decoded values into the shapes the schema
// validator expects, in particular map[interface{}]interface{} keys from
// nested documents.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
