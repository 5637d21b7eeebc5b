package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// PatternSetSchema returns the JSON-Schema a pattern file must satisfy.
func PatternSetSchema() map[string]any {
	field := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "column", "label"},
		"properties": map[string]any{
			"name":    map[string]any{"type": "string", "pattern": `^[a-z][a-z0-9_]*$`},
			"column":  map[string]any{"type": "string", "minLength": 1},
			"label":   map[string]any{"type": "string", "minLength": 1},
			"capture": map[string]any{"type": "string"},
			"check":   map[string]any{"type": "string"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{"type": "array", "minItems": 1, "items": field},
		},
	}
}

// LoadPatterns reads a YAML (or JSON) pattern file, validates it against
// PatternSetSchema and decodes it. An empty path yields DefaultPatterns.
func LoadPatterns(path string) (PatternSet, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return PatternSet{}, fmt.Errorf("read patterns %s: %w", path, err)
	}
	return ParsePatterns(data)
}

// ParsePatterns is LoadPatterns over an in-memory document.
func ParsePatterns(data []byte) (PatternSet, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return PatternSet{}, fmt.Errorf("%w: parse: %v", ErrInvalidPattern, err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return PatternSet{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if err := validateAgainstSchema(PatternSetSchema(), asJSON); err != nil {
		return PatternSet{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	var set PatternSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return PatternSet{}, fmt.Errorf("%w: decode: %v", ErrInvalidPattern, err)
	}
	if _, err := set.compile(); err != nil {
		return PatternSet{}, err
	}
	return set, nil
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("patterns.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("patterns.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("patterns do not match schema: %w", err)
	}
	return nil
}
