package ridb

import (
	"fmt"

	json "github.com/goccy/go-json"
	yaml "github.com/goccy/go-yaml"
)

// SchemaSet is a named collection of RawSchema documents, as loaded
// from a single YAML or JSON file declaring every collection a
// database will open.
type SchemaSet map[string]RawSchema

// NewSchemaSet validates every entry of raw and returns the resulting
// collection-name-to-Schema map, or the first *ValidationError
// encountered.
func NewSchemaSet(raw SchemaSet, opts ...SchemaOption) (map[string]*Schema, error) {
	out := make(map[string]*Schema, len(raw))
	for name, rawSchema := range raw {
		schema, err := NewSchema(rawSchema, opts...)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
		out[name] = schema
	}
	return out, nil
}

// LoadSchemaSetYAML parses a YAML document mapping collection name to
// schema and validates every entry.
func LoadSchemaSetYAML(data []byte, opts ...SchemaOption) (map[string]*Schema, error) {
	var raw SchemaSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse schema set: %s", ErrValidation, err)
	}
	return NewSchemaSet(raw, opts...)
}

// LoadSchemaSetJSON parses a JSON document mapping collection name to
// schema and validates every entry.
func LoadSchemaSetJSON(data []byte, opts ...SchemaOption) (map[string]*Schema, error) {
	var raw SchemaSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse schema set: %s", ErrValidation, err)
	}
	return NewSchemaSet(raw, opts...)
}
