package ridb

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonpointer"
)

// PropertyType enumerates the scalar and structural types a Property
// may declare.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
	TypeObject  PropertyType = "object"
	TypeArray   PropertyType = "array"
)

// Property describes the shape and constraints of a single schema
// field. Property trees nest arbitrarily: Items applies to arrays,
// Properties to nested objects.
type Property struct {
	Type       PropertyType         `json:"type"`
	MaxLength  *int                 `json:"maxLength,omitempty"`
	MinLength  *int                 `json:"minLength,omitempty"`
	Items      *Property            `json:"items,omitempty"`
	Properties map[string]*Property `json:"properties,omitempty"`
	Required   []string             `json:"required,omitempty"`
	Default    any                  `json:"default,omitempty"`
}

// RawSchema is the JSON-shaped schema document accepted by NewSchema,
// mirroring the wire format described by the spec's data model.
type RawSchema struct {
	Version    int                  `json:"version"`
	PrimaryKey string               `json:"primaryKey"`
	Type       PropertyType         `json:"type"`
	Properties map[string]*Property `json:"properties"`
	Required   []string             `json:"required,omitempty"`
	Encrypted  []string             `json:"encrypted,omitempty"`
	Indexes    []string             `json:"indexes,omitempty"`

	// StrictAdditionalProperties rejects document keys that are not
	// declared in Properties when true. Defaults to true (the spec's
	// resolution of the additionalProperties open question); set to
	// false via WithLenientAdditionalProperties.
	StrictAdditionalProperties *bool `json:"-"`
}

// Schema is an immutable, validated schema for one collection.
type Schema struct {
	version    int
	primaryKey string
	properties map[string]*Property
	required   map[string]bool
	encrypted  []string
	indexes    []string
	strict     bool
}

// SchemaOption configures a Schema at construction time.
type SchemaOption func(*RawSchema)

// WithLenientAdditionalProperties allows documents to carry keys not
// declared in the schema's properties, instead of rejecting them.
func WithLenientAdditionalProperties() SchemaOption {
	return func(r *RawSchema) {
		lenient := false
		r.StrictAdditionalProperties = &lenient
	}
}

// NewSchema validates a raw schema document and returns the resulting
// Schema, or a *ValidationError describing why construction failed.
func NewSchema(raw RawSchema, opts ...SchemaOption) (*Schema, error) {
	for _, opt := range opts {
		opt(&raw)
	}

	if raw.Type != TypeObject {
		return nil, newValidationError("", "root_type_not_object",
			"Schema root type must be {expected}", map[string]any{"expected": "object"})
	}
	if raw.PrimaryKey == "" {
		return nil, newValidationError("", "primary_key_missing",
			"Schema must declare a primaryKey", nil)
	}
	pkProp, ok := raw.Properties[raw.PrimaryKey]
	if !ok {
		return nil, newValidationError(raw.PrimaryKey, "primary_key_undeclared",
			"Primary key {property} is not declared in properties",
			map[string]any{"property": raw.PrimaryKey})
	}
	if pkProp.Type != TypeString {
		return nil, newValidationError(raw.PrimaryKey, "primary_key_not_string",
			"Primary key {property} must have type string",
			map[string]any{"property": raw.PrimaryKey})
	}

	for _, name := range raw.Required {
		if _, ok := raw.Properties[name]; !ok {
			return nil, newValidationError(name, "unknown_required_property",
				"Required property {property} is not declared",
				map[string]any{"property": name})
		}
	}
	for _, name := range raw.Encrypted {
		if _, ok := raw.Properties[name]; !ok {
			return nil, newValidationError(name, "unknown_encrypted_property",
				"Encrypted property {property} is not declared",
				map[string]any{"property": name})
		}
	}
	for _, name := range raw.Indexes {
		if _, ok := raw.Properties[name]; !ok {
			return nil, newValidationError(name, "unknown_indexed_property",
				"Indexed property {property} is not declared",
				map[string]any{"property": name})
		}
	}

	required := make(map[string]bool, len(raw.Required)+1)
	for _, name := range raw.Required {
		required[name] = true
	}
	required[raw.PrimaryKey] = true

	strict := true
	if raw.StrictAdditionalProperties != nil {
		strict = *raw.StrictAdditionalProperties
	}

	return &Schema{
		version:    raw.Version,
		primaryKey: raw.PrimaryKey,
		properties: raw.Properties,
		required:   required,
		encrypted:  append([]string(nil), raw.Encrypted...),
		indexes:    append([]string(nil), raw.Indexes...),
		strict:     strict,
	}, nil
}

// NewSchemaJSON parses and validates a schema from its JSON encoding.
func NewSchemaJSON(data []byte, opts ...SchemaOption) (*Schema, error) {
	var raw RawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return NewSchema(raw, opts...)
}

// Version returns the schema's declared version.
func (s *Schema) Version() int { return s.version }

// PrimaryKey returns the name of the primary-key property.
func (s *Schema) PrimaryKey() string { return s.primaryKey }

// EncryptedFields returns the property names selected for encryption.
func (s *Schema) EncryptedFields() []string { return s.encrypted }

// Indexes returns the property names marked for indexed lookup.
func (s *Schema) Indexes() []string { return s.indexes }

// Property resolves a dotted path ("address.city", "tags.0") through
// nested objects and array items, returning the leaf Property. The
// path is converted to JSON Pointer segments via jsonpointer.Parse, so
// a property name containing "/" or "~" must be passed pointer-escaped
// (~1 for "/", ~0 for "~"). Every "." is treated as a separator, so a
// property name containing "." cannot be resolved.
func (s *Schema) Property(path string) (*Property, bool) {
	if path == "" {
		return nil, false
	}
	tokens := jsonpointer.Parse("/" + strings.ReplaceAll(path, ".", "/"))
	props := s.properties
	var current *Property
	for _, tok := range tokens {
		if props == nil {
			if current != nil && current.Type == TypeArray {
				if _, err := strconv.Atoi(tok); err != nil {
					return nil, false
				}
				current = current.Items
				props = nil
				if current != nil {
					props = current.Properties
				}
				continue
			}
			return nil, false
		}
		prop, ok := props[tok]
		if !ok {
			return nil, false
		}
		current = prop
		props = prop.Properties
	}
	return current, true
}

// extractPrimaryKey returns the value of the primary-key field from a
// document, failing if it is missing or not a non-empty string.
func (s *Schema) extractPrimaryKey(doc map[string]any) (string, error) {
	raw, ok := doc[s.primaryKey]
	if !ok {
		return "", newValidationError(s.primaryKey, "primary_key_missing_on_document",
			"Document must contain primary key {property}",
			map[string]any{"property": s.primaryKey})
	}
	pk, ok := raw.(string)
	if !ok || pk == "" {
		return "", newValidationError(s.primaryKey, "primary_key_not_string",
			"Primary key {property} must be a non-empty string",
			map[string]any{"property": s.primaryKey})
	}
	return pk, nil
}
