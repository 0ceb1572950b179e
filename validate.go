package ridb

import (
	"strconv"
	"unicode/utf8"
)

// ValidateDocument checks doc against the schema's declared
// constraints and returns the document with the defaults declared on
// top-level properties applied to missing fields; defaults declared on
// properties of nested objects are not applied. Validation is total:
// the document either
// satisfies every declared constraint or a *ValidationError is
// returned describing the first violation found.
func (s *Schema) ValidateDocument(doc map[string]any) (map[string]any, error) {
	out := applyDefaults(doc, s.properties)
	if err := validateObject(out, s.properties, s.required, s.strict, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func applyDefaults(doc map[string]any, props map[string]*Property) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for name, prop := range props {
		if _, present := out[name]; !present && prop.Default != nil {
			out[name] = prop.Default
		}
	}
	return out
}

func validateObject(object map[string]any, props map[string]*Property, required map[string]bool, strict bool, path string) error {
	var missing []string
	for name := range required {
		if _, ok := object[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return newValidationError(joinPath(path, missing[0]), "missing_required_property",
			"Required property {property} is missing",
			map[string]any{"property": missing[0]})
	}

	if strict {
		for name := range object {
			if _, declared := props[name]; !declared {
				return newValidationError(joinPath(path, name), "unknown_property",
					"Property {property} is not declared in the schema",
					map[string]any{"property": name})
			}
		}
	}

	for name, prop := range props {
		value, present := object[name]
		if !present {
			continue
		}
		if err := validateValue(value, prop, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(value any, prop *Property, path string) error {
	if value == nil {
		return newValidationError(path, "null_value",
			"Property {property} must not be null", map[string]any{"property": path})
	}

	switch prop.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return typeMismatch(path, prop.Type, value)
		}
		length := utf8.RuneCountInString(str)
		if prop.MaxLength != nil && length > *prop.MaxLength {
			return newValidationError(path, "string_too_long",
				"Property {property} must be at most {max} characters",
				map[string]any{"property": path, "max": strconv.Itoa(*prop.MaxLength)})
		}
		if prop.MinLength != nil && length < *prop.MinLength {
			return newValidationError(path, "string_too_short",
				"Property {property} must be at least {min} characters",
				map[string]any{"property": path, "min": strconv.Itoa(*prop.MinLength)})
		}
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return typeMismatch(path, prop.Type, value)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, prop.Type, value)
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return typeMismatch(path, prop.Type, value)
		}
		required := make(map[string]bool, len(prop.Required))
		for _, name := range prop.Required {
			required[name] = true
		}
		if err := validateObject(obj, prop.Properties, required, prop.Properties != nil, path); err != nil {
			return err
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return typeMismatch(path, prop.Type, value)
		}
		if prop.Items != nil {
			for i, item := range arr {
				if err := validateValue(item, prop.Items, path+"."+strconv.Itoa(i)); err != nil {
					return err
				}
			}
		}
	default:
		return newValidationError(path, "unknown_type",
			"Property {property} declares an unsupported type {type}",
			map[string]any{"property": path, "type": string(prop.Type)})
	}
	return nil
}

func typeMismatch(path string, expected PropertyType, got any) error {
	return newValidationError(path, "type_mismatch",
		"Property {property} must be of type {expected} but got {received}",
		map[string]any{"property": path, "expected": string(expected), "received": goType(got)})
}

func goType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
