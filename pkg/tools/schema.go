package tools

import (
	"fmt"

	"github.com/oakmont/parcelscout/pkg/protocol"
)

// ValidateArguments checks an argument payload against a tool's JSON schema:
// required-field presence first, then declared types. The first violated field
// is named in the returned error; nothing is executed on invalid input.
func ValidateArguments(args map[string]interface{}, schema map[string]interface{}) error {
	required, _ := schema["required"].([]string)
	for _, field := range required {
		if _, exists := args[field]; !exists {
			return &protocol.FieldError{Field: field, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	for field, value := range args {
		propSchema, exists := properties[field]
		if !exists {
			// Extra fields pass through; handlers ignore what they don't know.
			continue
		}
		propMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}
		expectedType, _ := propMap["type"].(string)
		if expectedType == "" {
			continue
		}
		if !matchesType(value, expectedType) {
			return &protocol.FieldError{
				Field:   field,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
	}
	return nil
}

// matchesType reports whether a JSON-decoded value satisfies a schema type.
func matchesType(value interface{}, expectedType string) bool {
	if value == nil {
		return true
	}
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64; accept integral values.
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}

// StringArg extracts an optional string argument, returning fallback when the
// key is absent.
func StringArg(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

// IntArg extracts an optional integer argument, returning fallback when the
// key is absent.
func IntArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// FloatArg extracts an optional numeric argument, returning fallback when the
// key is absent.
func FloatArg(args map[string]interface{}, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// BoolArg extracts an optional boolean argument, returning fallback when the
// key is absent.
func BoolArg(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}
