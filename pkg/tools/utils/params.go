// Package utils reads typed values out of decoded tool arguments.
package utils

import (
	"fmt"
)

// param looks key up in args and asserts it to T. Absent and null values
// are the zero value unless required.
func param[T any](args map[string]any, key, kind string, required bool) (T, error) {
	var zero T

	val, exists := args[key]
	if !exists || val == nil {
		if required {
			return zero, fmt.Errorf("missing required parameter: '%s'", key)
		}
		return zero, nil
	}

	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("parameter '%s' must be a %s", key, kind)
	}

	return typed, nil
}

// GetStringParam extracts a string parameter from the arguments.
func GetStringParam(args map[string]any, key string, required bool) (string, error) {
	return param[string](args, key, "string", required)
}

func GetRequiredStringParam(args map[string]any, key string) (string, error) {
	return GetStringParam(args, key, true)
}

func GetOptionalStringParam(args map[string]any, key string) (string, error) {
	return GetStringParam(args, key, false)
}

// GetFloat64Param extracts a number. JSON numbers always decode as float64.
func GetFloat64Param(args map[string]any, key string, required bool) (float64, error) {
	return param[float64](args, key, "number", required)
}

func GetBoolParam(args map[string]any, key string, required bool) (bool, error) {
	return param[bool](args, key, "boolean", required)
}

// String returns the string stored under key, or "" when it is absent or
// not a string. Use it on arguments that already passed validation.
func String(args map[string]any, key string) string {
	str, _ := GetOptionalStringParam(args, key)
	return str
}
