// Package environment loads configuration values from environment variables.
//
// Every helper takes the variable name and a default. Unset, empty, or
// unparseable values fall back to the default so that a typo in a tuning knob
// never prevents the process from starting.
package environment

import (
	"os"
	"strconv"
	"time"
)

// String returns the value of the named variable and whether it was set
// (even to the empty string).
func String(name string) (string, bool) {
	return os.LookupEnv(name)
}

// StringOr returns the named variable, or defaultValue if it is unset or empty.
func StringOr(name, defaultValue string) string {
	return parseOr(name, defaultValue, func(s string) (string, error) { return s, nil })
}

// BoolOr parses the named variable with strconv.ParseBool.
func BoolOr(name string, defaultValue bool) bool {
	return parseOr(name, defaultValue, strconv.ParseBool)
}

// IntOr parses the named variable as a decimal integer.
func IntOr(name string, defaultValue int) int {
	return parseOr(name, defaultValue, strconv.Atoi)
}

// FloatOr parses the named variable as a float64 (e.g. a score threshold).
func FloatOr(name string, defaultValue float64) float64 {
	return parseOr(name, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// DurationOr parses the named variable as a time.Duration ("30s", "5m").
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	return parseOr(name, defaultValue, time.ParseDuration)
}

func parseOr[T any](name string, defaultValue T, parse func(string) (T, error)) T {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}
