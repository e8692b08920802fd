// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get returns the named variable's value, or fallback when it is unset or
// empty.
func Get(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}
