package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Has reports whether the variable is set to a non-blank value.
func Has(key string) bool {
	return strings.TrimSpace(os.Getenv(key)) != ""
}
