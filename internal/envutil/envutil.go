package envutil

import "os"

// Lookup retrieves an environment variable with automatic COLLAB_ prefix
// fallback. It checks in this order:
// 1. Exact key as provided
// 2. Key with COLLAB_ prefix
//
// This supports both namespaced deployments (COLLAB_ prefixed) and local dev
// (unprefixed) configurations.
func Lookup(key string) (string, bool) {
	if value, exists := os.LookupEnv(key); exists {
		return value, true
	}

	if len(key) < 7 || key[:7] != "COLLAB_" {
		if value, exists := os.LookupEnv("COLLAB_" + key); exists {
			return value, true
		}
	}

	return "", false
}

// Get is like Lookup but returns fallback when the variable is unset
func Get(key, fallback string) string {
	if value, exists := Lookup(key); exists {
		return value
	}
	return fallback
}
