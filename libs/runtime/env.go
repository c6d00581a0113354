package runtime

import "os"

// Getenv reads an environment variable, treating empty as unset.
func Getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
