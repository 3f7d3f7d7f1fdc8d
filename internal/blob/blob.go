// Package blob holds file content bytes for the namespace services. Every
// backend implements services.BlobStore and keys content by the storage key
// recorded on a file version.
package blob

import (
	"fmt"
	"strings"
)

// checkKey rejects keys that could escape a backend's namespace
func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("blob key is empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("blob key %q must be relative", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("blob key %q has an invalid segment", key)
		}
	}
	return nil
}

func sizeMismatch(key string, want, got int64) error {
	return fmt.Errorf("blob %s: size mismatch: expected %d bytes, got %d", key, want, got)
}
