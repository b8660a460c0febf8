// Package statedir resolves the directory used for logs and the crash
// recovery snapshots in internal/hostnet, adapted from the teacher's
// CacheDir helper to additionally honor an explicit override.
package statedir

import (
	"os"
	"path/filepath"
)

const dirName = "wsvpn"

// Resolve returns override if non-empty, otherwise the platform user cache
// directory joined with dirName. The directory is created if it does not
// exist.
func Resolve(override string) (string, error) {
	dir := override
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(userCacheDir, dirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
