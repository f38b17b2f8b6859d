package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// profilePrefix names the temporary user-data directories.
const profilePrefix = "htmlshot"

// removeAttempts and removeDelay bound how long profile removal waits for
// the browser to release its files.
var (
	removeAttempts = 5
	removeDelay    = 200 * time.Millisecond
)

// profileName returns <prefix>_<YYYYmmdd_HHMMSS>_<8 random chars>.
func profileName(prefix string, now time.Time) string {
	random := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s", prefix, now.Format("20060102_150405"), random)
}

// createProfileDir creates a fresh profile directory under base
// (os.TempDir() when empty).
func createProfileDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0750); err != nil {
		return "", fmt.Errorf("failed to create profile base directory: %w", err)
	}

	dir := filepath.Join(base, profileName(profilePrefix, time.Now()))
	if err := os.Mkdir(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}
	return dir, nil
}

// removeProfileDir deletes dir, retrying while files are still held open.
func removeProfileDir(dir string) error {
	var err error
	for i := 0; i < removeAttempts; i++ {
		if err = os.RemoveAll(dir); err == nil {
			return nil
		}
		time.Sleep(removeDelay)
	}
	return fmt.Errorf("failed to remove profile directory %s: %w", dir, err)
}
