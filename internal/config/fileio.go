package config

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so a reader (including the file watcher) never
// observes a partially written document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best effort cleanup if rename fails below

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
