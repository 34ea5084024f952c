package reconcile

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
)

// writeFileIfChanged writes content to path with the given mode, creating
// parent directories as needed. It reports whether the file content changed.
// The mode is enforced even when the content is already up to date.
func writeFileIfChanged(path string, content []byte, mode fs.FileMode) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		if err := os.Chmod(path, mode); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return false, err
	}
	// WriteFile does not change the mode of a pre-existing file.
	if err := os.Chmod(path, mode); err != nil {
		return true, err
	}
	return true, nil
}
