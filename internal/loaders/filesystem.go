// Package loaders moves frames and control records in and out of the data
// lake: CSV writers with an append contract, and atomic JSON/text writers
// for checkpoint, breaker and manifest files.
package loaders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteText writes text to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial file. Parent
// directories are created as needed.
func AtomicWriteText(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// AtomicWriteJSON marshals obj with indentation and writes it atomically.
func AtomicWriteJSON(path string, obj any) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return AtomicWriteText(path, string(data))
}

// ReadJSON decodes path into out. The caller decides how to treat a missing
// or corrupt file; both are surfaced as errors here.
func ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
