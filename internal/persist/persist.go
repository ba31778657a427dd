// Package persist implements atomic JSON read/write of per-profile records
// (§4.5). It provides one free function per operation — save/load — rather
// than per-type dispatch, so the type's identity determines its location
// only through DataPathFor (spec.md §9, "Dynamic dispatch on persistable
// types").
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Load when the target file does not exist,
// distinct from a deserialisation failure (§4.5).
var ErrNotFound = errors.New("persist: file not found")

// Save atomically writes v as JSON to path: write to a temp file in the same
// directory, then rename over the destination. Parent directories are
// created if missing.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("persist: creating parent dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshaling %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: creating temp file for %s: %w", path, err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("persist: writing temp file for %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("persist: closing temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("persist: renaming temp file to %s: %w", path, err)
	}

	return nil
}

// Load reads and unmarshals the JSON file at path into v. Returns
// ErrNotFound (wrapped) if the file does not exist.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return fmt.Errorf("persist: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("persist: deserialising %s: %w", path, err)
	}

	return nil
}

// Exists reports whether a file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// loadRaw reads path's bytes verbatim, wrapping a missing file as
// ErrNotFound. Used for single-scalar files that aren't JSON documents.
func loadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("persist: reading %s: %w", path, err)
	}

	return data, nil
}

// saveRaw atomically writes data verbatim to path, same write-then-rename
// discipline as Save.
func saveRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("persist: creating parent dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: creating temp file for %s: %w", path, err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("persist: writing temp file for %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("persist: closing temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("persist: renaming temp file to %s: %w", path, err)
	}

	return nil
}
