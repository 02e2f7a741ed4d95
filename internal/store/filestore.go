// Package store persists session artifacts with collision-safe naming, so
// rapid start/stop cycles landing on the same timestamp never overwrite
// each other.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes artifacts under a base directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the base directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes data under suggestedName, appending _1, _2, ... before the
// extension when the name is taken. O_EXCL makes the claim atomic, so two
// concurrent saves of the same name get distinct files. Returns the path
// actually written.
func (s *FileStore) Save(data []byte, suggestedName string) (string, error) {
	if suggestedName == "" {
		return "", fmt.Errorf("suggested name cannot be empty")
	}
	if strings.ContainsRune(suggestedName, os.PathSeparator) {
		return "", fmt.Errorf("suggested name %q must not contain path separators", suggestedName)
	}

	ext := filepath.Ext(suggestedName)
	base := strings.TrimSuffix(suggestedName, ext)

	for counter := 0; ; counter++ {
		name := suggestedName
		if counter > 0 {
			name = fmt.Sprintf("%s_%d%s", base, counter, ext)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return path, nil
	}
}

// SaveText writes a UTF-8 text artifact.
func (s *FileStore) SaveText(text, suggestedName string) (string, error) {
	return s.Save([]byte(text), suggestedName)
}

// Adopt moves an already written file (such as a streamed temp recording)
// into the store under suggestedName, with the same collision policy.
func (s *FileStore) Adopt(srcPath, suggestedName string) (string, error) {
	if suggestedName == "" {
		return "", fmt.Errorf("suggested name cannot be empty")
	}

	ext := filepath.Ext(suggestedName)
	base := strings.TrimSuffix(suggestedName, ext)

	for counter := 0; ; counter++ {
		name := suggestedName
		if counter > 0 {
			name = fmt.Sprintf("%s_%d%s", base, counter, ext)
		}
		path := filepath.Join(s.dir, name)

		// Claim the name first, then replace the placeholder with the
		// source file.
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to claim %s: %w", path, err)
		}
		f.Close()

		if err := os.Rename(srcPath, path); err == nil {
			return path, nil
		}

		// Cross-device rename fails; fall back to a copy.
		data, readErr := os.ReadFile(srcPath)
		if readErr != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to adopt %s: %w", srcPath, readErr)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to copy into %s: %w", path, err)
		}
		os.Remove(srcPath)
		return path, nil
	}
}
