package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var errIsDirectory = errors.New("is a directory")

// CheckFilePath verifies that an embedded engine can create or open the file
// at path. In-memory and URI-style names are passed through untouched.
func CheckFilePath(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return &IoError{Op: "open", Path: path, Err: errIsDirectory}
		}
		return nil
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return &IoError{Op: "open", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &IoError{Op: "open", Path: path, Err: &os.PathError{Op: "stat", Path: dir, Err: errors.New("not a directory")}}
	}
	return nil
}
