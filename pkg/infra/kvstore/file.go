package kvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// File stores every key as one file under dir. The directory is created on the first Set.
type File struct {
	dir string
}

// NewFile creates a file-backed store rooted at dir
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Dir returns the directory holding the key files
func (s *File) Dir() string {
	return s.dir
}

func (s *File) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", goerr.New("invalid storage key", goerr.V("key", key))
	}
	return filepath.Join(s.dir, key), nil
}

// Get reads the value stored under key
func (s *File) Get(ctx context.Context, key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, goerr.Wrap(err, "failed to read storage key", goerr.V("path", path))
	}
	return string(data), true, nil
}

// Set writes value to a temporary file next to the key file and renames it into place,
// so readers see either the old or the new value.
func (s *File) Set(ctx context.Context, key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", s.dir))
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("dir", s.dir))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to write temporary file", goerr.V("path", tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to sync temporary file", goerr.V("path", tmpPath))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to replace storage key", goerr.V("path", path))
	}
	return nil
}
