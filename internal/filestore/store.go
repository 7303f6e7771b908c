package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Store implements core.Filesystem on the local disk.
type Store struct {
	log pslog.Logger
}

// New constructs a local filesystem store.
func New() *Store {
	return NewWithLogger(nil)
}

// NewWithLogger constructs a local filesystem store with logging.
func NewWithLogger(logger pslog.Logger) *Store {
	return &Store{log: logger}
}

// ReadFile returns the file content.
func (s *Store) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		s.warn("file read failed", path, err)
		return nil, err
	}
	if info.IsDir() {
		err := errors.New("is a directory")
		s.warn("file read failed", path, err)
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.warn("file read failed", path, err)
		return nil, err
	}
	s.trace("file read ok", path, len(data))
	return data, nil
}

// WriteFile replaces the file atomically. Existing permissions are kept.
func (s *Store) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		s.warn("file write failed", path, err)
		return err
	}
	mode := os.FileMode(defaultFileMode)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			err := errors.New("is a directory")
			s.warn("file write failed", path, err)
			return err
		}
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		s.warn("file write failed", path, err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("file write failed", path, err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("file write failed", path, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("file write failed", path, err)
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("file write failed", path, err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("file write failed", path, err)
		return err
	}
	s.trace("file write ok", path, len(data))
	return nil
}

// CreateFile creates an empty file. It fails when the path exists.
func (s *Store) CreateFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		s.warn("file create failed", path, err)
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, defaultFileMode)
	if err != nil {
		s.warn("file create failed", path, err)
		return err
	}
	return file.Close()
}

// CreateDirectory creates a directory and any missing parents.
func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(path, defaultDirMode); err != nil {
		s.warn("directory create failed", path, err)
		return err
	}
	return nil
}

// Delete removes a file or a directory tree. A missing path is an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) || clean == "." {
		err := schema.ErrInvalidPath
		s.warn("delete rejected", path, err)
		return err
	}
	if _, err := os.Lstat(clean); err != nil {
		s.warn("delete failed", path, err)
		return err
	}
	if err := os.RemoveAll(clean); err != nil {
		s.warn("delete failed", path, err)
		return err
	}
	return nil
}

// ListChildren lists a directory: directories first, then files, each by name.
// Dot entries are included.
func (s *Store) ListChildren(ctx context.Context, path string) ([]schema.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		s.warn("directory list failed", path, err)
		return nil, err
	}
	out := make([]schema.Entry, 0, len(entries))
	for _, entry := range entries {
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(path, entry.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		out = append(out, schema.Entry{
			Name:  entry.Name(),
			Path:  filepath.Join(path, entry.Name()),
			IsDir: isDir,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) warn(msg, path string, err error) {
	if s.log != nil {
		s.log.Warn(msg, "path", path, "err", err)
	}
}

func (s *Store) trace(msg, path string, size int) {
	if s.log != nil {
		s.log.Trace(msg, "path", path, "bytes", size)
	}
}
