package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferNotFound indicates a buffer id is not open in the registry.
	ErrBufferNotFound = errors.New("buffer not found")
	// ErrBufferDirty indicates an operation would lose unsaved changes.
	ErrBufferDirty = errors.New("buffer has unsaved changes")
	// ErrNoBackingPath indicates a scratch buffer was saved without a path.
	ErrNoBackingPath = errors.New("buffer has no file; use save as")
	// ErrPathOpen indicates another buffer already holds the path.
	ErrPathOpen = errors.New("path is open in another buffer")
	// ErrInvalidPath indicates an empty or malformed path.
	ErrInvalidPath = errors.New("invalid path")
	// ErrEmptyCommand indicates a blank command line was submitted.
	ErrEmptyCommand = errors.New("empty command")
	// ErrShellUnavailable indicates no usable shell interpreter was found.
	ErrShellUnavailable = errors.New("no shell available")
	// ErrDirectoryNotFound indicates a cd target does not exist or is not a directory.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrGuardClosed indicates a decision was given to a finished guard.
	ErrGuardClosed = errors.New("no pending decision")
	// ErrUnsavedOnExit indicates the session ended while buffers were dirty.
	ErrUnsavedOnExit = errors.New("exited with unsaved changes")
)

// IOError wraps a filesystem failure for a buffer operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e == nil {
		return "io error"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
