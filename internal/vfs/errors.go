package vfs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotDir            = errors.New("not a directory")
	ErrIsDir             = errors.New("is a directory")
	ErrExists            = errors.New("file exists")
	ErrInvalid           = errors.New("invalid argument")
	ErrTooDeep           = errors.New("tree too deep")
	ErrUnknownPermission = errors.New("unknown permission kind")
)

// PathError records a failed operation on a path. Err is one of the
// sentinel errors above, so callers can test it with errors.Is.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: cannot access '%s': %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// QuotaExceededError is returned when a write, copy or Save would take the
// tree over quota.
type QuotaExceededError struct {
	Size  int64
	Quota int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("file system quota exceeded: %d bytes used, %d allowed", e.Size, e.Quota)
}

// IsQuotaExceeded reports whether err is a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
