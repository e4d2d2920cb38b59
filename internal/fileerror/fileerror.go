// Package fileerror classifies file-system errors into a small fixed
// taxonomy so that callers can react to specific conditions (most notably
// "no such file", which the tile cache treats as a request to download).
package fileerror

import (
	"errors"
	"fmt"
	"syscall"
)

type Kind int

const (
	Exist Kind = iota
	IsDir
	Acces
	NameTooLong
	NoEnt
	NotDir
	Again
	Intr
	Perm
	MFile
	Other
)

// Error wraps an underlying OS error with its classified kind and the path
// that produced it.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a classified "no such file" error.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == NoEnt
}

func kindFromErrno(errno syscall.Errno) Kind {
	switch errno {
	case syscall.EEXIST:
		return Exist
	case syscall.EISDIR:
		return IsDir
	case syscall.EACCES:
		return Acces
	case syscall.ENAMETOOLONG:
		return NameTooLong
	case syscall.ENOENT:
		return NoEnt
	case syscall.ENOTDIR:
		return NotDir
	case syscall.EAGAIN:
		return Again
	case syscall.EINTR:
		return Intr
	case syscall.EPERM:
		return Perm
	case syscall.EMFILE:
		return MFile
	default:
		return Other
	}
}

// Classify wraps err, typically from an os call, in an *Error carrying its
// taxonomy kind.
func Classify(path string, err error) *Error {
	kind := Other

	var errno syscall.Errno
	if errors.As(err, &errno) {
		kind = kindFromErrno(errno)
	}

	return &Error{Kind: kind, Path: path, Err: err}
}
