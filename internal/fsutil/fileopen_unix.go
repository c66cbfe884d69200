//go:build !windows

package fsutil

import (
	stderrors "errors"
	"os"
	"syscall"
)

// ErrSymlink is returned when the final path component is a symlink.
var ErrSymlink = stderrors.New("refusing to follow symlink")

// OpenNoFollow opens a file with O_NOFOLLOW so a symlink planted in a store
// directory is never followed. O_CLOEXEC prevents FD leaks across exec.
// O_NOFOLLOW only protects the final component; identifiers cannot contain
// separators, so every store file sits directly in its directory.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// OpenNoFollowRead opens path read-only with the same protection.
func OpenNoFollowRead(path string) (*os.File, error) {
	return OpenNoFollow(path, syscall.O_RDONLY, 0)
}
