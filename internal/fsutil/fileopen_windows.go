//go:build windows

package fsutil

import (
	stderrors "errors"
	"os"
)

// ErrSymlink is returned when the final path component is a symlink.
var ErrSymlink = stderrors.New("refusing to follow symlink")

// OpenNoFollow opens a file. O_NOFOLLOW is not available on Windows, so
// the path is checked with Lstat first.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return os.OpenFile(path, flag, perm)
}

// OpenNoFollowRead opens path read-only.
func OpenNoFollowRead(path string) (*os.File, error) {
	return OpenNoFollow(path, os.O_RDONLY, 0)
}
