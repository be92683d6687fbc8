//go:build !windows

package tools

import (
	"os"
	"syscall"
)

// openNoFollow opens path for writing, refusing to follow a final symlink.
func (w *Workspace) openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		return nil, err
	}
	return w.checkOpened(f, path)
}
