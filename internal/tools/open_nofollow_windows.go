//go:build windows

package tools

import "os"

// openNoFollow opens path for writing. Windows has no O_NOFOLLOW, so only the
// post-open check guards against symlink swaps.
func (w *Workspace) openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return w.checkOpened(f, path)
}
