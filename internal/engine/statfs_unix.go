//go:build unix

package engine

import (
	"golang.org/x/sys/unix"

	"github.com/objectfs/storenode/pkg/errors"
)

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding dir.
func FreeSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, errors.IO(errors.ErrCodeIORead, err, "statfs '%s' failed", dir)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
