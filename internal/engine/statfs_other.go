//go:build !unix

package engine

import "github.com/objectfs/storenode/pkg/errors"

// FreeSpace is not available on this platform.
func FreeSpace(dir string) (uint64, error) {
	return 0, errors.Newf(errors.ErrCodeInternalError, "statfs '%s' not supported on this platform", dir)
}
