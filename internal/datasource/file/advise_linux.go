//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential asks the kernel to read ahead aggressively. Errors are
// ignored; the hints only affect page-cache behavior.
func adviseSequential(f *os.File, size int64) {
	fd := int(f.Fd())
	_ = unix.Fadvise(fd, 0, size, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(fd, 0, size, unix.FADV_WILLNEED)
}
