//go:build linux

package agc

import "golang.org/x/sys/unix"

// fadviseSequential hints to the kernel that the archive will be read
// front to back, as whole-collection extraction does.
// Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}

// fadviseRandom hints that access will hop between segments, the usual
// pattern for single-contig queries.
func fadviseRandom(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_RANDOM)
}
