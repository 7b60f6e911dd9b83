//go:build linux

package agc

import "golang.org/x/sys/unix"

// MADV_POPULATE_READ was added in Linux 5.14.
// On older kernels, madvise returns EINVAL which we ignore.
const madvPopulateRead = 22

// prefaultRegion asks the kernel to prefault the mapped archive for
// reading, so the first queries do not stall on page faults.
// Best-effort: errors are silently ignored.
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := unix.Madvise(data, madvPopulateRead); err != nil {
		// Older kernel: fall back to an access hint.
		_ = unix.Madvise(data, unix.MADV_WILLNEED)
	}
}
