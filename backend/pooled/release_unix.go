//go:build linux || darwin

package pooled

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// releaseRegion hints the OS that the pages backing b can be reclaimed using
// madvise(MADV_DONTNEED). The slice stays valid; touching it faults in zeroed pages.
func releaseRegion(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	if err := unix.Madvise(b[:cap(b)], unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("madvise(MADV_DONTNEED) failed: %w", err)
	}
	return nil
}
