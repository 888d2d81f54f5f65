//go:build windows

package pooled

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// releaseRegion marks the pages backing b as discardable with MEM_RESET. The
// pages stay committed, so the region remains safe to touch after the runtime
// reuses it; their contents become undefined.
func releaseRegion(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	b = b[:cap(b)]
	if _, err := windows.VirtualAlloc(uintptr(unsafe.Pointer(&b[0])), uintptr(cap(b)), windows.MEM_RESET, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("VirtualAlloc(MEM_RESET) failed: %w", err)
	}
	return nil
}
