//go:build !linux && !darwin && !windows

package pooled

func releaseRegion([]byte) error { return nil }
