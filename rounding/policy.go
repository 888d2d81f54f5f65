// Package rounding normalizes requested allocation sizes into bucket-aligned
// sizes before a backend services them.
package rounding

import (
	"fmt"
	"math/bits"
)

// DefaultChunkSize is the pooled backend's default chunk size (16MB).
const DefaultChunkSize int64 = 16 * 1024 * 1024

// Policy maps a requested byte count to the byte count actually acquired.
// Implementations must be pure and safe for concurrent use.
type Policy interface {
	RoundedSize(requestSize int64) int64
}

// DefaultPolicy rounds requests below the chunk size up to the next power of
// two and passes larger requests through unchanged.
type DefaultPolicy struct {
	chunkSize int64
}

// Default is the policy used when a backend cannot report its own chunk size.
var Default = NewDefaultPolicy(DefaultChunkSize)

// NewDefaultPolicy returns a policy with the given chunk threshold.
func NewDefaultPolicy(chunkSize int64) DefaultPolicy {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("rounding: chunk size must be positive, got %d", chunkSize))
	}
	return DefaultPolicy{chunkSize: chunkSize}
}

// ChunkSize returns the threshold at and above which sizes are not rounded.
func (p DefaultPolicy) ChunkSize() int64 {
	return p.chunkSize
}

// RoundedSize implements Policy.
func (p DefaultPolicy) RoundedSize(requestSize int64) int64 {
	if requestSize < p.chunkSize {
		return NextPowerOfTwo(requestSize)
	}
	return requestSize
}

func (p DefaultPolicy) String() string {
	return fmt.Sprintf("DefaultPolicy(chunkSize=%d)", p.chunkSize)
}

// NextPowerOfTwo returns the smallest power of two >= n.
// Zero and negative inputs return 1.
func NextPowerOfTwo(n int64) int64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(uint64(n-1))
}

var _ Policy = DefaultPolicy{}
