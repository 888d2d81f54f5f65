package pooled

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/logging"
	"github.com/23skdu/arrowmem/rounding"
)

const (
	minPageSize = 4096
	maxOrder    = 14
	// maxChunkSize is the largest chunk the pool will manage (1GB).
	maxChunkSize = 1 << 30
)

// Settings shape the pool's chunk: ChunkSize = PageSize << MaxOrder.
type Settings struct {
	PageSize int `envconfig:"ARROW_POOLED_PAGE_SIZE" default:"8192"`
	MaxOrder int `envconfig:"ARROW_POOLED_MAX_ORDER" default:"11"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, errors.WrapConfigurationError(err, "load_pooled_settings", "invalid pooled backend settings")
	}
	return s, nil
}

// ChunkSize validates the settings and returns the chunk size they describe.
func (s Settings) ChunkSize() (int64, error) {
	if s.PageSize < minPageSize || bits.OnesCount(uint(s.PageSize)) != 1 {
		return 0, errors.NewConfigurationError("chunk_size",
			fmt.Sprintf("page size %d must be a power of two >= %d", s.PageSize, minPageSize)).
			WithContext("page_size", s.PageSize)
	}
	if s.MaxOrder < 0 || s.MaxOrder > maxOrder {
		return 0, errors.NewConfigurationError("chunk_size",
			fmt.Sprintf("max order %d must be in [0, %d]", s.MaxOrder, maxOrder)).
			WithContext("max_order", s.MaxOrder)
	}
	chunk := int64(s.PageSize) << s.MaxOrder
	if chunk > maxChunkSize {
		return 0, errors.NewConfigurationError("chunk_size",
			fmt.Sprintf("page size %d << max order %d exceeds %d", s.PageSize, s.MaxOrder, maxChunkSize))
	}
	return chunk, nil
}

var chunkSize = sync.OnceValues(func() (int64, error) {
	s, err := LoadSettings()
	if err != nil {
		return 0, err
	}
	return s.ChunkSize()
})

// ChunkSize reports the chunk size of the process-wide pool. It is read from
// the environment once.
func ChunkSize() (int64, error) {
	return chunkSize()
}

// RoundingPolicy is the pooled backend's default policy: chunk-sized rounding
// at ChunkSize, or rounding.Default when the chunk size cannot be determined.
var RoundingPolicy = sync.OnceValue(func() rounding.Policy {
	return roundingPolicyFor(ChunkSize())
})

func roundingPolicyFor(chunk int64, err error) rounding.Policy {
	if err != nil {
		logger := logging.Default()
		logger.Debug().Err(err).Msg("pooled chunk size unavailable, using default rounding policy")
		return rounding.Default
	}
	return rounding.NewDefaultPolicy(chunk)
}
