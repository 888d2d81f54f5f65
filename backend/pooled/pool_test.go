package pooled

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/arrowmem/internal/metrics"
	"github.com/23skdu/arrowmem/rounding"
)

func TestPool_BucketReuse(t *testing.T) {
	p := NewPool(1 << 20)

	m1, err := p.Create(1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, len(m1.Bytes()))
	assert.Equal(t, 1024, cap(m1.Bytes()))
	assert.Equal(t, int64(1), p.ActiveCount())

	m1.Bytes()[0] = 0xff
	m1.Release()
	assert.Equal(t, int64(0), p.ActiveCount())
	assert.Equal(t, int64(1), p.PooledCount())

	m2, err := p.Create(1024)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.PooledCount())
	assert.Equal(t, byte(0), m2.Bytes()[0], "reused regions must be zeroed")
	m2.Release()
}

func TestPool_DoubleReleaseIgnored(t *testing.T) {
	p := NewPool(1 << 20)
	m, err := p.Create(64)
	require.NoError(t, err)
	m.Release()
	m.Release()
	assert.Equal(t, int64(1), p.PooledCount())
	assert.Equal(t, int64(0), p.ActiveCount())
}

func TestPool_HugeUnpooled(t *testing.T) {
	p := NewPool(1 << 16)

	m, err := p.Create(1 << 16)
	require.NoError(t, err)
	assert.Equal(t, 1<<16, len(m.Bytes()))
	assert.Equal(t, int64(0), p.ActiveCount())
	m.Release()
	assert.Equal(t, int64(0), p.PooledCount())
}

func TestPool_ZeroSize(t *testing.T) {
	p := NewPool(1 << 16)
	m, err := p.Create(0)
	require.NoError(t, err)
	assert.Equal(t, 0, len(m.Bytes()))
	m.Release()

	_, err = p.Create(-1)
	assert.Error(t, err)
}

func TestPool_MaxPooledLimit(t *testing.T) {
	p := NewPool(1 << 16)
	b := p.buckets[10]
	b.maxPooled = 4

	var regions []interface{ Release() }
	for i := 0; i < 10; i++ {
		m, err := p.Create(1024)
		require.NoError(t, err)
		regions = append(regions, m)
	}
	for _, m := range regions {
		m.Release()
	}
	assert.LessOrEqual(t, p.PooledCount(), int64(4))
	assert.Equal(t, int64(0), p.ActiveCount())
}

func TestPool_Trim(t *testing.T) {
	p := NewPool(1 << 20)
	size := 128 * 1024
	b := p.buckets[17]
	require.Equal(t, size, b.size)
	b.maxPooled = 8

	var regions []interface{ Release() }
	for i := 0; i < 8; i++ {
		m, err := p.Create(size)
		require.NoError(t, err)
		regions = append(regions, m)
	}
	for _, m := range regions {
		m.Release()
	}
	require.Equal(t, int64(8), p.PooledCount())

	released := p.Trim()
	assert.LessOrEqual(t, released, 4)
	assert.LessOrEqual(t, p.PooledCount(), int64(8)-int64(released))
}

func TestSettings_ChunkSize(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		want    int64
		wantErr bool
	}{
		{"defaults", Settings{PageSize: 8192, MaxOrder: 11}, 16 << 20, false},
		{"small chunk", Settings{PageSize: 4096, MaxOrder: 0}, 4096, false},
		{"page not power of two", Settings{PageSize: 5000, MaxOrder: 11}, 0, true},
		{"page too small", Settings{PageSize: 1024, MaxOrder: 11}, 0, true},
		{"negative order", Settings{PageSize: 8192, MaxOrder: -1}, 0, true},
		{"order too large", Settings{PageSize: 8192, MaxOrder: 15}, 0, true},
		{"chunk too large", Settings{PageSize: 1 << 20, MaxOrder: 14}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.s.ChunkSize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("ARROW_POOLED_PAGE_SIZE", "4096")
	t.Setenv("ARROW_POOLED_MAX_ORDER", "3")
	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, Settings{PageSize: 4096, MaxOrder: 3}, s)

	t.Setenv("ARROW_POOLED_MAX_ORDER", "eleven")
	_, err = LoadSettings()
	assert.Error(t, err)
}

func TestRoundingPolicy_MatchesChunkSize(t *testing.T) {
	cs, err := ChunkSize()
	if err != nil {
		assert.Equal(t, rounding.Default, RoundingPolicy())
		return
	}
	assert.Equal(t, rounding.NewDefaultPolicy(cs), RoundingPolicy())
	assert.Equal(t, cs, ManagerFactory().ChunkSize())
}

func TestRoundingPolicyFor(t *testing.T) {
	policy := roundingPolicyFor(Settings{PageSize: 4096, MaxOrder: 2}.ChunkSize())
	assert.Equal(t, rounding.NewDefaultPolicy(16384), policy)
	assert.Equal(t, int64(16384), policy.RoundedSize(9000))
	assert.Equal(t, int64(20000), policy.RoundedSize(20000))
}

func TestRoundingPolicyFor_FallsBackOnInvalidSettings(t *testing.T) {
	for _, s := range []Settings{
		{PageSize: 5000, MaxOrder: 11},
		{PageSize: 8192, MaxOrder: 15},
		{PageSize: 1 << 20, MaxOrder: 14},
	} {
		cs, err := s.ChunkSize()
		require.Error(t, err)

		assert.Equal(t, rounding.Default, roundingPolicyFor(cs, err))
		assert.Equal(t, rounding.DefaultChunkSize, poolFor(cs, err).ChunkSize())
	}
}

func TestPoolFor(t *testing.T) {
	p := poolFor(Settings{PageSize: 8192, MaxOrder: 3}.ChunkSize())
	assert.Equal(t, int64(65536), p.ChunkSize())
}

func TestBucket_MissWhenPoolEmptied(t *testing.T) {
	p := NewPool(1 << 16)
	b := p.buckets[10]
	hits := metrics.PoolAllocationsTotal.WithLabelValues(b.label, "hit")
	before := testutil.ToFloat64(hits)

	// Idle count left over after the GC emptied the pool.
	atomic.StoreInt64(&b.pooledCount, b.maxPooled)

	m, err := p.Create(1024)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(hits))
	assert.Equal(t, int64(0), p.PooledCount())

	m.Release()
	assert.Equal(t, int64(1), p.PooledCount(), "release after a reset is pooled, not dropped")
}
