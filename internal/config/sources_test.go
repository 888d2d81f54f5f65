package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arrowerrors "github.com/23skdu/arrowmem/internal/errors"
)

const (
	testProp = "arrow.allocator.type"
	testEnv  = "ARROW_ALLOCATOR_TYPE"
)

func TestLookup_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		props     MapSource
		env       MapSource
		want      string
		wantFound bool
	}{
		{"property wins over env", MapSource{testProp: "Unsafe"}, MapSource{testEnv: "Netty"}, "Unsafe", true},
		{"env only", nil, MapSource{testEnv: "Unsafe"}, "Unsafe", true},
		{"property only", MapSource{testProp: "Netty"}, nil, "Netty", true},
		{"neither", MapSource{}, MapSource{}, "", false},
		{"empty property falls through to env", MapSource{testProp: ""}, MapSource{testEnv: "Unsafe"}, "Unsafe", true},
		{"empty env is still present", nil, MapSource{testEnv: ""}, "", true},
		{"empty property and no env is a present blank", MapSource{testProp: ""}, nil, "", true},
		{"empty property and empty env", MapSource{testProp: ""}, MapSource{testEnv: ""}, "", true},
		{"unrelated keys ignored", MapSource{"other": "Unsafe"}, MapSource{"OTHER": "Unsafe"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Sources{}
			if tt.props != nil {
				src.Properties = tt.props
			}
			if tt.env != nil {
				src.Env = tt.env
			}
			got, found := Lookup(src, testProp, testEnv)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestEnvironment_Lookup(t *testing.T) {
	t.Setenv(testEnv, "Unsafe")
	v, ok := Environment{}.Lookup(testEnv)
	assert.True(t, ok)
	assert.Equal(t, "Unsafe", v)

	got, found := Lookup(Sources{Properties: NewProperties(), Env: Environment{}}, testProp, testEnv)
	assert.True(t, found)
	assert.Equal(t, "Unsafe", got)
}

func TestProperties_SetClear(t *testing.T) {
	p := NewProperties()
	_, ok := p.Lookup(testProp)
	assert.False(t, ok)

	p.Set(testProp, "Unsafe")
	v, ok := p.Lookup(testProp)
	assert.True(t, ok)
	assert.Equal(t, "Unsafe", v)
	assert.Equal(t, []string{testProp}, p.Keys())

	p.Clear(testProp)
	_, ok = p.Lookup(testProp)
	assert.False(t, ok)
}

func TestProperties_Concurrent(t *testing.T) {
	p := NewProperties()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Set(testProp, "Netty")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = Lookup(Sources{Properties: p}, testProp, testEnv)
			}
		}()
	}
	wg.Wait()
}

func TestLoadProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arrow.properties")
	content := "# allocator selection\narrow.allocator.type=Unsafe\narrow.allocation.manager.type=Netty\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadProperties(path)
	require.NoError(t, err)

	v, ok := p.Lookup("arrow.allocator.type")
	assert.True(t, ok)
	assert.Equal(t, "Unsafe", v)

	v, ok = p.Lookup("arrow.allocation.manager.type")
	assert.True(t, ok)
	assert.Equal(t, "Netty", v)
}

func TestLoadProperties_MissingFile(t *testing.T) {
	_, err := LoadProperties(filepath.Join(t.TempDir(), "missing.properties"))
	require.Error(t, err)

	var se *arrowerrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, arrowerrors.ErrorTypeConfiguration, se.Type)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("ARROW_PROPERTIES_FILE", "/etc/arrow.properties")
	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "/etc/arrow.properties", s.PropertiesFile)
}

func TestSystemProperties_Singleton(t *testing.T) {
	assert.Same(t, SystemProperties(), SystemProperties())
}
