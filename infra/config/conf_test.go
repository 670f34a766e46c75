package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PAYKIT_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("PAYKIT_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("PAYKIT_TEST_MISSING", "fallback"))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("PAYKIT_TEST_BOOL", "true")
	assert.True(t, GetBoolEnv("PAYKIT_TEST_BOOL", false))

	t.Setenv("PAYKIT_TEST_BOOL", "not-a-bool")
	assert.True(t, GetBoolEnv("PAYKIT_TEST_BOOL", true))

	assert.False(t, GetBoolEnv("PAYKIT_TEST_BOOL_MISSING", false))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("PAYKIT_TEST_INT", "42")
	assert.Equal(t, 42, GetIntEnv("PAYKIT_TEST_INT", 7))
	assert.Equal(t, 7, GetIntEnv("PAYKIT_TEST_INT_MISSING", 7))
}

func TestLoadBackendOptions(t *testing.T) {
	content := `dummy:
  origin: shop
  direct: true
paybox:
  site: "1999888"
  rang: 32
`
	path := filepath.Join(t.TempDir(), "backends.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	options, err := LoadBackendOptions(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", options["dummy"]["origin"])
	assert.Equal(t, "true", options["dummy"]["direct"])
	assert.Equal(t, "1999888", options["paybox"]["site"])
	assert.Equal(t, "32", options["paybox"]["rang"])
}

func TestLoadBackendOptions_MissingFile(t *testing.T) {
	_, err := LoadBackendOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseBackendSettings_SkipsScalars(t *testing.T) {
	options := parseBackendSettings(map[string]any{
		"dummy":  map[string]any{"origin": "shop", "count": 3, "rate": 1.5},
		"rogue":  "not a map",
		"number": 12,
	})
	assert.Equal(t, map[string]string{"origin": "shop", "count": "3", "rate": "1.5"}, options["dummy"])
	assert.NotContains(t, options, "rogue")
	assert.NotContains(t, options, "number")
}
