package envconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Timeout time.Duration `env:"TEST_TIMEOUT"`
}

type testConfig struct {
	Name    string `env:"TEST_NAME"`
	Enabled bool   `env:"TEST_ENABLED"`
	Port    int    `env:"TEST_PORT"`
	Nested  nested
	Untaged string
}

func TestLoadPopulatesTaggedFields(t *testing.T) {
	t.Setenv("TEST_NAME", "queuectl")
	t.Setenv("TEST_ENABLED", "true")
	t.Setenv("TEST_PORT", "8080")
	t.Setenv("TEST_TIMEOUT", "5s")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "queuectl", cfg.Name)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Nested.Timeout)
}

func TestLoadLeavesUnsetFieldsAtZeroValue(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Empty(t, cfg.Name)
	assert.False(t, cfg.Enabled)
}

func TestLoadRejectsNonPointer(t *testing.T) {
	err := Load(testConfig{})
	require.Error(t, err)
	assert.IsType(t, ErrNotStructPointer{}, err)
}

func TestLoadWrapsParseErrors(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")
	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	var invalid ErrInvalidValue
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "TEST_PORT", invalid.EnvVar)
}
