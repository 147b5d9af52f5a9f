package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolnotify/pkg/config"
)

type defaultsConfig struct {
	Name    string   `env:"CFG_TEST_NAME" envDefault:"notifyd"`
	Port    int      `env:"CFG_TEST_PORT" envDefault:"8080"`
	Enabled bool     `env:"CFG_TEST_ENABLED" envDefault:"true"`
	Tags    []string `env:"CFG_TEST_TAGS" envSeparator:","`
}

type overrideConfig struct {
	Name string `env:"CFG_TEST_OVERRIDE_NAME" envDefault:"default"`
	Port int    `env:"CFG_TEST_OVERRIDE_PORT" envDefault:"1"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED" envDefault:"first"`
}

type requiredConfig struct {
	Value string `env:"CFG_TEST_REQUIRED,required"`
}

type badIntConfig struct {
	Port int `env:"CFG_TEST_BAD_INT"`
}

type validatedConfig struct {
	Cap int `env:"CFG_TEST_CAP" envDefault:"5"`
}

func (c *validatedConfig) Validate() error {
	if c.Cap < 0 {
		return errors.New("cap must not be negative")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "notifyd", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Tags)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CFG_TEST_OVERRIDE_NAME", "worker")
	t.Setenv("CFG_TEST_OVERRIDE_PORT", "9090")

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "worker", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_CachesPerType(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	var first cachedConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Value)

	t.Setenv("CFG_TEST_CACHED", "second")

	var again cachedConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Value)

	config.Reset()
	var fresh cachedConfig
	require.NoError(t, config.Load(&fresh))
	assert.Equal(t, "second", fresh.Value)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("nil pointer", func(t *testing.T) {
		var cfg *defaultsConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("required variable missing", func(t *testing.T) {
		os.Unsetenv("CFG_TEST_REQUIRED")
		var cfg requiredConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("unparsable value", func(t *testing.T) {
		t.Setenv("CFG_TEST_BAD_INT", "eighty")
		var cfg badIntConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("validation failure is not cached", func(t *testing.T) {
		config.Reset()
		t.Cleanup(config.Reset)

		t.Setenv("CFG_TEST_CAP", "-1")
		var cfg validatedConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrInvalidConfig)

		t.Setenv("CFG_TEST_CAP", "3")
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 3, cfg.Cap)
	})
}

func TestMustLoad_Panics(t *testing.T) {
	os.Unsetenv("CFG_TEST_REQUIRED")
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CFG_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CFG_TEST_DOTENV") })

	config.LoadDotenv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("CFG_TEST_DOTENV"))
}
