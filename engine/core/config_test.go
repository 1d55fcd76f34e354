package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Application, cfg.Application)
	assert.Equal(t, "mailbox", cfg.Renderer.PresentMode)
}

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[application]
name = "test"
width = 1024

[renderer]
present_mode = "fifo"
clear_color = [0.1, 0.2, 0.3, 1.0]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Application.Name)
	assert.Equal(t, uint32(1024), cfg.Application.Width)
	assert.Equal(t, uint32(600), cfg.Application.Height)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, uint64(5000), cfg.Renderer.FenceTimeoutMS)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\npresent_mode = \"vsync-ish\"\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "present mode")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"VOXEL_WIDTH":      "320",
		"VOXEL_VALIDATION": "true",
		"VOXEL_LOG_LEVEL":  "debug",
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, uint32(320), cfg.Application.Width)
	assert.True(t, cfg.Renderer.Validation)
	assert.Equal(t, "debug", cfg.Log.Level)

	env["VOXEL_HEIGHT"] = "tall"
	require.Error(t, cfg.applyEnv(func(k string) string { return env[k] }))
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLogLevel("chatty")
	require.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	err := errors.Wrap(ErrSwapchainOutOfDate, "acquire")
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsResourceExhausted(err))

	err = errors.Wrap(ErrPoolExhausted, "allocate")
	assert.True(t, IsResourceExhausted(err))
	assert.False(t, IsRecoverable(err))

	assert.True(t, IsPreconditionViolation(errors.AssertionFailedf("frame already started")))
}
