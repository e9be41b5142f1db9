package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/aurora/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOverridesOnlyGivenOptions(t *testing.T) {
	path := writeConfig(t, `
app_name = "demo"

[renderer]
frames_in_flight = 2
debug_checks = true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.AppName)
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	assert.True(t, cfg.Renderer.DebugChecks)
	// Untouched options keep their defaults.
	assert.Equal(t, config.Default().Renderer.DefaultStagingBufferSize, cfg.Renderer.DefaultStagingBufferSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, contents := range map[string]string{
		"zero frames":           "[renderer]\nframes_in_flight = 0\n",
		"non power-2 alignment": "[renderer]\nstaging_alignment = 6\n",
		"zero max sets":         "[renderer]\nmax_descriptor_sets = 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}
