package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/mlstm/internal/inference"
)

func TestResolveWeightsPath(t *testing.T) {
	t.Setenv(envWeights, "/env/weights")

	assert.Equal(t, "/flag/w", resolveWeightsPath(" /flag/w/ ", Config{Weights: "/cfg"}))
	assert.Equal(t, "/cfg", resolveWeightsPath("", Config{Weights: "/cfg"}))
	assert.Equal(t, "/env/weights", resolveWeightsPath("", Config{}))

	t.Setenv(envWeights, "")
	assert.Equal(t, defaultWeights, resolveWeightsPath("", Config{}))

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, "m.safetensors"), resolveWeightsPath("~/m.safetensors", Config{}))
	}
}

func TestEnsureParentDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "a", "b", "out.png")
	require.NoError(t, ensureParentDir(path))
	st, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	require.NoError(t, ensureParentDir("out.png"))
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights: /w\ntemperature: 0.7\nmax_concurrent: 3\nlog_format: json\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/w", cfg.Weights)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, 0.7, *cfg.Temperature)
	require.NotNil(t, cfg.MaxConcurrent)
	assert.EqualValues(t, 3, *cfg.MaxConcurrent)
	assert.Nil(t, cfg.Length)
	assert.Equal(t, "json", cfg.LogFormat)

	_, err = LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err, "an explicit config path must exist")

	require.NoError(t, os.WriteFile(path, []byte("weights: [unclosed"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestServeDefaults(t *testing.T) {
	t.Parallel()
	d, err := serveDefaults(Config{})
	require.NoError(t, err)
	assert.Equal(t, inference.DefaultDefaults(), d)

	length, temp, seed := int64(64), 0.9, int64(7)
	d, err = serveDefaults(Config{Length: &length, Temperature: &temp, Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, inference.Defaults{Length: 64, Temperature: 0.9, RNGSeed: 7}, d)

	bad := int64(-2)
	_, err = serveDefaults(Config{Length: &bad})
	require.Error(t, err)

	negTemp := -0.5
	_, err = serveDefaults(Config{Temperature: &negTemp})
	require.Error(t, err)
}
