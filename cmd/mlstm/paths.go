package main

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	envWeights     = "MLSTM_WEIGHTS"
	defaultWeights = "weights"
)

// resolveWeightsPath picks the weights location: flag, then config file,
// then $MLSTM_WEIGHTS, then ./weights.
func resolveWeightsPath(flag string, cfg Config) string {
	for _, p := range []string{flag, cfg.Weights, os.Getenv(envWeights)} {
		if p = strings.TrimSpace(p); p != "" {
			return filepath.Clean(expandHome(p))
		}
	}
	return defaultWeights
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// ensureParentDir creates the directory that will hold path.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
