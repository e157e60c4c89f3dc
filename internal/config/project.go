package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/openlyhq/openly/internal/logging"
)

// EnvProjectDir points at a project whose .openly/ overlay should be used.
const EnvProjectDir = "OPENLY_PROJECT_DIR"

// projectDirName is the project-local configuration directory.
const projectDirName = ".openly"

// ResolveProjectDir determines the project-local .openly directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. OPENLY_PROJECT_DIR env var
//  3. a walk up from startDir to the first directory holding .openly/config.yaml
//
// Returns the absolute path to $PROJECT/.openly/ or "" if no project is found.
// Does NOT create the directory.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	root, ok := findProjectRoot(startDir)
	if !ok {
		return ""
	}
	return toAbsProjectDir(ctx, root)
}

// findProjectRoot walks up from dir looking for .openly/config.yaml. The
// global config directory under $HOME is not a project and is skipped.
func findProjectRoot(dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}

	globalDir, _ := GetConfigDir()
	for {
		candidate := filepath.Join(abs, projectDirName)
		if candidate != globalDir {
			if _, statErr := os.Stat(filepath.Join(candidate, configFileName)); statErr == nil {
				return abs, true
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// NewWithProjectDir creates a Config by loading global config then
// shallow-merging project-local config on top. If projectDir is empty,
// behaves identically to New().
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	cfg := New()

	if projectDir == "" {
		return cfg
	}

	overlayPath := filepath.Join(projectDir, configFileName)
	if _, err := os.Stat(overlayPath); err != nil {
		// Missing project config is not an error; use global defaults.
		return cfg
	}

	merged := New()
	if err := ShallowMergeYAML(merged, overlayPath); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global defaults")
		return cfg
	}

	// Environment variables still win over the project file.
	merged.ApplyEnv()
	return merged
}

// toAbsProjectDir converts dir to an absolute path and appends ".openly"
// unless it already ends with it.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == projectDirName {
		return abs
	}

	return filepath.Join(abs, projectDirName)
}
