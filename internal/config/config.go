// Package config resolves tada's settings from defaults, TOML files,
// TADA_* environment variables and root CLI flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	DefaultBackend  = BackendFile
	DefaultLogLevel = "info"
	DefaultUITheme  = "classic"

	dirName        = ".tada"
	configFileName = "config.toml"
)

// Config holds the process-level knobs. Calendar preferences live in
// storage, not here.
type Config struct {
	Backend  string `toml:"backend" env:"BACKEND"`
	DataPath string `toml:"data_path" env:"DATA_PATH"`
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
	LogFile  string `toml:"log_file" env:"LOG_FILE"`
	UITheme  string `toml:"ui_theme" env:"UI_THEME"`
}

func setDefaults(cfg *Config) {
	cfg.Backend = DefaultBackend
	cfg.LogLevel = DefaultLogLevel
	cfg.UITheme = DefaultUITheme
}

// Dir is ~/.tada, where data and logs go unless configured otherwise.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// finalizeConfig validates and fills derived paths.
func finalizeConfig(cfg *Config) error {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want file, sqlite or memory)", cfg.Backend)
	}

	needDir := cfg.LogFile == "" || (cfg.DataPath == "" && cfg.Backend != BackendMemory)
	var dir string
	if needDir {
		d, err := Dir()
		if err != nil {
			return err
		}
		dir = d
	}
	if cfg.DataPath == "" {
		switch cfg.Backend {
		case BackendFile:
			cfg.DataPath = filepath.Join(dir, "tada.json")
		case BackendSQLite:
			cfg.DataPath = filepath.Join(dir, "tada.db")
		}
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(dir, "tada.log")
	}
	cfg.DataPath = expandPath(cfg.DataPath)
	cfg.LogFile = expandPath(cfg.LogFile)
	return nil
}

// expandPath expands a leading ~/ and environment variables.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		return filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
	}
	return expanded
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !fi.IsDir()
}

var errNoConfigDir = errors.New("no user config dir")

func userConfigFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "", errNoConfigDir
	}
	return filepath.Join(dir, "tada", configFileName), nil
}
