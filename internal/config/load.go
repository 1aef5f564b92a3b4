package config

import (
	"flag"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Load resolves configuration in priority order:
// 1. Defaults
// 2. User config file (<user config dir>/tada/config.toml)
// 3. Project config file (./tada.toml)
// 4. TADA_* environment variables
// 5. Root CLI flags
//
// fs receives the root flags; the caller reads the remaining args from it.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if p, err := userConfigFile(); err == nil && fileExists(p) {
		if err := loadConfigFile(cfg, p); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", p, err)
		}
	}
	if fileExists("tada.toml") {
		if err := loadConfigFile(cfg, "tada.toml"); err != nil {
			return nil, fmt.Errorf("loading project config file tada.toml: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "TADA_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("tada", flag.ContinueOnError)
	}
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: file, sqlite or memory")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "path of the data file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file used while the TUI is running")
	fs.StringVar(&cfg.UITheme, "theme", cfg.UITheme, "CLI panel theme: classic, neon or mono")
	return fs.Parse(args)
}
