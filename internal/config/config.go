// Package config resolves ctx's data directory and loads the optional
// config.yaml that lives in it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDenylist holds commands that are never captured: near-zero
// information and extremely frequent.
var DefaultDenylist = []string{"ls", "clear", "pwd", "history", "exit"}

// DefaultDebounceWindow is the minimum gap between two captured commands.
const DefaultDebounceWindow = 500 * time.Millisecond

// Dir returns the ctx data directory. CTX_HOME overrides the default of
// ~/.context.
func Dir() (string, error) {
	if dir := os.Getenv("CTX_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".context"), nil
}

// Config holds every tunable ctx setting. Paths left empty are derived from
// the data directory by Resolve.
type Config struct {
	DBPath         string        `yaml:"db_path"`
	StatePath      string        `yaml:"state_path"`
	SpoolPath      string        `yaml:"spool_path"`
	LogPath        string        `yaml:"log_path"`
	LogLevel       string        `yaml:"log_level"`
	Denylist       []string      `yaml:"denylist"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	Pager          string        `yaml:"pager"`
}

// Defaults returns the configuration used when no config file exists.
func Defaults() Config {
	return Config{
		LogLevel:       "info",
		Denylist:       append([]string(nil), DefaultDenylist...),
		DebounceWindow: DefaultDebounceWindow,
		Pager:          "less",
	}
}

// Load reads the YAML file at path and overlays it on Defaults. A missing
// file is not an error. Paths are resolved against dir.
func Load(dir, path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, &ParseError{Path: path, Err: err}
		}
		cfg = merge(cfg, file)
	}

	cfg.Resolve(dir)
	return cfg, nil
}

// Resolve fills empty paths with their defaults under dir.
func (c *Config) Resolve(dir string) {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "ctx.sqlite")
	}
	if c.StatePath == "" {
		c.StatePath = filepath.Join(dir, "last_cmd")
	}
	if c.SpoolPath == "" {
		c.SpoolPath = filepath.Join(dir, "spool.jsonl")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(dir, "ctx.log")
	}
}

func merge(base, file Config) Config {
	if file.DBPath != "" {
		base.DBPath = file.DBPath
	}
	if file.StatePath != "" {
		base.StatePath = file.StatePath
	}
	if file.SpoolPath != "" {
		base.SpoolPath = file.SpoolPath
	}
	if file.LogPath != "" {
		base.LogPath = file.LogPath
	}
	if file.LogLevel != "" {
		base.LogLevel = file.LogLevel
	}
	// An explicit empty list in the file is indistinguishable from absence,
	// so the denylist can be replaced but not cleared.
	if len(file.Denylist) > 0 {
		base.Denylist = file.Denylist
	}
	if file.DebounceWindow > 0 {
		base.DebounceWindow = file.DebounceWindow
	}
	if file.Pager != "" {
		base.Pager = file.Pager
	}
	return base
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
