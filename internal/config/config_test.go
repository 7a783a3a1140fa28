package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDir_CTXHome(t *testing.T) {
	t.Setenv("CTX_HOME", "/custom/ctx")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != "/custom/ctx" {
		t.Errorf("Dir() = %q, want /custom/ctx", dir)
	}
}

func TestDir_Default(t *testing.T) {
	t.Setenv("CTX_HOME", "")
	t.Setenv("HOME", "/home/alice")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != filepath.Join("/home/alice", ".context") {
		t.Errorf("Dir() = %q, want /home/alice/.context", dir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DebounceWindow != DefaultDebounceWindow {
		t.Errorf("DebounceWindow = %v, want %v", cfg.DebounceWindow, DefaultDebounceWindow)
	}
	if len(cfg.Denylist) != 5 {
		t.Errorf("Denylist = %v, want the 5 default entries", cfg.Denylist)
	}
	if cfg.DBPath != filepath.Join(dir, "ctx.sqlite") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.StatePath != filepath.Join(dir, "last_cmd") {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.SpoolPath != filepath.Join(dir, "spool.jsonl") {
		t.Errorf("SpoolPath = %q", cfg.SpoolPath)
	}
	if cfg.LogPath != filepath.Join(dir, "ctx.log") {
		t.Errorf("LogPath = %q", cfg.LogPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
db_path: /data/history.db
log_level: debug
denylist:
  - ls
  - cd
debounce_window: 750ms
pager: more
`)

	cfg, err := Load(dir, path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/data/history.db" {
		t.Errorf("DBPath = %q, want /data/history.db", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.Denylist) != 2 || cfg.Denylist[1] != "cd" {
		t.Errorf("Denylist = %v, want [ls cd]", cfg.Denylist)
	}
	if cfg.DebounceWindow != 750*time.Millisecond {
		t.Errorf("DebounceWindow = %v, want 750ms", cfg.DebounceWindow)
	}
	if cfg.Pager != "more" {
		t.Errorf("Pager = %q, want more", cfg.Pager)
	}
	// Unset paths still derive from dir.
	if cfg.StatePath != filepath.Join(dir, "last_cmd") {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "denylist: [unclosed\n")

	_, err := Load(dir, path)
	if err == nil {
		t.Fatal("Load() should fail on invalid YAML")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Load() error = %T, want *ParseError", err)
	}
}

func TestDefaults_DenylistIsCopy(t *testing.T) {
	cfg := Defaults()
	cfg.Denylist[0] = "changed"
	if DefaultDenylist[0] != "ls" {
		t.Error("Defaults() must not share the DefaultDenylist backing array")
	}
}
