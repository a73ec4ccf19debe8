package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q", cfg.DefaultOutput)
	}
	server, err := cfg.Server("")
	if err != nil || server != DefaultServer {
		t.Errorf("Server() = %q, %v", server, err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	want := filepath.Join(".eventlink", "cli.yaml")
	if path := DefaultConfigPath(); !strings.HasSuffix(path, want) {
		t.Errorf("DefaultConfigPath() = %q, want suffix %q", path, want)
	}
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profiles == nil {
		t.Error("Profiles should be initialised")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")

	cfg := Default()
	cfg.Timeout = 5 * time.Second
	if err := cfg.SetProfile("edge", "http://10.0.0.5:25366"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Use("edge"); err != nil {
		t.Fatal(err)
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CurrentProfile != "edge" || got.Timeout != 5*time.Second {
		t.Errorf("loaded = %+v", got)
	}
	server, _ := got.Server("")
	if server != "http://10.0.0.5:25366" {
		t.Errorf("Server() = %q", server)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	os.WriteFile(path, []byte("profiles: [unclosed"), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestProfiles(t *testing.T) {
	cfg := Default()
	if _, err := cfg.Server("missing"); err == nil {
		t.Error("unknown profile should fail")
	}
	if err := cfg.Use("missing"); err == nil {
		t.Error("Use() of unknown profile should fail")
	}
	if err := cfg.SetProfile("", "x"); err == nil {
		t.Error("empty name should fail")
	}
	cfg.SetProfile("b", "http://b")
	cfg.SetProfile("a", "http://a")
	if got := strings.Join(cfg.ProfileNames(), ","); got != "a,b" {
		t.Errorf("ProfileNames() = %q", got)
	}
}
