package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.MaxInFlightCommands != 20 {
		t.Fatalf("MaxInFlightCommands = %d, want 20", cfg.Session.MaxInFlightCommands)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "browserctl.yaml")
	content := "session:\n  remote_port: 9333\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.RemotePort != 9333 {
		t.Fatalf("RemotePort = %d, want 9333", cfg.Session.RemotePort)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "browserctl.yaml")
	if err := os.WriteFile(path, []byte("session:\n  remote_port: 9333\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BROWSERCTL_REMOTE_PORT", "9444")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.RemotePort != 9444 {
		t.Fatalf("RemotePort = %d, want 9444", cfg.Session.RemotePort)
	}
}

func TestLoadOverridesHighestPriority(t *testing.T) {
	t.Setenv("BROWSERCTL_REMOTE_PORT", "9444")
	cfg, err := Load("", func(c *Config) { c.Session.RemotePort = 9555 })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.RemotePort != 9555 {
		t.Fatalf("RemotePort = %d, want 9555", cfg.Session.RemotePort)
	}
}

func TestValidateRejectsBadTimeoutOrdering(t *testing.T) {
	cfg := Defaults()
	cfg.Wait.StateTimeoutMS = cfg.Wait.StepTimeoutMS
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-nested timeout tiers")
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	_, err := Load("/nonexistent/path/browserctl.yaml", nil)
	if err != nil {
		t.Fatalf("missing config file should be tolerated: %v", err)
	}
}
