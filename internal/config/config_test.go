package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("FLEETROUTE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.OSRMTimeout() != 10*time.Second {
		t.Fatalf("OSRMTimeout = %v", cfg.OSRMTimeout())
	}
	if !cfg.Migrate {
		t.Fatal("Migrate should default to true")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetroute.yaml")
	body := "port: \"9090\"\nosrmUrl: http://osrm.internal:5000\nosrmTimeoutMs: 2500\nrateRps: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLEETROUTE_CONFIG", path)
	t.Setenv("PORT", "7070") // env beats file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("Port = %q, want env override", cfg.Port)
	}
	if cfg.OSRMURL != "http://osrm.internal:5000" {
		t.Fatalf("OSRMURL = %q", cfg.OSRMURL)
	}
	if cfg.OSRMTimeout() != 2500*time.Millisecond {
		t.Fatalf("OSRMTimeout = %v", cfg.OSRMTimeout())
	}
	if cfg.RateRPS != 5 {
		t.Fatalf("RateRPS = %v", cfg.RateRPS)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLEETROUTE_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("want parse error")
	}
}
