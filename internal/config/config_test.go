package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "swarmgen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SWARMGEN_CONFIG", path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SWARMGEN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "data/swarmgen.db" {
		t.Errorf("unexpected store path: %s", cfg.Store.Path)
	}
	if cfg.Dispatch.Timeout != 7*time.Minute {
		t.Errorf("unexpected dispatch timeout: %s", cfg.Dispatch.Timeout)
	}
	if !cfg.Web.Enabled || cfg.Web.Port != 8080 {
		t.Errorf("unexpected web defaults: %+v", cfg.Web)
	}
}

func TestLoadYAML(t *testing.T) {
	writeConfig(t, `
dispatch:
  timeout: 2m
providers:
  openai:
    api_key: sk-from-file
    default_model: gpt-4o-mini
agents:
  researcher:
    name: Researcher
    provider: openai
presets:
  precise:
    temperature: 0.2
swarms:
  duo:
    agents: [researcher]
    params_id: precise
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Timeout != 2*time.Minute {
		t.Errorf("timeout not overridden: %s", cfg.Dispatch.Timeout)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-file" {
		t.Errorf("provider key not loaded: %+v", cfg.Providers["openai"])
	}
	if cfg.Agents["researcher"].Name != "Researcher" {
		t.Errorf("agent not loaded: %+v", cfg.Agents)
	}
	p, ok := cfg.Presets["precise"]
	if !ok || p.Temperature == nil || *p.Temperature != 0.2 {
		t.Errorf("preset not loaded: %+v", cfg.Presets)
	}
	if sw := cfg.Swarms["duo"]; len(sw.Agents) != 1 || sw.ParamsID != "precise" {
		t.Errorf("swarm not loaded: %+v", cfg.Swarms)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")
	writeConfig(t, `
providers:
  openai:
    api_key: ${TEST_OPENAI_KEY}
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Errorf("env var not expanded: %q", cfg.Providers["openai"].APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWARMGEN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SWARMGEN_STORE_PATH", "/tmp/other.db")
	t.Setenv("SWARMGEN_WEB_PORT", "9999")
	t.Setenv("SWARMGEN_WEB_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/other.db" {
		t.Errorf("store path override failed: %s", cfg.Store.Path)
	}
	if cfg.Web.Port != 9999 || cfg.Web.Auth != "hunter2" {
		t.Errorf("web overrides failed: %+v", cfg.Web)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	writeConfig(t, "providers: [not: a: map")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
