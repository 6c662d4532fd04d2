package config

import (
	"testing"
	"time"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("AGENT_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when AGENT_API_KEY is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENT_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("unexpected default port: %s", cfg.Port)
	}
	if cfg.Agent.Timeout != 30*time.Second {
		t.Errorf("unexpected default agent timeout: %s", cfg.Agent.Timeout)
	}
	if !cfg.Transcript.Enabled {
		t.Error("transcripts should default to enabled")
	}
	if !cfg.IsDevelopment() {
		t.Error("empty frontend URL should mean development mode")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("AGENT_MODEL", "gpt-4o")
	t.Setenv("AGENT_TIMEOUT_SECONDS", "60")
	t.Setenv("TRANSCRIPT_ENABLED", "false")
	t.Setenv("FRONTEND_URL", "https://lookout.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.Agent.Model != "gpt-4o" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Agent.Timeout != 60*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Agent.Timeout)
	}
	if cfg.Transcript.Enabled {
		t.Error("transcript override not applied")
	}
	if cfg.IsDevelopment() {
		t.Error("production frontend URL should not be development mode")
	}
}
