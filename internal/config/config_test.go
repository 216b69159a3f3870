// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OllamaHost != "127.0.0.1:11434" {
		t.Errorf("default OllamaHost = %q", cfg.OllamaHost)
	}
	if cfg.DefaultModel == "" {
		t.Error("default model must not be empty")
	}
	if cfg.BaseURL() != "http://127.0.0.1:11434" {
		t.Errorf("BaseURL = %q", cfg.BaseURL())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
ollama_host = "127.0.0.1:9999"
work_dir = "/tmp/odtest"
default_model = "qwen3:8b"
debug = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OLLAMA_ONDEMAND_CONFIG", path)
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODELS", "")
	t.Setenv("OLLAMA_ONDEMAND_WORKDIR", "")
	t.Setenv("OLLAMA_ONDEMAND_MODEL", "")
	t.Setenv("OLLAMA_ONDEMAND_DEBUG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OllamaHost != "127.0.0.1:9999" {
		t.Errorf("OllamaHost = %q", cfg.OllamaHost)
	}
	if cfg.DefaultModel != "qwen3:8b" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`ollama_host = "127.0.0.1:9999"`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OLLAMA_ONDEMAND_CONFIG", path)
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OllamaHost != "10.0.0.5:11434" {
		t.Errorf("env should override file, got %q", cfg.OllamaHost)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OLLAMA_ONDEMAND_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Error("malformed config file should surface an error")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := DefaultSettings()
	s.SelectedModel = "llama3.2:3b"
	s.SetOption("temperature", 0.7)
	s.SetOption("num_ctx", 8192)
	SaveSettings(dir, s)

	loaded := LoadSettings(dir)
	if loaded.SelectedModel != "llama3.2:3b" {
		t.Errorf("SelectedModel = %q", loaded.SelectedModel)
	}
	if _, ok := loaded.Options["temperature"]; !ok {
		t.Error("temperature option lost in round trip")
	}
}

func TestSettingsLoadFallsBackToDefaults(t *testing.T) {
	// Missing directory.
	s := LoadSettings(filepath.Join(t.TempDir(), "nonexistent"))
	if s == nil || s.SelectedModel != "" {
		t.Error("missing settings should yield defaults")
	}

	// Corrupt file.
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{garbage"), 0644)
	s = LoadSettings(dir)
	if s == nil || s.Options == nil {
		t.Error("corrupt settings should yield usable defaults")
	}
}

func TestSetOptionNilRemoves(t *testing.T) {
	s := DefaultSettings()
	s.SetOption("top_k", 40)
	s.SetOption("top_k", nil)
	if _, ok := s.Options["top_k"]; ok {
		t.Error("nil value should remove the option")
	}
}
