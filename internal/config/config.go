// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for Ollama OnDemand.
//
// Two layers exist with different lifetimes:
//
//   - Config: application configuration (addresses, work directory, model
//     directory). Loaded once at startup from a TOML file with environment
//     variable overrides; flags override both.
//   - Settings: per-user chat settings (selected model, generation options).
//     Stored as settings.json inside the work directory and rewritten
//     whenever the user changes them. Loading and saving are best-effort.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the application configuration.
type Config struct {
	// OllamaHost is the address of the Ollama server, e.g. "127.0.0.1:11434".
	// The client talks to it over HTTP; the supervisor exports it as
	// OLLAMA_HOST when spawning "ollama serve".
	OllamaHost string `toml:"ollama_host"`

	// ModelDir is the Ollama model directory (OLLAMA_MODELS). Empty means
	// the server default (~/.ollama/models).
	ModelDir string `toml:"model_dir"`

	// WorkDir is the per-user work directory holding chats.json,
	// settings.json, remotemodels.json and the attachment cache.
	WorkDir string `toml:"work_dir"`

	// DefaultModel is used when settings.json names no model.
	DefaultModel string `toml:"default_model"`

	// Debug enables verbose logging to stderr.
	Debug bool `toml:"debug"`
}

// DefaultConfig returns the built-in defaults.
// Explicit IPv4 address instead of localhost avoids IPv6 resolution
// surprises on Windows.
func DefaultConfig() *Config {
	workdir := ""
	if home, err := os.UserHomeDir(); err == nil {
		workdir = filepath.Join(home, ".ollama-ondemand")
	}
	return &Config{
		OllamaHost:   "127.0.0.1:11434",
		ModelDir:     "",
		WorkDir:      workdir,
		DefaultModel: "llama3.2",
		Debug:        false,
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration with the following precedence (lowest first):
// built-in defaults, config.toml in the work directory, environment
// variables. Missing or unreadable files fall back silently; a malformed
// file is reported so the user can fix it.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := Path()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Path returns the config file location: $OLLAMA_ONDEMAND_CONFIG or
// ~/.ollama-ondemand/config.toml. Empty when no home directory exists.
func Path() string {
	if p := os.Getenv("OLLAMA_ONDEMAND_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ollama-ondemand", "config.toml")
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.OllamaHost = v
	}
	if v := os.Getenv("OLLAMA_MODELS"); v != "" {
		c.ModelDir = v
	}
	if v := os.Getenv("OLLAMA_ONDEMAND_WORKDIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("OLLAMA_ONDEMAND_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("OLLAMA_ONDEMAND_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Save writes the configuration as TOML to the standard location. Used to
// seed an editable config.toml on first run.
func (c *Config) Save() error {
	path := Path()
	if path == "" {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// BaseURL returns the Ollama server address as an http URL.
func (c *Config) BaseURL() string {
	return "http://" + c.OllamaHost
}
