// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

// settingsFile is the name of the user settings file inside the work
// directory.
const settingsFile = "settings.json"

// =============================================================================
// USER SETTINGS
// =============================================================================

// Settings holds per-user chat settings. The streaming controller reads
// them; the settings sidebar writes them.
type Settings struct {
	// SelectedModel is the model used for new generations.
	SelectedModel string `json:"model_selected"`

	// Options are generation parameters forwarded verbatim to the server
	// (temperature, top_k, num_ctx, ...). A missing key means "use the
	// model default".
	Options map[string]any `json:"options"`
}

// DefaultSettings returns empty settings: no model selected, all generation
// parameters at their model defaults.
func DefaultSettings() *Settings {
	return &Settings{
		SelectedModel: "",
		Options:       map[string]any{},
	}
}

// =============================================================================
// PERSISTENCE (BEST-EFFORT)
// =============================================================================

// LoadSettings reads settings.json from the work directory. Any failure
// (missing file, unreadable, corrupt JSON) yields the defaults: chat
// settings are convenience state, the user is never blocked by them.
func LoadSettings(workdir string) *Settings {
	data, err := os.ReadFile(filepath.Join(workdir, settingsFile))
	if err != nil {
		return DefaultSettings()
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return DefaultSettings()
	}
	if s.Options == nil {
		s.Options = map[string]any{}
	}
	return s
}

// SaveSettings writes settings.json to the work directory, creating it if
// needed. Failures are swallowed for the same reason loads are.
func SaveSettings(workdir string, s *Settings) {
	if s == nil {
		return
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	_ = util.AtomicWriteFile(filepath.Join(workdir, settingsFile), data, 0644)
}

// SetOption sets a generation option. A nil value removes the key, falling
// back to the model default.
func (s *Settings) SetOption(name string, value any) {
	if s.Options == nil {
		s.Options = map[string]any{}
	}
	if value == nil {
		delete(s.Options, name)
		return
	}
	s.Options[name] = value
}
