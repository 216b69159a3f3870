// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
)

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// Options are the parsed command-line options.
type Options struct {
	// WorkDir overrides the working directory holding chats, settings and
	// the search index.
	WorkDir string

	// Host overrides the Ollama server address.
	Host string

	// ModelDir overrides the Ollama model directory.
	ModelDir string

	// Model overrides the selected model for this run.
	Model string

	// Serial runs the line-based console instead of the full-screen TUI.
	Serial bool

	Debug   bool
	Version bool
	Help    bool
}

// Usage is the help text shown for --help and bad arguments.
const Usage = `Usage: ollamaondemand [options]

Options:
  --workdir DIR     working directory for chats and settings
  --host URL        Ollama server address (default http://localhost:11434)
  --model-dir DIR   Ollama model directory
  --model NAME      model to use for this run
  --serial          line-based console instead of the full-screen TUI
  --debug           verbose logging
  --version         print version and exit
  --help            show this help`

// ParseArgs parses the raw arguments (without the program name). Flags
// accept both "--flag value" and "--flag=value" forms.
func ParseArgs(raw []string) (*Options, error) {
	opts := &Options{}

	i := 0
	next := func(flag string) (string, error) {
		if i+1 >= len(raw) || strings.HasPrefix(raw[i+1], "-") {
			return "", fmt.Errorf("flag %s requires a value", flag)
		}
		i++
		return raw[i], nil
	}

	for ; i < len(raw); i++ {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")

		take := func(flag string) (string, error) {
			if hasValue {
				return value, nil
			}
			return next(flag)
		}

		var err error
		switch name {
		case "workdir", "w":
			opts.WorkDir, err = take(arg)
		case "host":
			opts.Host, err = take(arg)
		case "model-dir":
			opts.ModelDir, err = take(arg)
		case "model", "m":
			opts.Model, err = take(arg)
		case "serial":
			opts.Serial = true
		case "debug":
			opts.Debug = true
		case "version", "v":
			opts.Version = true
		case "help", "h":
			opts.Help = true
		default:
			return nil, fmt.Errorf("unknown flag %s", arg)
		}
		if err != nil {
			return nil, err
		}
	}

	return opts, nil
}
