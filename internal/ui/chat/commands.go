// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/config"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
	"github.com/lsuhpchelp/ollamaondemand/internal/storage"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const helpText = `Commands:
  /new                 start a new chat
  /delete              delete the current chat
  /rename <title>      rename the current chat
  /model [name]        pick a model (no name opens the picker)
  /pull <name>         install a model from the registry
  /rm <name>           remove an installed model
  /available [filter]  list models known to the registry
  /attach <path>       attach a file to the next message
  /clear               drop pending attachments
  /export [path]       save the current chat as JSON
  /think on|off|auto   force reasoning on or off
  /option <k> [v]      set or unset a generation option
  /search <text>       search chat history
  /quit                exit

Keys: Enter send, Alt+Enter newline, Esc stop, Ctrl+N new chat,
Ctrl+R retry, Ctrl+E edit last, Ctrl+L models, Alt+Up/Down switch chat`

// runCommand parses and executes a slash command typed into the input.
func (m *Model) runCommand(text string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help":
		return m.notify(helpText)

	case "new":
		_, cmd := m.newSession()
		return cmd

	case "delete":
		_, cmd := m.deleteSession()
		return cmd

	case "rename":
		if arg == "" {
			return m.notify("Usage: /rename <title>")
		}
		if err := m.deps.Store.Rename(m.deps.Store.CurrentIndex(), arg); err != nil {
			return m.notify("Rename failed: " + err.Error())
		}
		m.deps.Store.Flush()
		return nil

	case "model", "models":
		if arg == "" {
			if len(m.models) == 0 {
				return tea.Batch(m.notify("No installed models yet, try /pull <name>"), loadModelsCmd(m.deps.Client))
			}
			m.mode = modePicker
			m.pickerIdx = m.selectedModelIndex()
			return nil
		}
		for _, info := range m.models {
			if info.Name == arg {
				m.selectModel(arg)
				return m.notify("Model set to " + arg)
			}
		}
		return m.notify("Model " + strconv.Quote(arg) + " is not installed, try /pull " + arg)

	case "pull":
		if arg == "" {
			return m.notify("Usage: /pull <name>")
		}
		return m.pullCmd(arg)

	case "rm":
		if arg == "" {
			return m.notify("Usage: /rm <name>")
		}
		return m.removeModelCmd(arg)

	case "available":
		return m.notify(m.availableModels(arg))

	case "attach":
		if arg == "" {
			return m.notify("Usage: /attach <path>")
		}
		return m.attach(arg)

	case "clear":
		n := len(m.pending)
		m.pending = nil
		return m.notify("Dropped " + strconv.Itoa(n) + " pending attachment(s)")

	case "export":
		return m.exportChat(arg)

	case "think":
		return m.setThink(arg)

	case "option":
		return m.setOption(arg)

	case "search":
		if arg == "" {
			return m.notify("Usage: /search <text>")
		}
		return searchCmd(m.deps.Index, arg)

	case "quit", "exit":
		m.quitting = true
		return tea.Quit
	}

	return m.notify("Unknown command /" + name + ", try /help")
}

// attach queues a file for the next message. Images ride separately from
// text files so the transcript can show a gallery bubble.
func (m *Model) attach(path string) tea.Cmd {
	info, err := os.Stat(path)
	if err != nil {
		return m.notify("Cannot attach: " + err.Error())
	}
	if info.IsDir() {
		return m.notify("Cannot attach a directory")
	}
	m.pending = append(m.pending, corechat.Attachment{
		Path:  path,
		Image: isImagePath(path),
	})
	return m.notify("Attached " + path)
}

// exportChat saves the current session as a JSON file. An empty path
// derives one from the session ID in the working directory.
func (m *Model) exportChat(path string) tea.Cmd {
	record := m.deps.Store.CurrentRecord()
	if len(record.Messages) == 0 {
		return m.notify("Nothing to export yet")
	}
	if path == "" {
		path = filepath.Join(m.deps.Config.WorkDir, "chat-"+record.ID+".json")
	}
	if err := storage.Export(path, record); err != nil {
		return m.notify("Export failed: " + err.Error())
	}
	return m.notify("Exported to " + path)
}

func (m *Model) setThink(arg string) tea.Cmd {
	switch arg {
	case "on":
		v := true
		m.think = &v
		return m.notify("Reasoning forced on")
	case "off":
		v := false
		m.think = &v
		return m.notify("Reasoning forced off")
	case "auto", "":
		m.think = nil
		return m.notify("Reasoning left to the model")
	}
	return m.notify("Usage: /think on|off|auto")
}

// setOption records a generation option in the saved settings. Values parse
// as bool, then number, then string; no value unsets the option.
func (m *Model) setOption(arg string) tea.Cmd {
	key, value, hasValue := strings.Cut(arg, " ")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return m.notify("Usage: /option <name> [value]")
	}

	if !hasValue || value == "" {
		m.deps.Settings.SetOption(key, nil)
	} else {
		m.deps.Settings.SetOption(key, parseOptionValue(value))
	}
	config.SaveSettings(m.deps.Config.WorkDir, m.deps.Settings)
	return m.notify("Option " + key + " updated")
}

func parseOptionValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// availableModels lists registry models from the bundled catalog, optionally
// filtered by substring.
func (m *Model) availableModels(filter string) string {
	if len(m.deps.Catalog) == 0 {
		return "No registry catalog available"
	}

	names := m.deps.Catalog.Names()
	if filter != "" {
		var kept []string
		for _, n := range names {
			if strings.Contains(n, filter) {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	if len(names) == 0 {
		return "No registry models match " + strconv.Quote(filter)
	}
	return "Available: " + strings.Join(names, ", ")
}

// pullCmd installs a model, streaming progress into the status line.
func (m *Model) pullCmd(name string) tea.Cmd {
	client := m.deps.Client
	send := m.send
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		err := client.PullModel(ctx, name, func(p ollama.ProgressResponse) {
			send(pullProgressMsg{model: name, status: p.Status})
		})
		return pullProgressMsg{model: name, done: true, err: err}
	}
}

func (m *Model) removeModelCmd(name string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.DeleteModel(ctx, name); err != nil {
			return warningMsg("Remove failed: " + err.Error())
		}
		return modelsChangedMsg{}
	}
}
