// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
)

// Run starts the TUI and blocks until the user quits. A model-directory
// watcher, when the directory is usable, refreshes the installed-model list
// on out-of-band installs and removals.
func Run(deps Deps) error {
	m := New(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetProgram(p)

	if dir := deps.Config.ModelDir; ollama.IsModelPath(dir) {
		watcher, err := ollama.NewModelDirWatcher(dir, func() {
			p.Send(modelsChangedMsg{})
		})
		if err == nil {
			if watcher.Watch() == nil {
				defer watcher.Close()
			} else {
				watcher.Close()
			}
		}
	}

	_, err := p.Run()
	return err
}
