// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/index"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
)

// =============================================================================
// MESSAGES
// =============================================================================

// transcriptMsg carries a fresh display snapshot from a streaming session.
type transcriptMsg struct {
	sessionID string
	bubbles   []corechat.Bubble
}

// inputEnabledMsg toggles the input controls for a session.
type inputEnabledMsg struct {
	sessionID string
	enabled   bool
}

// warningMsg is a transient user-visible notice.
type warningMsg string

// clearWarningMsg expires the notice.
type clearWarningMsg struct{}

// streamFinishedMsg fires after a generation (and its follow-up persistence
// and title work) completes.
type streamFinishedMsg struct {
	sessionID string
}

// modelsMsg delivers the installed-model list.
type modelsMsg []ollama.ModelInfo

// modelsChangedMsg fires when the models directory changes out-of-band.
type modelsChangedMsg struct{}

// pullProgressMsg reports model install progress.
type pullProgressMsg struct {
	model  string
	status string
	done   bool
	err    error
}

// searchResultsMsg delivers history search hits.
type searchResultsMsg struct {
	query string
	hits  []index.Hit
}

// =============================================================================
// COMMANDS
// =============================================================================

// warningExpiry is how long a notice stays in the status line.
const warningExpiry = 5 * time.Second

func clearWarningCmd() tea.Cmd {
	return tea.Tick(warningExpiry, func(time.Time) tea.Msg {
		return clearWarningMsg{}
	})
}

// loadModelsCmd fetches the installed-model list.
func loadModelsCmd(client *ollama.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		models, err := client.ListModels(ctx)
		if err != nil {
			return warningMsg("Failed to list models: " + err.Error())
		}
		return modelsMsg(models)
	}
}

// searchCmd runs a history search against the index.
func searchCmd(idx *index.Index, query string) tea.Cmd {
	return func() tea.Msg {
		if idx == nil {
			return warningMsg("History search is unavailable")
		}
		hits, err := idx.Search(query, 20)
		if err != nil {
			return warningMsg("Search failed: " + err.Error())
		}
		return searchResultsMsg{query: query, hits: hits}
	}
}
