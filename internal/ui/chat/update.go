// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/config"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modePicker:
			return m.handlePickerKey(msg)
		case modeSearch:
			return m.handleSearchKey(msg)
		default:
			return m.handleChatKey(msg)
		}

	case spinner.TickMsg:
		if m.currentController().IsStreaming() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case transcriptMsg:
		if msg.sessionID == m.deps.Store.Current().ID {
			m.bubbles = msg.bubbles
			m.refreshViewport(true)
		}
		return m, nil

	case inputEnabledMsg:
		if msg.sessionID != m.deps.Store.Current().ID {
			return m, nil
		}
		if msg.enabled {
			m.textarea.Focus()
			return m, nil
		}
		m.textarea.Blur()
		return m, m.spinner.Tick

	case warningMsg:
		m.warning = string(msg)
		return m, clearWarningCmd()

	case clearWarningMsg:
		m.warning = ""
		return m, nil

	case streamFinishedMsg:
		if msg.sessionID == m.deps.Store.Current().ID && !m.currentController().IsStreaming() {
			m.textarea.Focus()
		}
		return m, nil

	case modelsMsg:
		m.models = []ollama.ModelInfo(msg)
		m.ensureSelectedModel()
		return m, nil

	case modelsChangedMsg:
		return m, loadModelsCmd(m.deps.Client)

	case pullProgressMsg:
		if msg.err != nil {
			m.warning = "Pull failed: " + msg.err.Error()
			return m, clearWarningCmd()
		}
		if msg.done {
			m.warning = "Installed " + msg.model
			return m, tea.Batch(clearWarningCmd(), loadModelsCmd(m.deps.Client))
		}
		m.warning = "Pulling " + msg.model + ": " + msg.status
		return m, nil

	case searchResultsMsg:
		m.searchQuery = msg.query
		m.searchHits = msg.hits
		m.searchIdx = 0
		if len(msg.hits) == 0 {
			m.warning = "No matches for " + strconv.Quote(msg.query)
			return m, clearWarningCmd()
		}
		m.mode = modeSearch
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	chatWidth := m.chatWidth()
	inputHeight := m.textarea.Height() + 2
	viewHeight := m.height - headerHeight - inputHeight - statusHeight
	if viewHeight < 1 {
		viewHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, viewHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = viewHeight
	}
	m.textarea.SetWidth(chatWidth - 2)
	m.rebuildRenderer(chatWidth)
	m.refreshViewport(false)
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// CHAT KEYS
// =============================================================================

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.currentController().Stop()
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.currentController().IsStreaming() {
			m.currentController().Stop()
			return m, nil
		}
		return m, nil

	case "enter":
		return m, m.submit()

	case "alt+enter":
		m.textarea.InsertString("\n")
		return m, nil

	case "ctrl+n":
		return m.newSession()

	case "ctrl+l":
		if len(m.models) == 0 {
			return m, tea.Batch(m.notify("No installed models yet, try /pull <name>"), loadModelsCmd(m.deps.Client))
		}
		m.mode = modePicker
		m.pickerIdx = m.selectedModelIndex()
		return m, nil

	case "ctrl+r":
		return m, m.retryLast()

	case "ctrl+e":
		return m.editLast()

	case "alt+up":
		return m.switchSession(m.deps.Store.CurrentIndex() - 1)

	case "alt+down":
		return m.switchSession(m.deps.Store.CurrentIndex() + 1)

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit dispatches the textarea content: slash commands inline, everything
// else to the chat core on a fresh goroutine-backed command.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		m.textarea.Reset()
		return m.runCommand(text)
	}

	if m.currentController().IsStreaming() {
		return m.notify("Still generating, press Esc to stop first")
	}
	if m.deps.Settings.SelectedModel == "" {
		return m.notify("No model selected, use Ctrl+L or /model <name>")
	}

	if m.editAnchor != nil {
		anchor := *m.editAnchor
		m.editAnchor = nil
		m.textarea.Reset()
		return m.operationCmd(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
			return ctrl.Edit(ctx, anchor, text, opts)
		})
	}

	attachments := m.pending
	m.pending = nil
	m.textarea.Reset()
	return m.operationCmd(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
		return ctrl.SubmitNewMessage(ctx, text, attachments, opts)
	})
}

// operationCmd runs a transcript operation on its own goroutine and follows
// it with persistence and title work.
func (m *Model) operationCmd(op func(context.Context, *corechat.Controller, corechat.GenerateOptions) error) tea.Cmd {
	sess := m.deps.Store.Current()
	ctrl := m.controllerFor(sess)
	opts := m.generateOpts()
	id := sess.ID

	return func() tea.Msg {
		err := op(context.Background(), ctrl, opts)
		switch {
		case errors.Is(err, corechat.ErrAlreadyStreaming):
			return warningMsg("Still generating, press Esc to stop first")
		case errors.Is(err, corechat.ErrInvalidAnchor):
			return warningMsg("Nothing there to regenerate")
		}
		m.afterStream(id, opts)
		return streamFinishedMsg{sessionID: id}
	}
}

// retryLast regenerates the response to the most recent user message.
func (m *Model) retryLast() tea.Cmd {
	anchor, ok := m.lastUserDisplayIndex()
	if !ok {
		return m.notify("Nothing to retry yet")
	}
	return m.operationCmd(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
		return ctrl.Retry(ctx, anchor, opts)
	})
}

// editLast loads the most recent user message into the textarea; the next
// submit replays from it instead of appending.
func (m *Model) editLast() (tea.Model, tea.Cmd) {
	t := m.currentController().Transcript()
	raw, ok := lastUserRawIndex(t)
	if !ok {
		return m, m.notify("Nothing to edit yet")
	}
	if m.currentController().IsStreaming() {
		return m, m.notify("Still generating, press Esc to stop first")
	}

	anchor := t.DisplayIndex(raw)
	original := t.At(raw).Content
	m.textarea.SetValue(original)
	m.textarea.CursorEnd()
	m.editAnchor = &anchor
	return m, m.notify("Editing last message, Enter resubmits it")
}

func (m *Model) lastUserDisplayIndex() (int, bool) {
	t := m.currentController().Transcript()
	raw, ok := lastUserRawIndex(t)
	if !ok {
		return 0, false
	}
	return t.DisplayIndex(raw), true
}

func lastUserRawIndex(t *corechat.Transcript) (int, bool) {
	for i := t.Len() - 1; i >= 0; i-- {
		if t.At(i).Role == corechat.RoleUser {
			return i, true
		}
	}
	return 0, false
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Model) newSession() (tea.Model, tea.Cmd) {
	m.deps.Store.New()
	m.pending = nil
	m.editAnchor = nil
	m.syncCurrentSession()
	return m, nil
}

func (m *Model) switchSession(index int) (tea.Model, tea.Cmd) {
	if _, err := m.deps.Store.Select(index); err != nil {
		return m, nil
	}
	m.pending = nil
	m.editAnchor = nil
	m.syncCurrentSession()
	return m, nil
}

func (m *Model) deleteSession() (tea.Model, tea.Cmd) {
	index := m.deps.Store.CurrentIndex()
	if ctrl, ok := m.controllers[m.deps.Store.Current().ID]; ok {
		ctrl.Stop()
	}
	if err := m.deps.Store.Delete(index); err != nil {
		return m, m.notify("Delete failed: " + err.Error())
	}
	m.deps.Store.Flush()
	m.syncCurrentSession()
	return m, nil
}

// syncCurrentSession repoints the view at the store's current session.
func (m *Model) syncCurrentSession() {
	ctrl := m.currentController()
	m.bubbles = ctrl.Transcript().DisplaySnapshot()
	m.refreshViewport(true)
	if ctrl.IsStreaming() {
		m.textarea.Blur()
	} else {
		m.textarea.Focus()
	}
}

// =============================================================================
// MODEL PICKER
// =============================================================================

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "ctrl+l":
		m.mode = modeChat
		return m, nil
	case "up", "k":
		if m.pickerIdx > 0 {
			m.pickerIdx--
		}
		return m, nil
	case "down", "j":
		if m.pickerIdx < len(m.models)-1 {
			m.pickerIdx++
		}
		return m, nil
	case "enter":
		if m.pickerIdx >= 0 && m.pickerIdx < len(m.models) {
			m.selectModel(m.models[m.pickerIdx].Name)
		}
		m.mode = modeChat
		return m, nil
	}
	return m, nil
}

func (m *Model) selectModel(name string) {
	m.deps.Settings.SelectedModel = name
	config.SaveSettings(m.deps.Config.WorkDir, m.deps.Settings)
}

func (m *Model) selectedModelIndex() int {
	for i, info := range m.models {
		if info.Name == m.deps.Settings.SelectedModel {
			return i
		}
	}
	return 0
}

// ensureSelectedModel falls back to the configured default, then the first
// installed model, when nothing is selected yet.
func (m *Model) ensureSelectedModel() {
	if m.deps.Settings.SelectedModel != "" || len(m.models) == 0 {
		return
	}
	choice := m.models[0].Name
	if m.deps.Config.DefaultModel != "" {
		for _, info := range m.models {
			if info.Name == m.deps.Config.DefaultModel {
				choice = info.Name
				break
			}
		}
	}
	m.selectModel(choice)
}

// =============================================================================
// SEARCH RESULTS
// =============================================================================

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeChat
		return m, nil
	case "up", "k":
		if m.searchIdx > 0 {
			m.searchIdx--
		}
		return m, nil
	case "down", "j":
		if m.searchIdx < len(m.searchHits)-1 {
			m.searchIdx++
		}
		return m, nil
	case "enter":
		m.mode = modeChat
		if m.searchIdx >= 0 && m.searchIdx < len(m.searchHits) {
			hit := m.searchHits[m.searchIdx]
			if idx := m.deps.Store.IndexOf(hit.SessionID); idx >= 0 {
				return m.switchSession(idx)
			}
			return m, m.notify("That session no longer exists")
		}
		return m, nil
	}
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) notify(text string) tea.Cmd {
	return func() tea.Msg { return warningMsg(text) }
}
