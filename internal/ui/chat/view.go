// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/ui/styles"
	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	statusHeight = 1

	sidebarWidth = 24
	// sidebarMinTotal is the terminal width below which the sidebar hides.
	sidebarMinTotal = 80
)

func (m *Model) sidebarVisible() bool {
	return m.width >= sidebarMinTotal
}

func (m *Model) chatWidth() int {
	w := m.width
	if m.sidebarVisible() {
		w -= sidebarWidth + 1
	}
	if w < 20 {
		w = 20
	}
	return w
}

// rebuildRenderer recreates the markdown renderer at the pane width.
func (m *Model) rebuildRenderer(width int) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(styles.GlamourStyle()),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderBubbles())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	switch m.mode {
	case modePicker:
		return m.pickerView()
	case modeSearch:
		return m.searchView()
	}

	main := m.viewport.View()
	if m.sidebarVisible() {
		main = lipgloss.JoinHorizontal(lipgloss.Top,
			styles.SidebarBorder.Height(m.viewport.Height).Render(m.sidebarView()),
			main,
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		main,
		m.inputView(),
		m.statusView(),
	)
}

func (m *Model) headerView() string {
	title := styles.Header.Render("Ollama OnDemand")
	model := m.deps.Settings.SelectedModel
	if model == "" {
		model = "no model"
	}
	return title + "  " + styles.ModelBadge.Render(model)
}

func (m *Model) sidebarView() string {
	titles := m.deps.Store.ListTitles()
	current := m.deps.Store.CurrentIndex()

	var b strings.Builder
	for i, title := range titles {
		line := truncateLine(title, sidebarWidth-2)
		if i == current {
			b.WriteString(styles.SidebarSelected.Render("> " + line))
		} else {
			b.WriteString(styles.SidebarTitle.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(b.String())
}

func (m *Model) inputView() string {
	var lines []string
	for _, att := range m.pending {
		lines = append(lines, styles.Attachment.Render("+ "+att.Path))
	}
	lines = append(lines, styles.InputBorder.Width(m.chatWidth()-2).Render(m.textarea.View()))
	return strings.Join(lines, "\n")
}

func (m *Model) statusView() string {
	if m.warning != "" {
		return styles.Warning.Render(truncateLine(m.warning, m.width))
	}
	if m.currentController().IsStreaming() {
		return m.spinner.View() + styles.StatusBar.Render(" generating, Esc to stop")
	}
	return styles.StatusBar.Render("Enter send | /help for commands | Ctrl+C quit")
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) renderBubbles() string {
	if len(m.bubbles) == 0 {
		return styles.StatusBar.Render("\n  Ask anything to get started.")
	}

	var b strings.Builder
	for i, bubble := range m.bubbles {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.renderBubble(&bubble))
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Model) renderBubble(bubble *corechat.Bubble) string {
	switch {
	case len(bubble.Images) > 0:
		names := make([]string, len(bubble.Images))
		for i, path := range bubble.Images {
			names[i] = filepath.Base(path)
		}
		return styles.UserLabel.Render("You") + "\n" +
			styles.Attachment.Render("[images: "+strings.Join(names, ", ")+"]")

	case bubble.File != "":
		return styles.UserLabel.Render("You") + "\n" +
			styles.Attachment.Render("[file: "+filepath.Base(bubble.File)+"]")

	case bubble.Role == corechat.RoleUser:
		return styles.UserLabel.Render("You") + "\n" + bubble.Content

	default:
		return styles.AssistantLabel.Render("Assistant") + "\n" + m.renderAssistant(bubble.Content)
	}
}

// renderAssistant dims the reasoning segment and renders the answer as
// markdown.
func (m *Model) renderAssistant(content string) string {
	var out strings.Builder

	if strings.HasPrefix(content, corechat.ThinkHead) {
		rest := strings.TrimPrefix(content, corechat.ThinkHead)
		thinking, answer, closed := strings.Cut(rest, corechat.ThinkTail)
		out.WriteString(styles.Thinking.Render("(Thinking...)\n" + thinking))
		out.WriteByte('\n')
		if !closed {
			return out.String()
		}
		content = answer
	}

	out.WriteString(m.renderMarkdown(content))
	return out.String()
}

func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) pickerView() string {
	var b strings.Builder
	b.WriteString(styles.Header.Render("Select a model") + "\n\n")
	for i, info := range m.models {
		line := info.Name + "  " + styles.ModelBadge.Render(info.FormatSize())
		if info.Name == m.deps.Settings.SelectedModel {
			line += styles.Attachment.Render(" (current)")
		}
		if i == m.pickerIdx {
			b.WriteString(styles.SidebarSelected.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n" + styles.StatusBar.Render("Enter select | Esc cancel"))
	return b.String()
}

func (m *Model) searchView() string {
	var b strings.Builder
	b.WriteString(styles.Header.Render("History matches for "+strconv.Quote(m.searchQuery)) + "\n\n")
	for i, hit := range m.searchHits {
		line := string(hit.Role) + ": " + truncateLine(hit.Excerpt, m.width-6)
		if i == m.searchIdx {
			b.WriteString(styles.SidebarSelected.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n" + styles.StatusBar.Render("Enter open chat | Esc cancel"))
	return b.String()
}

func truncateLine(s string, max int) string {
	return util.TruncateWidth(util.OneLine(s), max)
}
