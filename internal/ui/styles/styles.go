// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the Ollama OnDemand TUI.
// Colors use Lip Gloss AdaptiveColor for automatic light/dark detection.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// COLORS
// =============================================================================

// Cyan - brand color, user messages, selections
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Purple - assistant messages
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Rose - errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - warnings
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Emerald - success, installed-model markers
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// TextPrimary - main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextMuted - hints, thinking content, placeholders
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// Overlay - borders, separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

// =============================================================================
// STYLES
// =============================================================================

var (
	// Header is the one-line title bar.
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	// ModelBadge shows the selected model next to the title.
	ModelBadge = lipgloss.NewStyle().
			Foreground(TextMuted)

	// UserLabel prefixes user bubbles.
	UserLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	// AssistantLabel prefixes assistant bubbles.
	AssistantLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(Purple)

	// Thinking renders reasoning content, dimmed.
	Thinking = lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true)

	// Attachment renders a file/gallery bubble line.
	Attachment = lipgloss.NewStyle().
			Foreground(Emerald)

	// Warning renders transient notices in the status line.
	Warning = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)

	// ErrorText renders failures.
	ErrorText = lipgloss.NewStyle().
			Foreground(Rose).
			Bold(true)

	// StatusBar is the bottom hint line.
	StatusBar = lipgloss.NewStyle().
			Foreground(TextMuted)

	// SidebarTitle is an unselected session title.
	SidebarTitle = lipgloss.NewStyle().
			Foreground(TextPrimary)

	// SidebarSelected is the current session's title.
	SidebarSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	// SidebarBorder separates the sidebar from the chat pane.
	SidebarBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Overlay)

	// InputBorder frames the textarea.
	InputBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay)
)

// HasDarkBackground reports the terminal background, used to pick the
// glamour style.
func HasDarkBackground() bool {
	return termenv.HasDarkBackground()
}

// GlamourStyle returns the markdown style name matching the terminal
// background.
func GlamourStyle() string {
	if HasDarkBackground() {
		return "dark"
	}
	return "light"
}
