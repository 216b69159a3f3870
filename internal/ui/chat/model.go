// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front end. It owns no conversation state
// of its own: sessions live in the session store, transcript mutation and
// streaming live in the chat core, and this package translates between
// terminal events and core operations.
package chat

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/lsuhpchelp/ollamaondemand/internal/catalog"
	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/config"
	"github.com/lsuhpchelp/ollamaondemand/internal/generate"
	"github.com/lsuhpchelp/ollamaondemand/internal/index"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
	"github.com/lsuhpchelp/ollamaondemand/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// titleTimeout bounds the background title summarization request.
const titleTimeout = 60 * time.Second

// mode is the top-level input mode.
type mode int

const (
	modeChat   mode = iota // textarea focused, normal chat
	modePicker             // model picker overlay
	modeSearch             // history search results overlay
)

// Deps are the collaborators wired in by main.
type Deps struct {
	Store     *session.Store
	Client    *ollama.Client
	Generator *generate.Adapter
	Index     *index.Index
	Catalog   catalog.Catalog
	Settings  *config.Settings
	Config    *config.Config
}

// Model is the Bubble Tea model for the chat console.
type Model struct {
	deps    Deps
	program *tea.Program

	// controllers is keyed by session ID. Each session keeps its own
	// controller so switching away from a streaming session does not
	// disturb it.
	controllers map[string]*corechat.Controller

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	mode    mode
	warning string

	// bubbles is the latest display snapshot of the current session.
	bubbles []corechat.Bubble

	// pending attachments for the next submitted message.
	pending []corechat.Attachment

	models    []ollama.ModelInfo
	pickerIdx int

	searchQuery string
	searchHits  []index.Hit
	searchIdx   int

	// think overrides the model's reasoning default: nil leaves it to the
	// model, true/false forces it.
	think *bool

	// editAnchor, when set, makes the next submit an edit of the user
	// message at that display slot instead of a new message.
	editAnchor *int

	quitting bool
}

// New builds the model. Call SetProgram before Run so streaming callbacks
// can post messages back into the event loop.
func New(deps Deps) *Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message (/help for commands)"
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Thinking

	m := &Model{
		deps:        deps,
		controllers: make(map[string]*corechat.Controller),
		textarea:    ta,
		spinner:     sp,
	}
	m.bubbles = m.currentController().Transcript().DisplaySnapshot()
	return m
}

// SetProgram hands the model the running program, for Send from the
// streaming goroutines.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		loadModelsCmd(m.deps.Client),
	)
}

// =============================================================================
// CONTROLLERS
// =============================================================================

// controllerFor returns the session's controller, creating one on first
// use. Callbacks cross from the streaming goroutine into the event loop
// via program.Send, tagged with the session ID so snapshots from a
// background session do not repaint the foreground one.
func (m *Model) controllerFor(sess *session.Session) *corechat.Controller {
	if ctrl, ok := m.controllers[sess.ID]; ok {
		return ctrl
	}

	id := sess.ID
	ctrl := corechat.NewController(sess.Transcript, m.deps.Generator, &corechat.Callbacks{
		OnTranscriptChanged: func(snapshot []corechat.Bubble) {
			m.send(transcriptMsg{sessionID: id, bubbles: snapshot})
		},
		OnInputEnabledChanged: func(enabled bool) {
			m.send(inputEnabledMsg{sessionID: id, enabled: enabled})
		},
		OnWarning: func(text string) {
			m.send(warningMsg(text))
		},
	})
	m.controllers[sess.ID] = ctrl
	return ctrl
}

func (m *Model) currentController() *corechat.Controller {
	return m.controllerFor(m.deps.Store.Current())
}

func (m *Model) send(msg tea.Msg) {
	if m.program != nil {
		m.program.Send(msg)
	}
}

// generateOpts builds the per-request options from the saved settings.
func (m *Model) generateOpts() corechat.GenerateOptions {
	return corechat.GenerateOptions{
		Model:   m.deps.Settings.SelectedModel,
		Options: m.deps.Settings.Options,
		Think:   m.think,
	}
}

// afterStream runs on the operation goroutine once a generation returns:
// persist, refresh the search index, and maybe summarize a title. The
// session is resolved by ID because its position may have shifted while
// the stream ran.
func (m *Model) afterStream(sessionID string, opts corechat.GenerateOptions) {
	m.deps.Store.Flush()
	if m.deps.Index != nil {
		m.deps.Index.Rebuild(m.deps.Store.Records())
	}

	if idx := m.deps.Store.IndexOf(sessionID); idx >= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()
		m.deps.Store.MaybeGenerateTitle(ctx, idx, m.deps.Generator, opts)
		m.deps.Store.Flush()
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// imageExtensions mirrors what the server-side vision models accept.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".bmp": true, ".webp": true,
}

func isImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
