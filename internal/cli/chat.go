// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Serial chat console.
//
// A line-based alternative to the full-screen TUI, for dumb terminals and
// piped sessions. Input history and line editing come from liner; output is
// printed as the stream arrives instead of repainting a viewport.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/lsuhpchelp/ollamaondemand/internal/catalog"
	corechat "github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/config"
	"github.com/lsuhpchelp/ollamaondemand/internal/generate"
	"github.com/lsuhpchelp/ollamaondemand/internal/index"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
	"github.com/lsuhpchelp/ollamaondemand/internal/storage"
	"github.com/lsuhpchelp/ollamaondemand/internal/ui/styles"
	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle  = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	replyStyle   = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextMuted)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
)

// historyFile is the liner history file name inside the working directory.
const historyFile = "repl_history"

// =============================================================================
// CONSOLE
// =============================================================================

// Deps are the collaborators wired in by main, shared with the TUI.
type Deps struct {
	Store     *session.Store
	Client    *ollama.Client
	Generator *generate.Adapter
	Index     *index.Index
	Catalog   catalog.Catalog
	Settings  *config.Settings
	Config    *config.Config
}

// Console is the serial REPL.
type Console struct {
	deps Deps
	line *liner.State

	controllers map[string]*corechat.Controller
	pending     []corechat.Attachment
	think       *bool

	// printed is the already-written prefix of the streaming assistant
	// bubble, so each snapshot prints only the new suffix.
	printed string
}

// Run starts the serial console and blocks until the user quits. Piped
// stdout drops the colors so the output stays grep-clean.
func Run(deps Deps) error {
	if !IsStdoutTTY() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	c := &Console{
		deps:        deps,
		line:        line,
		controllers: make(map[string]*corechat.Controller),
	}
	c.loadHistory()
	defer c.saveHistory()

	fmt.Println(replyStyle.Render("Ollama OnDemand") + infoStyle.Render("  (serial console, /help for commands)"))
	c.printModel()

	for {
		input, err := line.Prompt(promptStyle.Render("you> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := c.runCommand(input); quit {
				return nil
			}
			continue
		}
		c.submit(input)
	}
}

func (c *Console) historyPath() string {
	return filepath.Join(c.deps.Config.WorkDir, historyFile)
}

func (c *Console) loadHistory() {
	if f, err := os.Open(c.historyPath()); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

func (c *Console) saveHistory() {
	if f, err := os.Create(c.historyPath()); err == nil {
		c.line.WriteHistory(f)
		f.Close()
	}
}

func (c *Console) printModel() {
	model := c.deps.Settings.SelectedModel
	if model == "" {
		model = "none selected, use /model <name>"
	}
	fmt.Println(infoStyle.Render("model: " + model))
}

func (c *Console) warn(text string) {
	fmt.Println(warningStyle.Render(text))
}

// =============================================================================
// STREAMING
// =============================================================================

// controllerFor returns the session's controller. Operations run on the
// calling goroutine here, so callbacks print in order without any bridge.
func (c *Console) controllerFor(sess *session.Session) *corechat.Controller {
	if ctrl, ok := c.controllers[sess.ID]; ok {
		return ctrl
	}
	ctrl := corechat.NewController(sess.Transcript, c.deps.Generator, &corechat.Callbacks{
		OnTranscriptChanged: c.printDelta,
		OnWarning: func(text string) {
			fmt.Println()
			c.warn(text)
		},
	})
	c.controllers[sess.ID] = ctrl
	return ctrl
}

// printDelta writes the unseen suffix of the streaming assistant bubble.
func (c *Console) printDelta(bubbles []corechat.Bubble) {
	if len(bubbles) == 0 {
		return
	}
	last := bubbles[len(bubbles)-1]
	if last.Role != corechat.RoleAssistant {
		return
	}
	if strings.HasPrefix(last.Content, c.printed) {
		fmt.Print(last.Content[len(c.printed):])
	}
	c.printed = last.Content
}

func (c *Console) generateOpts() corechat.GenerateOptions {
	return corechat.GenerateOptions{
		Model:   c.deps.Settings.SelectedModel,
		Options: c.deps.Settings.Options,
		Think:   c.think,
	}
}

// runOperation executes a transcript operation with Ctrl+C wired to Stop,
// then persists and triggers title summarization.
func (c *Console) runOperation(op func(context.Context, *corechat.Controller, corechat.GenerateOptions) error) {
	if c.deps.Settings.SelectedModel == "" {
		c.warn("No model selected, use /model <name>")
		return
	}

	sess := c.deps.Store.Current()
	ctrl := c.controllerFor(sess)
	c.printed = ""
	fmt.Print(replyStyle.Render("assistant> "))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			ctrl.Stop()
		case <-done:
		}
	}()

	err := op(context.Background(), ctrl, c.generateOpts())
	close(done)
	signal.Stop(sigs)
	fmt.Println()

	switch {
	case errors.Is(err, corechat.ErrAlreadyStreaming):
		c.warn("Still generating")
		return
	case errors.Is(err, corechat.ErrInvalidAnchor):
		c.warn("Nothing there to regenerate")
		return
	}

	c.deps.Store.Flush()
	if c.deps.Index != nil {
		c.deps.Index.Rebuild(c.deps.Store.Records())
	}
	if idx := c.deps.Store.IndexOf(sess.ID); idx >= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		c.deps.Store.MaybeGenerateTitle(ctx, idx, c.deps.Generator, c.generateOpts())
		c.deps.Store.Flush()
	}
}

func (c *Console) submit(text string) {
	attachments := c.pending
	c.pending = nil
	c.runOperation(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
		return ctrl.SubmitNewMessage(ctx, text, attachments, opts)
	})
}

func (c *Console) retry() {
	anchor, ok := c.lastUserAnchor()
	if !ok {
		c.warn("Nothing to retry yet")
		return
	}
	c.runOperation(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
		return ctrl.Retry(ctx, anchor, opts)
	})
}

func (c *Console) edit(newText string) {
	anchor, ok := c.lastUserAnchor()
	if !ok {
		c.warn("Nothing to edit yet")
		return
	}
	c.runOperation(func(ctx context.Context, ctrl *corechat.Controller, opts corechat.GenerateOptions) error {
		return ctrl.Edit(ctx, anchor, newText, opts)
	})
}

func (c *Console) lastUserAnchor() (int, bool) {
	t := c.deps.Store.Current().Transcript
	for i := t.Len() - 1; i >= 0; i-- {
		if t.At(i).Role == corechat.RoleUser {
			return t.DisplayIndex(i), true
		}
	}
	return 0, false
}

// =============================================================================
// COMMANDS
// =============================================================================

const consoleHelp = `Commands:
  /new                 start a new chat
  /list                list chats
  /open <n>            switch to chat n
  /delete              delete the current chat
  /rename <title>      rename the current chat
  /show                print the current transcript
  /retry               regenerate the last response
  /edit <text>         rewrite the last message and regenerate
  /model [name]        show or switch model
  /models              list installed models
  /available [filter]  list registry models
  /pull <name>         install a model
  /rm <name>           remove a model
  /attach <path>       attach a file to the next message
  /export [path]       save the current chat as JSON
  /think on|off|auto   force reasoning on or off
  /option <k> [v]      set or unset a generation option
  /search <text>       search chat history
  /quit                exit
Ctrl+C during generation stops it.`

// runCommand executes a slash command. Returns true to exit the REPL.
func (c *Console) runCommand(text string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help", "h":
		fmt.Println(infoStyle.Render(consoleHelp))

	case "new":
		c.deps.Store.New()
		c.pending = nil
		fmt.Println(infoStyle.Render("Started a new chat"))

	case "list":
		current := c.deps.Store.CurrentIndex()
		for i, title := range c.deps.Store.ListTitles() {
			marker := "  "
			if i == current {
				marker = "* "
			}
			fmt.Println(infoStyle.Render(marker + strconv.Itoa(i+1) + ". " + title))
		}

	case "open":
		n, err := strconv.Atoi(arg)
		if err != nil {
			c.warn("Usage: /open <n>")
			return false
		}
		if _, err := c.deps.Store.Select(n - 1); err != nil {
			c.warn("No such chat")
			return false
		}
		c.pending = nil
		c.printTranscript()

	case "delete":
		if ctrl, ok := c.controllers[c.deps.Store.Current().ID]; ok {
			ctrl.Stop()
		}
		if err := c.deps.Store.Delete(c.deps.Store.CurrentIndex()); err != nil {
			c.warn("Delete failed: " + err.Error())
			return false
		}
		c.deps.Store.Flush()
		fmt.Println(infoStyle.Render("Chat deleted"))

	case "rename":
		if arg == "" {
			c.warn("Usage: /rename <title>")
			return false
		}
		if err := c.deps.Store.Rename(c.deps.Store.CurrentIndex(), arg); err != nil {
			c.warn("Rename failed: " + err.Error())
			return false
		}
		c.deps.Store.Flush()

	case "show":
		c.printTranscript()

	case "retry":
		c.retry()

	case "edit":
		if arg == "" {
			c.warn("Usage: /edit <text>")
			return false
		}
		c.edit(arg)

	case "model":
		if arg == "" {
			c.printModel()
			return false
		}
		c.deps.Settings.SelectedModel = arg
		config.SaveSettings(c.deps.Config.WorkDir, c.deps.Settings)
		c.printModel()

	case "models":
		c.listInstalled()

	case "available":
		c.listAvailable(arg)

	case "pull":
		if arg == "" {
			c.warn("Usage: /pull <name>")
			return false
		}
		c.pull(arg)

	case "rm":
		if arg == "" {
			c.warn("Usage: /rm <name>")
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.deps.Client.DeleteModel(ctx, arg); err != nil {
			c.warn("Remove failed: " + err.Error())
		}

	case "attach":
		if arg == "" {
			c.warn("Usage: /attach <path>")
			return false
		}
		c.attach(arg)

	case "export":
		c.export(arg)

	case "think":
		c.setThink(arg)

	case "option":
		c.setOption(arg)

	case "search":
		if arg == "" {
			c.warn("Usage: /search <text>")
			return false
		}
		c.search(arg)

	case "quit", "q", "exit":
		return true

	default:
		c.warn("Unknown command /" + name + ", try /help")
	}
	return false
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func (c *Console) printTranscript() {
	bubbles := c.deps.Store.Current().Transcript.DisplaySnapshot()
	for _, bubble := range bubbles {
		switch {
		case len(bubble.Images) > 0:
			fmt.Println(promptStyle.Render("you> ") + infoStyle.Render("[images: "+strings.Join(bubble.Images, ", ")+"]"))
		case bubble.File != "":
			fmt.Println(promptStyle.Render("you> ") + infoStyle.Render("[file: "+bubble.File+"]"))
		case bubble.Role == corechat.RoleUser:
			fmt.Println(promptStyle.Render("you> ") + bubble.Content)
		default:
			fmt.Println(replyStyle.Render("assistant> ") + bubble.Content)
		}
	}
}

func (c *Console) listInstalled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := c.deps.Client.ListModels(ctx)
	if err != nil {
		c.warn("Failed to list models: " + err.Error())
		return
	}
	for _, info := range models {
		marker := "  "
		if info.Name == c.deps.Settings.SelectedModel {
			marker = "* "
		}
		fmt.Println(infoStyle.Render(marker + info.Name + "  " + info.FormatSize()))
	}
}

func (c *Console) listAvailable(filter string) {
	names := c.deps.Catalog.Names()
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
		c.warn("No registry models match")
		return
	}
	fmt.Println(infoStyle.Render(strings.Join(names, ", ")))
}

func (c *Console) pull(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	err := c.deps.Client.PullModel(ctx, name, func(p ollama.ProgressResponse) {
		fmt.Print("\r" + infoStyle.Render(p.Status+"    "))
	})
	fmt.Println()
	if err != nil {
		c.warn("Pull failed: " + err.Error())
		return
	}
	fmt.Println(infoStyle.Render("Installed " + name))
}

func (c *Console) attach(path string) {
	info, err := os.Stat(path)
	if err != nil {
		c.warn("Cannot attach: " + err.Error())
		return
	}
	if info.IsDir() {
		c.warn("Cannot attach a directory")
		return
	}
	image := imageExtensions[strings.ToLower(filepath.Ext(path))]
	c.pending = append(c.pending, corechat.Attachment{Path: path, Image: image})
	fmt.Println(infoStyle.Render("Attached " + path))
}

// imageExtensions mirrors what the server-side vision models accept.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".bmp": true, ".webp": true,
}

// export saves the current session as a JSON file. An empty path derives
// one from the session ID in the working directory.
func (c *Console) export(path string) {
	record := c.deps.Store.CurrentRecord()
	if len(record.Messages) == 0 {
		c.warn("Nothing to export yet")
		return
	}
	if path == "" {
		path = filepath.Join(c.deps.Config.WorkDir, "chat-"+record.ID+".json")
	}
	if err := storage.Export(path, record); err != nil {
		c.warn("Export failed: " + err.Error())
		return
	}
	fmt.Println(infoStyle.Render("Exported to " + path))
}

func (c *Console) setThink(arg string) {
	switch arg {
	case "on":
		v := true
		c.think = &v
	case "off":
		v := false
		c.think = &v
	case "auto", "":
		c.think = nil
	default:
		c.warn("Usage: /think on|off|auto")
	}
}

func (c *Console) setOption(arg string) {
	key, value, hasValue := strings.Cut(arg, " ")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		c.warn("Usage: /option <name> [value]")
		return
	}

	if !hasValue || value == "" {
		c.deps.Settings.SetOption(key, nil)
	} else if b, err := strconv.ParseBool(value); err == nil {
		c.deps.Settings.SetOption(key, b)
	} else if n, err := strconv.ParseFloat(value, 64); err == nil {
		c.deps.Settings.SetOption(key, n)
	} else {
		c.deps.Settings.SetOption(key, value)
	}
	config.SaveSettings(c.deps.Config.WorkDir, c.deps.Settings)
}

func (c *Console) search(query string) {
	if c.deps.Index == nil {
		c.warn("History search is unavailable")
		return
	}
	hits, err := c.deps.Index.Search(query, 20)
	if err != nil {
		c.warn("Search failed: " + err.Error())
		return
	}
	if len(hits) == 0 {
		fmt.Println(infoStyle.Render("No matches"))
		return
	}
	width := TerminalWidth()
	for _, hit := range hits {
		prefix := "chat " + strconv.Itoa(hit.SessionPos+1) + " [" + string(hit.Role) + "] "
		excerpt := util.TruncateWidth(util.OneLine(hit.Excerpt), width-len(prefix))
		fmt.Println(infoStyle.Render(prefix) + excerpt)
	}
}
