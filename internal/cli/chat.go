// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

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
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/omnomburp/chat-llama/internal/client"
	"github.com/omnomburp/chat-llama/internal/config"
	"github.com/omnomburp/chat-llama/internal/export"
	"github.com/omnomburp/chat-llama/internal/model"
	"github.com/omnomburp/chat-llama/internal/render"
	"github.com/omnomburp/chat-llama/internal/session"
	"github.com/omnomburp/chat-llama/internal/storage"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// APP STATE
// =============================================================================

// App holds the wiring for one interactive chat run.
type App struct {
	session  *session.Session
	store    *storage.ConversationStore
	exporter *export.HTMLExporter
	input    *ChatCLI

	// mu guards cfg and renderer, which the config watcher may swap
	// while the REPL is reading them.
	mu       sync.Mutex
	cfg      *config.Config
	renderer *glamour.TermRenderer

	// pending is the attachment queued for the next message.
	pending *client.Attachment
}

// NewApp wires up the chat application from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	convDir, err := cfg.ConversationsDir()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewConversationStore(convDir)
	if err != nil {
		return nil, err
	}

	pipeline := render.New(render.Options{
		BaseOrigin: cfg.Render.BaseOrigin,
		CodeStyle:  cfg.Render.CodeStyle,
	})
	theme := ResolveTheme(cfg.Render.Theme)

	app := &App{
		cfg:      cfg,
		store:    store,
		exporter: export.NewHTMLExporter(pipeline, &export.Options{Theme: theme, IncludeTimestamps: true}),
		input:    NewChatCLI(),
		renderer: NewMarkdownRenderer(theme),
	}

	app.session = session.New(session.Config{
		Client:         client.NewClientWithConfig(&client.Config{BaseURL: cfg.Server.URL}),
		Pipeline:       pipeline,
		OnDelta:        func(delta string) { fmt.Print(delta) },
		OnError:        func(err error) { fmt.Fprintf(os.Stderr, "\n[error] %v\n", err) },
		RenderInterval: time.Duration(cfg.Render.IntervalMs) * time.Millisecond,
	})
	app.session.SetUseSearch(cfg.Chat.UseSearch)
	return app, nil
}

// applyConfig takes a freshly reloaded configuration. Server and storage
// settings stick to the connections made at startup; display settings and
// the search default take effect immediately.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.renderer = NewMarkdownRenderer(ResolveTheme(cfg.Render.Theme))
	a.mu.Unlock()
	fmt.Fprintln(os.Stderr, "[config reloaded]")
}

// config returns the current configuration snapshot.
func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// markdownRenderer returns the current glamour renderer, which may be nil.
func (a *App) markdownRenderer() *glamour.TermRenderer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renderer
}

// =============================================================================
// REPL
// =============================================================================

// Run drives the interactive loop until the user exits.
func Run(cfg *config.Config) error {
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.input.Close()

	// Config edits made while chatting are picked up without a restart.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, err := config.NewWatcher(path, app.applyConfig, nil); err == nil {
			defer watcher.Close()
		}
	}

	fmt.Println("chat-llama - type /help for commands, Ctrl+D to exit")

	// First Ctrl+C cancels the in-flight stream, not the program.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			app.session.Stop()
			fmt.Fprintln(os.Stderr, "\n[cancelled]")
		}
	}()

	for {
		input, err := app.input.ReadInput("chat> ")
		if err != nil {
			// Ctrl+C at the prompt or EOF both exit cleanly.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, liner.ErrNotTerminalOutput) {
				fmt.Println()
			}
			app.autosave()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := app.handleCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[error] %v\n", err)
			}
			if quit {
				app.autosave()
				return nil
			}
			continue
		}

		app.sendTurn(input)
	}
}

// sendTurn runs one chat turn, echoing tokens as they stream.
func (a *App) sendTurn(text string) {
	att := a.pending
	a.pending = nil

	fmt.Print("\nassistant: ")
	err := a.session.Send(context.Background(), text, att)
	fmt.Println()

	if err != nil && !errors.Is(err, context.Canceled) {
		return // already reported via OnError
	}

	conv := a.session.Conversation()
	a.prettyPrintLast(conv)
	if len(conv.Sources) > 0 {
		fmt.Println("\nsources:")
		for i, src := range conv.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Printf("  [%d] %s  %s\n", i+1, title, src.URL)
		}
	}
	fmt.Println()
}

// prettyPrintLast re-renders the completed assistant turn as styled
// terminal Markdown. The raw token echo above stays on screen; this
// prints the readable version below it.
func (a *App) prettyPrintLast(conv *model.Conversation) {
	renderer := a.markdownRenderer()
	if renderer == nil {
		return
	}
	last := conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant || last.Content == "" {
		return
	}
	styled, err := renderer.Render(last.Content)
	if err != nil {
		return
	}
	fmt.Print("\n" + styled)
}

// autosave persists the current conversation, quietly skipping empties.
func (a *App) autosave() {
	conv := a.session.Conversation()
	if conv.IsEmpty() {
		return
	}
	if _, err := a.store.Save(conv); err != nil {
		fmt.Fprintf(os.Stderr, "[error] failed to save conversation: %v\n", err)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand dispatches a slash command. The bool result is true when
// the REPL should exit.
func (a *App) handleCommand(input string) (bool, error) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		printHelp()
		return false, nil

	case "/quit", "/exit":
		return true, nil

	case "/new":
		prev := a.session.Reset()
		if !prev.IsEmpty() {
			if _, err := a.store.Save(prev); err != nil {
				return false, err
			}
		}
		a.session.SetUseSearch(a.config().Chat.UseSearch)
		fmt.Println("started a new conversation")
		return false, nil

	case "/web":
		conv := a.session.Conversation()
		a.session.SetUseSearch(!conv.UseSearch)
		fmt.Printf("web search %s\n", onOff(!conv.UseSearch))
		return false, nil

	case "/attach":
		if arg == "" {
			return false, fmt.Errorf("usage: /attach <path>")
		}
		att, err := client.ReadAttachment(arg)
		if err != nil {
			return false, err
		}
		a.pending = att
		fmt.Printf("attached %s (%d bytes), will be sent with your next message\n", att.Name, len(att.Content))
		return false, nil

	case "/list":
		return false, a.listConversations("")

	case "/search":
		if arg == "" {
			return false, fmt.Errorf("usage: /search <query>")
		}
		return false, a.listConversations(arg)

	case "/load":
		index, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("usage: /load <number from /list>")
		}
		conv, err := a.store.LoadByIndex(index - 1)
		if err != nil {
			return false, err
		}
		a.autosave()
		a.session.Load(conv)
		fmt.Printf("loaded %q (%d messages)\n", conv.GetTitle(), conv.MessageCount())
		return false, nil

	case "/export":
		return false, a.exportHTML(arg)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// listConversations prints stored conversations, optionally filtered.
func (a *App) listConversations(query string) error {
	metas, err := a.store.Search(query)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no conversations found")
		return nil
	}
	for i, meta := range metas {
		fmt.Printf("  %d. %s  (%d messages, %s)\n",
			i+1, meta.Title, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// exportHTML writes the current conversation as an HTML transcript.
func (a *App) exportHTML(path string) error {
	conv := a.session.Conversation()
	page, err := a.exporter.Export(conv)
	if err != nil {
		return err
	}

	if path == "" {
		path = filepath.Join(a.config().Storage.ExportDir, conv.ID+".html")
	}
	if err := os.WriteFile(path, page, 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func printHelp() {
	fmt.Print(`commands:
  /new             start a new conversation (saves the current one)
  /web             toggle web search for this conversation
  /attach <path>   attach a text file to your next message
  /list            list saved conversations
  /search <query>  search saved conversations
  /load <n>        load a conversation from /list
  /export [path]   export the conversation as HTML
  /quit            exit (also Ctrl+D)
`)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
