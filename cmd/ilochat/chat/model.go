// Package chat provides the interactive TUI for the ILO assistant.
// The interface is split across files:
//   - model.go: types, construction, Init
//   - update.go: the Update loop and async messages
//   - commands.go: /command handling
//   - view.go: rendering
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"ilochat/cmd/ilochat/ui"
	"ilochat/internal/api"
	"ilochat/internal/cascade"
	"ilochat/internal/config"
	"ilochat/internal/conversation"
	"ilochat/internal/logging"
	"ilochat/internal/store"
	"ilochat/internal/taxonomy"
)

// Model is the main model for the interactive chat interface.
type Model struct {
	// UI components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	// State
	cfg         *config.Config
	engine      *conversation.Engine
	selection   *cascade.Store
	catalog     *taxonomy.Catalog
	backend     *api.Client
	transcripts *store.TranscriptStore

	sessionID     string
	statusMessage string
	notice        string
	isLoading     bool
	showPopup     bool
	width         int
	height        int
	ready         bool
	err           error

	// lastSuggestions are the suggested questions of the newest bot
	// message; numeric input resubmits one of them.
	lastSuggestions []string

	// Config reload plumbing
	watcher  *config.Watcher
	reloadCh chan *config.Config
}

// NewModel wires the chat interface from a loaded configuration.
func NewModel(cfg *config.Config) (*Model, error) {
	backend := api.New(api.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Locale:      cfg.Backend.Locale,
		Token:       cfg.Backend.Token,
		ListTimeout: cfg.GetListTimeout(),
	})
	catalog := taxonomy.NewCatalog(backend)
	selection := cascade.NewStore(catalog)
	engine := conversation.NewEngine(backend, selection, catalog, cfg.Backend.Locale)

	transcripts, err := store.NewTranscriptStore(cfg.Session.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	ta := textarea.New()
	ta.Placeholder = "輸入訊息，/help 查看指令…"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))
	sp.Style = styles.Spinner

	m := &Model{
		textarea:    ta,
		spinner:     sp,
		styles:      styles,
		cfg:         cfg,
		engine:      engine,
		selection:   selection,
		catalog:     catalog,
		backend:     backend,
		transcripts: transcripts,
		sessionID:   uuid.NewString(),
		reloadCh:    make(chan *config.Config, 1),
	}

	watcher, err := config.NewWatcher(config.Path(), func(next *config.Config) {
		select {
		case m.reloadCh <- next:
		default:
		}
	})
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("config watcher unavailable: %v", err)
	} else {
		m.watcher = watcher
		if err := watcher.Start(context.Background()); err != nil {
			logging.Get(logging.CategoryConfig).Warn("config watcher failed to start: %v", err)
		}
	}

	return m, nil
}

// Close releases the model's resources. Called after the program exits.
func (m *Model) Close() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	if m.transcripts != nil {
		m.transcripts.Close()
	}
}

// Init kicks off the initial taxonomy load and the reload listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.loadTaxonomiesCmd(),
		m.waitForReloadCmd(),
	)
}

// loadTaxonomiesCmd loads all five taxonomy collections concurrently.
func (m *Model) loadTaxonomiesCmd() tea.Cmd {
	catalog := m.catalog
	return func() tea.Msg {
		_ = catalog.LoadAll(context.Background())
		return taxonomiesLoadedMsg{}
	}
}

// waitForReloadCmd blocks until the config watcher delivers a new config.
func (m *Model) waitForReloadCmd() tea.Cmd {
	ch := m.reloadCh
	return func() tea.Msg {
		return configReloadedMsg{cfg: <-ch}
	}
}

// submitCmd runs one chat or analysis turn to completion.
func (m *Model) submitCmd(text string, suggested bool) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		err := engine.Submit(context.Background(), text, suggested)
		return turnDoneMsg{err: err}
	}
}

// generateCmd requests ILO generation for the current selection.
func (m *Model) generateCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		err := engine.Generate(context.Background())
		return turnDoneMsg{err: err}
	}
}

// suggestDPCmd requests a disciplinary practice recommendation.
func (m *Model) suggestDPCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		err := engine.SuggestDP(context.Background())
		return turnDoneMsg{err: err}
	}
}

// Messages delivered by async commands.
type (
	taxonomiesLoadedMsg struct{}
	configReloadedMsg   struct{ cfg *config.Config }
	turnDoneMsg         struct{ err error }
)

func newSessionID() string { return uuid.NewString() }

// sessionTitle derives a saved-session title from the first user message.
func (m *Model) sessionTitle() string {
	for _, msg := range m.engine.Messages() {
		if msg.Role == conversation.RoleUser && msg.Text != "" {
			if len([]rune(msg.Text)) > 40 {
				return string([]rune(msg.Text)[:40]) + "…"
			}
			return msg.Text
		}
	}
	return time.Now().Format("2006-01-02 15:04")
}
