package chat

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ilochat/cmd/ilochat/ui"
	"ilochat/internal/api"
	"ilochat/internal/config"
	"ilochat/internal/conversation"
	"ilochat/internal/logging"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.Close()
			return m, tea.Quit

		case tea.KeyEsc:
			if m.showPopup {
				m.showPopup = false
				m.engine.ClearDirective()
				return m, nil
			}

		case tea.KeyEnter:
			if msg.Alt {
				break // alt+enter inserts a newline
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" && m.engine.Pending() == nil {
				return m, nil
			}
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 3
		footerHeight := m.textarea.Height() + 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.textarea.SetWidth(msg.Width - 2)
		if r, err := ui.NewRenderer(m.styles.Theme, msg.Width-4); err == nil {
			m.renderer = r
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.isLoading {
			// Engine state advances off the Update loop; keep the view
			// in sync while waiting.
			m.refreshViewport()
		}
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd

	case taxonomiesLoadedMsg:
		m.selection.ApplyDefaults()
		m.statusMessage = "已載入課程分類資料"
		m.refreshViewport()
		return m, nil

	case configReloadedMsg:
		m.applyConfig(msg.cfg)
		return m, tea.Batch(m.loadTaxonomiesCmd(), m.waitForReloadCmd())

	case turnDoneMsg:
		m.isLoading = false
		m.handleTurnResult(msg.err)
		m.refreshViewport()
		return m, nil
	}

	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)
	return m, tea.Batch(taCmd, vpCmd, spCmd)
}

// handleInput routes one submitted line: slash commands, numeric
// suggested-question picks, or a plain chat turn.
func (m *Model) handleInput(input string) (tea.Model, tea.Cmd) {
	m.statusMessage = ""
	m.notice = ""

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// A bare number picks from the newest bot message's suggestions.
	if n, err := strconv.Atoi(input); err == nil && len(m.lastSuggestions) > 0 {
		if n >= 1 && n <= len(m.lastSuggestions) {
			return m.startTurn(m.submitCmd(m.lastSuggestions[n-1], true))
		}
		m.statusMessage = "建議問題編號超出範圍"
		return m, nil
	}

	return m.startTurn(m.submitCmd(input, false))
}

// startTurn dispatches an engine call and enters the loading state.
func (m *Model) startTurn(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.refreshViewport()
	return m, tea.Batch(cmd, m.spinner.Tick)
}

// handleTurnResult maps engine rejections to status hints. A nil error
// means the turn completed; its outcome is already in the history.
func (m *Model) handleTurnResult(err error) {
	if err == nil {
		msgs := m.engine.Messages()
		m.lastSuggestions = nil
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == conversation.RoleBot {
				m.lastSuggestions = msgs[i].SuggestedQuestions
				break
			}
		}
		if m.engine.Directive() != nil {
			m.showPopup = true
		}
		return
	}

	var readiness *conversation.ReadinessError
	switch {
	case errors.Is(err, conversation.ErrBusy):
		m.statusMessage = "請等待目前的回覆完成"
	case errors.Is(err, conversation.ErrNothingToSend):
		m.statusMessage = "請先輸入內容"
	case errors.As(err, &readiness):
		m.statusMessage = readiness.Violation.Message()
	default:
		m.statusMessage = err.Error()
	}
}

// applyConfig re-bases the backend connection after a config reload. The
// catalog discards any in-flight loads from the old backend; a fresh load
// follows.
func (m *Model) applyConfig(cfg *config.Config) {
	logging.Config("re-basing to %s (locale %s)", cfg.Backend.BaseURL, cfg.Backend.Locale)
	m.cfg = cfg
	m.backend = api.New(api.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Locale:      cfg.Backend.Locale,
		Token:       cfg.Backend.Token,
		ListTimeout: cfg.GetListTimeout(),
	})
	m.catalog.Rebase(m.backend)
	m.engine.Rebase(m.backend, cfg.Backend.Locale)
	m.statusMessage = "設定已更新，重新載入分類資料…"
	m.refreshViewport()
}

// refreshViewport re-renders the transcript and pins the view to the
// bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}
