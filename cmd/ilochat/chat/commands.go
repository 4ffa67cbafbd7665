package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ilochat/internal/conversation"
	"ilochat/internal/taxonomy"
)

const helpText = `可用指令：
  /topic <課題>      設定課題
  /subject [list|N]  查看或選擇科目
  /grade [list|N]    查看或選擇年級
  /category [list|N] 查看或選擇 ILO 類別
  /bloom [list|N]    查看或選擇 Bloom 層級
  /verb [list|N]     查看或選擇動詞
  /context           查看目前選擇
  /patterns          查看 ILO 句型範本
  /attach <路徑>     附加文件，下次送出時分析
  /generate          依目前選擇生成 ILO
  /dp                取得 Disciplinary Practice 建議
  /save [標題]       儲存此對話
  /sessions          列出已儲存的對話
  /load <id>         載入已儲存的對話
  /new               開始新對話
  /quit              離開

輸入數字可重送機械人建議的問題。`

// handleCommand dispatches a /command line.
func (m *Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		m.notice = helpText

	case "/quit", "/exit":
		m.Close()
		return m, tea.Quit

	case "/topic":
		if len(args) == 0 {
			m.statusMessage = "用法：/topic <課題>"
			break
		}
		topic := strings.TrimPrefix(input, parts[0])
		m.selection.SetTopic(strings.TrimSpace(topic))
		m.statusMessage = fmt.Sprintf("課題：%s", strings.TrimSpace(topic))

	case "/subject":
		m.handleEntityPick("/subject", args, "科目", m.catalog.Subjects.Items(), m.selection.SetSubject)

	case "/grade":
		m.handleEntityPick("/grade", args, "年級", m.catalog.Grades.Items(), m.selection.SetGrade)

	case "/category":
		m.handleCategoryPick(args)

	case "/bloom":
		m.handleBloomPick(args)

	case "/verb":
		m.handleVerbPick(args)

	case "/context":
		m.notice = m.renderContext()

	case "/patterns":
		m.notice = m.renderPatterns()

	case "/attach":
		if len(args) == 0 {
			m.statusMessage = "用法：/attach <檔案路徑>"
			break
		}
		path := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		if err := m.engine.AttachFile(path); err != nil {
			m.statusMessage = err.Error()
			break
		}
		m.statusMessage = fmt.Sprintf("已附加 %s，下次送出時將進行分析", m.engine.Pending().Name)

	case "/generate":
		return m.startTurn(m.generateCmd())

	case "/dp":
		return m.startTurn(m.suggestDPCmd())

	case "/save":
		title := m.sessionTitle()
		if len(args) > 0 {
			title = strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		}
		if err := m.transcripts.SaveSession(m.sessionID, title, m.engine.Messages()); err != nil {
			m.statusMessage = fmt.Sprintf("儲存失敗：%v", err)
			break
		}
		m.statusMessage = fmt.Sprintf("已儲存對話 %s", m.sessionID)

	case "/sessions":
		m.notice = m.renderSessions()

	case "/load":
		if len(args) != 1 {
			m.statusMessage = "用法：/load <session id>"
			break
		}
		m.loadSession(args[0])

	case "/new":
		if err := m.engine.Restore(nil); err != nil {
			m.statusMessage = "請等待目前的回覆完成"
			break
		}
		m.sessionID = newSessionID()
		m.lastSuggestions = nil
		m.statusMessage = "已開始新對話"

	default:
		m.statusMessage = fmt.Sprintf("未知指令 %s，/help 查看指令", cmd)
	}

	m.refreshViewport()
	return m, nil
}

// handleEntityPick serves the shared list/select flow for subjects and
// grade levels.
func (m *Model) handleEntityPick(cmdName string, args []string, label string, items []taxonomy.Entity, set func(int)) {
	if len(args) == 0 || args[0] == "list" {
		if len(items) == 0 {
			m.statusMessage = fmt.Sprintf("%s資料尚未載入", label)
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s：\n", label)
		for _, e := range items {
			entity := e
			fmt.Fprintf(&b, "  %d. %s\n", e.ID, taxonomy.ResolveName(&entity, m.cfg.Backend.Locale))
		}
		m.notice = strings.TrimRight(b.String(), "\n")
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		m.statusMessage = fmt.Sprintf("用法：%s [list|編號]", cmdName)
		return
	}
	for _, e := range items {
		if e.ID == id {
			entity := e
			set(id)
			m.statusMessage = fmt.Sprintf("%s：%s", label, taxonomy.ResolveName(&entity, m.cfg.Backend.Locale))
			return
		}
	}
	m.statusMessage = fmt.Sprintf("找不到%s編號 %d", label, id)
}

func (m *Model) handleCategoryPick(args []string) {
	items := m.catalog.Categories.Items()
	if len(args) == 0 || args[0] == "list" {
		if len(items) == 0 {
			m.statusMessage = "類別資料尚未載入"
			return
		}
		var b strings.Builder
		b.WriteString("ILO 類別：\n")
		for _, c := range items {
			cat := c
			name := taxonomy.ResolveName(&cat.Entity, m.cfg.Backend.Locale)
			if c.ShowBloomTaxonomy.Bool() {
				fmt.Fprintf(&b, "  %d. %s（可選 Bloom 層級）\n", c.ID, name)
			} else {
				fmt.Fprintf(&b, "  %d. %s\n", c.ID, name)
			}
		}
		m.notice = strings.TrimRight(b.String(), "\n")
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		m.statusMessage = "用法：/category [list|編號]"
		return
	}
	cat := m.catalog.CategoryByID(id)
	if cat == nil {
		m.statusMessage = fmt.Sprintf("找不到類別編號 %d", id)
		return
	}
	m.selection.SetCategory(id)
	m.statusMessage = fmt.Sprintf("類別：%s", taxonomy.ResolveName(&cat.Entity, m.cfg.Backend.Locale))
}

func (m *Model) handleBloomPick(args []string) {
	cat := m.selection.CurrentCategory()
	if cat == nil || !cat.ShowBloomTaxonomy.Bool() {
		m.statusMessage = "目前類別不使用 Bloom 層級"
		return
	}

	items := m.catalog.BloomLevels.Items()
	if len(args) == 0 || args[0] == "list" {
		if len(items) == 0 {
			m.statusMessage = "Bloom 層級資料尚未載入"
			return
		}
		var b strings.Builder
		b.WriteString("Bloom 層級：\n")
		for _, l := range items {
			level := l
			fmt.Fprintf(&b, "  %d. %s\n", l.ID, taxonomy.ResolveName(&level.Entity, m.cfg.Backend.Locale))
		}
		m.notice = strings.TrimRight(b.String(), "\n")
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		m.statusMessage = "用法：/bloom [list|編號]"
		return
	}
	if id != 0 && m.catalog.BloomLevelByID(id) == nil {
		m.statusMessage = fmt.Sprintf("找不到 Bloom 層級編號 %d", id)
		return
	}
	m.selection.SetBloomLevel(id)
	if v := m.selection.State().VerbID; v != 0 {
		m.statusMessage = "已選擇 Bloom 層級，並自動選擇第一個動詞（/verb list 可更改）"
	} else {
		m.statusMessage = "已選擇 Bloom 層級"
	}
}

func (m *Model) handleVerbPick(args []string) {
	verbs := m.selection.State().AvailableVerbs
	if len(verbs) == 0 {
		m.statusMessage = "請先選擇 Bloom 層級"
		return
	}

	if len(args) == 0 || args[0] == "list" {
		var b strings.Builder
		b.WriteString("動詞：\n")
		selected := m.selection.State().VerbID
		for _, v := range verbs {
			verb := v
			marker := " "
			if v.ID == selected {
				marker = "*"
			}
			fmt.Fprintf(&b, " %s %d. %s\n", marker, v.ID, taxonomy.ResolveName(&verb, m.cfg.Backend.Locale))
		}
		m.notice = strings.TrimRight(b.String(), "\n")
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		m.statusMessage = "用法：/verb [list|編號]"
		return
	}
	m.selection.SetVerb(id)
	if m.selection.State().VerbID == id {
		m.statusMessage = "已選擇動詞"
	} else {
		m.statusMessage = fmt.Sprintf("動詞編號 %d 不在目前層級的清單內", id)
	}
}

func (m *Model) loadSession(id string) {
	msgs, err := m.transcripts.LoadSession(id)
	if err != nil {
		m.statusMessage = fmt.Sprintf("載入失敗：%v", err)
		return
	}
	if err := m.engine.Restore(msgs); err != nil {
		m.statusMessage = "請等待目前的回覆完成"
		return
	}
	m.sessionID = id
	m.lastSuggestions = nil
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleBot {
			m.lastSuggestions = msgs[i].SuggestedQuestions
			break
		}
	}
	m.statusMessage = fmt.Sprintf("已載入對話 %s（%d 則訊息）", id, len(msgs))
}

func (m *Model) renderSessions() string {
	sessions, err := m.transcripts.ListSessions()
	if err != nil {
		return fmt.Sprintf("無法列出對話：%v", err)
	}
	if len(sessions) == 0 {
		return "尚未有已儲存的對話"
	}
	var b strings.Builder
	b.WriteString("已儲存的對話：\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "  %s  %s（%d 則，%s）\n",
			s.ID, s.Title, s.Messages, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderPatterns() string {
	patterns := m.catalog.Patterns.Items()
	if len(patterns) == 0 {
		return "句型範本尚未載入"
	}
	var b strings.Builder
	b.WriteString("ILO 句型範本：\n")
	for _, p := range patterns {
		pat := p
		name := taxonomy.ResolveName(&pat.Entity, m.cfg.Backend.Locale)
		statement := taxonomy.ResolveStatement(&pat.Entity, m.cfg.Backend.Locale)
		if statement != "" {
			fmt.Fprintf(&b, "  %s：%s\n", name, statement)
		} else {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
