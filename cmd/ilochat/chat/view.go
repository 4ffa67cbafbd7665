package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ilochat/internal/conversation"
	"ilochat/internal/taxonomy"
)

func (m *Model) View() string {
	if !m.ready {
		return "正在啟動…"
	}

	if m.showPopup {
		return m.renderPopup()
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("ILO 學習成果助手"))
	b.WriteString("\n")
	b.WriteString(m.styles.ContextBar.Render(m.contextLine()))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.footerLine())
	return b.String()
}

// contextLine summarizes the current selection in one line.
func (m *Model) contextLine() string {
	sel := m.selection.State()
	locale := m.cfg.Backend.Locale

	parts := make([]string, 0, 5)
	if topic := strings.TrimSpace(sel.Topic); topic != "" {
		parts = append(parts, "課題: "+topic)
	}
	if s := m.catalog.SubjectByID(sel.SubjectID); s != nil {
		parts = append(parts, "科目: "+taxonomy.ResolveName(s, locale))
	}
	if g := m.catalog.GradeByID(sel.GradeID); g != nil {
		parts = append(parts, "年級: "+taxonomy.ResolveName(g, locale))
	}
	if c := m.catalog.CategoryByID(sel.CategoryID); c != nil {
		parts = append(parts, "類別: "+taxonomy.ResolveName(&c.Entity, locale))
	}
	if l := m.catalog.BloomLevelByID(sel.BloomLevelID); l != nil {
		parts = append(parts, "Bloom: "+taxonomy.ResolveName(&l.Entity, locale))
	}
	if len(parts) == 0 {
		return "尚未設定課題，/topic 開始"
	}
	return strings.Join(parts, "  │  ")
}

func (m *Model) footerLine() string {
	if m.isLoading {
		return m.styles.Footer.Render(m.spinner.View() + " 等待回覆中…")
	}
	if m.statusMessage != "" {
		return m.styles.Footer.Render(m.statusMessage)
	}
	return m.styles.Footer.Render("Enter 送出 · /help 指令 · Ctrl+C 離開")
}

// renderHistory renders the transcript plus any pending notice.
func (m *Model) renderHistory() string {
	var b strings.Builder

	for _, msg := range m.engine.Messages() {
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(m.styles.UserLabel.Render("你"))
			b.WriteString("\n")
			b.WriteString(m.styles.UserText.Render(msg.Text))
		case conversation.RoleBot:
			b.WriteString(m.styles.BotLabel.Render("助手"))
			b.WriteString("\n")
			b.WriteString(m.renderBotText(msg.Text))
			for _, ilo := range msg.ILOs {
				b.WriteString("\n")
				b.WriteString(m.styles.ILO.Render("• " + ilo.Statement))
			}
			if len(msg.SuggestedQuestions) > 0 {
				b.WriteString("\n")
				b.WriteString(m.styles.Muted.Render("建議問題（輸入編號重送）："))
				for i, q := range msg.SuggestedQuestions {
					b.WriteString("\n")
					b.WriteString(m.styles.Suggestion.Render(fmt.Sprintf("  %d. %s", i+1, q)))
				}
			}
		}
		b.WriteString("\n\n")
	}

	if att := m.engine.Pending(); att != nil {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("📎 已附加 %s，下次送出時分析", att.Name)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(m.styles.Muted.Render(m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

// renderBotText runs bot messages through the markdown renderer when one
// is available.
func (m *Model) renderBotText(text string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.styles.BotText.Render(text)
}

// renderContext is the /context command body.
func (m *Model) renderContext() string {
	sel := m.selection.State()
	locale := m.cfg.Backend.Locale

	line := func(label, value string) string {
		if value == "" {
			value = "（未設定）"
		}
		return fmt.Sprintf("  %s：%s", label, value)
	}

	var subject, grade, category, bloom, verb string
	if s := m.catalog.SubjectByID(sel.SubjectID); s != nil {
		subject = taxonomy.ResolveName(s, locale)
	}
	if g := m.catalog.GradeByID(sel.GradeID); g != nil {
		grade = taxonomy.ResolveName(g, locale)
	}
	if c := m.catalog.CategoryByID(sel.CategoryID); c != nil {
		category = taxonomy.ResolveName(&c.Entity, locale)
	}
	if l := m.catalog.BloomLevelByID(sel.BloomLevelID); l != nil {
		bloom = taxonomy.ResolveName(&l.Entity, locale)
	}
	for _, v := range sel.AvailableVerbs {
		if v.ID == sel.VerbID {
			entity := v
			verb = taxonomy.ResolveName(&entity, locale)
			break
		}
	}

	return strings.Join([]string{
		"目前選擇：",
		line("課題", strings.TrimSpace(sel.Topic)),
		line("科目", subject),
		line("年級", grade),
		line("類別", category),
		line("Bloom 層級", bloom),
		line("動詞", verb),
		line("Disciplinary Practice", m.engine.Practice()),
	}, "\n")
}

// renderPopup draws the pattern directive as a full-screen popup.
func (m *Model) renderPopup() string {
	d := m.engine.Directive()
	if d == nil {
		return ""
	}
	locale := m.cfg.Backend.Locale

	var b strings.Builder
	b.WriteString(m.styles.PopupTitle.Render("ILO 句型範本"))
	b.WriteString("\n\n")
	if len(d.Patterns) == 0 {
		b.WriteString(m.styles.Muted.Render("（沒有可顯示的範本）"))
	}
	for _, p := range d.Patterns {
		pat := p
		name := taxonomy.ResolveName(&pat.Entity, locale)
		statement := taxonomy.ResolveStatement(&pat.Entity, locale)
		b.WriteString(m.styles.BotText.Render("• " + name))
		if statement != "" {
			b.WriteString("\n")
			b.WriteString(m.styles.Muted.Render("  " + statement))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render("Esc 關閉"))

	popup := m.styles.Popup.Width(min(m.width-4, 72)).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popup)
}
