package conversation

import (
	"strings"

	"ilochat/internal/api"
	"ilochat/internal/cascade"
	"ilochat/internal/taxonomy"
)

// historyWindow is how many trailing messages are replayed with each chat
// turn.
const historyWindow = 10

// buildChatRequest assembles a chat request from the current selection
// state and message history. Subject and grade names are resolved to the
// configured locale at send time, so a locale change applies to the next
// request without touching stored state.
func buildChatRequest(text string, suggested bool, sel cascade.State, catalog *taxonomy.Catalog, locale string, history []Message) api.ChatRequest {
	req := api.ChatRequest{
		Message:             strings.TrimSpace(text),
		IsSuggestedQuestion: suggested,
		ConversationHistory: historyEntries(history),
	}
	if subject := catalog.SubjectByID(sel.SubjectID); subject != nil {
		req.Subject = taxonomy.ResolveName(subject, locale)
	}
	if grade := catalog.GradeByID(sel.GradeID); grade != nil {
		req.Grade = taxonomy.ResolveName(grade, locale)
	}
	if topic := strings.TrimSpace(sel.Topic); topic != "" {
		req.Topic = topic
	}
	return req
}

// historyEntries maps the last historyWindow messages (oldest first) to
// wire entries, translating the bot role to "assistant" and dropping
// entries with empty or whitespace-only content.
func historyEntries(history []Message) []api.HistoryEntry {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	entries := make([]api.HistoryEntry, 0, len(history)-start)
	for _, m := range history[start:] {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := string(m.Role)
		if m.Role == RoleBot {
			role = "assistant"
		}
		entries = append(entries, api.HistoryEntry{Role: role, Content: m.Text})
	}
	return entries
}

// buildGenerateRequest assembles a generation request, resolving every
// selected taxonomy entity to its localized display name.
func buildGenerateRequest(sel cascade.State, catalog *taxonomy.Catalog, locale, practice string) api.GenerateRequest {
	req := api.GenerateRequest{
		Topic:                strings.TrimSpace(sel.Topic),
		DisciplinaryPractice: practice,
	}
	if subject := catalog.SubjectByID(sel.SubjectID); subject != nil {
		req.Subject = taxonomy.ResolveName(subject, locale)
	}
	if grade := catalog.GradeByID(sel.GradeID); grade != nil {
		req.Grade = taxonomy.ResolveName(grade, locale)
	}
	if cat := catalog.CategoryByID(sel.CategoryID); cat != nil {
		req.Category = taxonomy.ResolveName(&cat.Entity, locale)
	}
	if level := catalog.BloomLevelByID(sel.BloomLevelID); level != nil {
		req.BloomLevel = taxonomy.ResolveName(&level.Entity, locale)
		for _, v := range sel.AvailableVerbs {
			if v.ID == sel.VerbID {
				verb := v
				req.ActionVerb = taxonomy.ResolveName(&verb, locale)
				break
			}
		}
	}
	return req
}
