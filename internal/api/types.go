// Package api is the HTTP client for the LDS assistant backend. All calls
// are JSON-over-HTTP POST except document analysis, which is a multipart
// upload. Decoding is shape-tolerant: malformed or unexpected bodies
// degrade to empty results instead of failing the caller.
package api

import "ilochat/internal/taxonomy"

// HistoryEntry is one prior turn sent with a chat request. Role is "user"
// or "assistant" on the wire.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Message             string         `json:"message"`
	IsSuggestedQuestion bool           `json:"is_suggested_question,omitempty"`
	Subject             string         `json:"subject,omitempty"`
	Grade               string         `json:"grade,omitempty"`
	Topic               string         `json:"topic,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
}

// ActionTarget names what a server-issued action applies to.
type ActionTarget struct {
	Context         string `json:"context"`
	ContextObjectID int    `json:"context_object_id,omitempty"`
}

// ActionPayload carries action-specific data. Patterns is nil when the key
// is absent, non-nil (possibly empty) when present; the interpreter relies
// on that distinction.
type ActionPayload struct {
	Patterns []taxonomy.Pattern `json:"patterns"`
}

// ActionUI carries the server's presentation hints.
type ActionUI struct {
	Presentation    string `json:"presentation,omitempty"`
	HighlightTarget string `json:"highlight_target,omitempty"`
}

// Action is one server-issued structured action.
type Action struct {
	ActionType string        `json:"action_type"`
	Target     ActionTarget  `json:"target"`
	Payload    ActionPayload `json:"payload"`
	UI         ActionUI      `json:"ui"`
}

// ChatResult is the decoded outcome of a chat turn. A transport failure is
// reported as an error from Chat instead; any HTTP response, 2xx or not,
// produces a ChatResult.
type ChatResult struct {
	Status             int
	Reply              string // chat_message_reply.text, "" if absent or not a string
	ErrorText          string // body-level "error" field, or a decode diagnostic
	SuggestedQuestions []string
	Actions            []Action
}

// OK reports whether the response was a 2xx.
func (r *ChatResult) OK() bool { return r.Status >= 200 && r.Status < 300 }

// GenerateRequest is the body of an ILO generation request. All names are
// already locale-resolved display strings.
type GenerateRequest struct {
	Topic                string `json:"topic"`
	Subject              string `json:"subject"`
	Grade                string `json:"grade"`
	Category             string `json:"category"`
	BloomLevel           string `json:"bloom_level"`
	ActionVerb           string `json:"action_verb"`
	DisciplinaryPractice string `json:"disciplinary_practice"`
}

// GenerateResult is the decoded outcome of a generation request.
// Statements holds the normalized ILO statements; Raw keeps the response
// body for diagnostics when normalization yields nothing.
type GenerateResult struct {
	Status     int
	Statements []string
	ErrorText  string
	Raw        []byte
}

// OK reports whether the response was a 2xx.
func (r *GenerateResult) OK() bool { return r.Status >= 200 && r.Status < 300 }

// AnalyzeResult is the decoded outcome of a document analysis upload.
type AnalyzeResult struct {
	Status    int
	Text      string // "analysis" field, falling back to "message"
	ErrorText string
	Actions   []Action
}

// OK reports whether the response was a 2xx.
func (r *AnalyzeResult) OK() bool { return r.Status >= 200 && r.Status < 300 }

// SuggestDPRequest asks the backend to pick a disciplinary practice.
type SuggestDPRequest struct {
	Topic       string `json:"topic"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
}

// DPRecommendation is the backend's disciplinary-practice pick.
type DPRecommendation struct {
	RecommendedDP string `json:"recommended_dp"`
	Reason        string `json:"reason"`
}
