// Package conversation owns the assistant's message history and the
// request lifecycle for chat turns, ILO generation and document analysis.
// At most one of those three flows is in flight at a time; requests made
// while busy are dropped, not queued.
package conversation

import (
	"time"

	"ilochat/internal/taxonomy"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ILO is one generated intended learning outcome.
type ILO struct {
	Statement string `json:"statement"`
}

// Message is one entry of the conversation. The history is append-only:
// messages are never mutated or removed once appended, and ids are
// generated locally and never reused.
type Message struct {
	ID                 string    `json:"id"`
	Role               Role      `json:"role"`
	Text               string    `json:"text"`
	ILOs               []ILO     `json:"ilos,omitempty"`
	SuggestedQuestions []string  `json:"suggested_questions,omitempty"`
	Time               time.Time `json:"time"`
}

// Directive is a parsed server-issued display instruction. At most one is
// active at a time; a new one replaces the previous.
type Directive struct {
	Patterns     []taxonomy.Pattern
	Presentation string
	Context      string
}

// Attachment is a document waiting to be analyzed with the next submit.
type Attachment struct {
	Name string
	Path string
}
