package api

import (
	"encoding/json"
	"strings"
)

// decodeList decodes a taxonomy list body. Only a JSON array is accepted
// as data; error objects, unexpected objects and unparseable bodies all
// resolve to an empty list. The previous contents of a repository are
// never kept on a refresh that yields one of those shapes.
func decodeList[T any](data []byte) []T {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

// errorField extracts a string "error" field from an arbitrary JSON body.
func errorField(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" && body.Details != "" {
		return body.Error + ": " + body.Details
	}
	return body.Error
}

// replyText extracts chat_message_reply.text from a chat response body,
// returning "" when the path is absent or not a string.
func replyText(data []byte) string {
	var body struct {
		Reply struct {
			Text json.RawMessage `json:"text"`
		} `json:"chat_message_reply"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(body.Reply.Text, &text); err != nil {
		return ""
	}
	return text
}

func decodeChatResult(status int, data []byte) *ChatResult {
	res := &ChatResult{Status: status}
	res.Reply = replyText(data)
	res.ErrorText = errorField(data)

	var body struct {
		SuggestedQuestions []string `json:"suggested_questions"`
		Actions            []Action `json:"actions"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		// Malformed body: convert to an internal error diagnostic rather
		// than surfacing a decode failure to the caller.
		if res.ErrorText == "" {
			res.ErrorText = "invalid JSON in response: " + truncate(data, 120)
		}
		return res
	}
	res.SuggestedQuestions = body.SuggestedQuestions
	res.Actions = body.Actions
	return res
}

func decodeGenerateResult(status int, data []byte) *GenerateResult {
	res := &GenerateResult{Status: status, Raw: data}
	if status < 200 || status >= 300 {
		res.ErrorText = errorField(data)
		return res
	}
	res.Statements = normalizeStatements(data)
	return res
}

// wrapperKeys is the fixed priority list of object keys the backend has
// been seen wrapping the ILO list under.
var wrapperKeys = []string{"ilos", "ILOs", "data", "results", "statements"}

// normalizeStatements accepts the three response shapes the generation
// endpoint produces - a bare array of statement-shaped objects, a string
// array, or an object wrapping the list under one of wrapperKeys - and
// flattens them to plain statements. Elements that resolve to an empty
// statement are dropped. An unrecognizable body yields nil.
func normalizeStatements(data []byte) []string {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		return statementsFromArray(arr)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	for _, key := range wrapperKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil
		}
		return statementsFromArray(arr)
	}
	return nil
}

func statementsFromArray(arr []json.RawMessage) []string {
	var out []string
	for _, raw := range arr {
		if s := statementFromElement(raw); strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// statementFromElement resolves one ILO element: either a bare string or
// an object carrying the text under statement, text or content.
func statementFromElement(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Statement string `json:"statement"`
		Text      string `json:"text"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if obj.Statement != "" {
		return obj.Statement
	}
	if obj.Text != "" {
		return obj.Text
	}
	return obj.Content
}

func decodeAnalyzeResult(status int, data []byte) *AnalyzeResult {
	res := &AnalyzeResult{Status: status}
	res.ErrorText = errorField(data)

	var body struct {
		Analysis string   `json:"analysis"`
		Message  string   `json:"message"`
		Actions  []Action `json:"actions"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		if res.ErrorText == "" {
			res.ErrorText = "invalid JSON in response: " + truncate(data, 120)
		}
		return res
	}
	if body.Analysis != "" {
		res.Text = body.Analysis
	} else {
		res.Text = body.Message
	}
	res.Actions = body.Actions
	return res
}

// truncate clips a raw body for diagnostics, on a rune boundary so CJK
// text is not cut mid-character.
func truncate(data []byte, n int) string {
	s := strings.TrimSpace(string(data))
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
