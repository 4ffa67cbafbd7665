package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ilochat/internal/api"
	"ilochat/internal/cascade"
	"ilochat/internal/logging"
	"ilochat/internal/taxonomy"
)

// Literal texts surfaced in the conversation.
const (
	textEmptyReply        = "（沒有收到回覆內容）"
	textAnalyzeDone       = "分析完成"
	textConnectionFailure = "無法連線到伺服器，請檢查網絡後再試。"
)

// defaultPractice is sent with generation requests until the user accepts
// a disciplinary-practice recommendation.
const defaultPractice = "General Inquiry"

var (
	// ErrBusy means another chat, generation or analysis call is in
	// flight. The request is dropped, not queued.
	ErrBusy = errors.New("conversation: request already in flight")
	// ErrNothingToSend means the text was empty and no file is pending.
	ErrNothingToSend = errors.New("conversation: nothing to send")
)

// ReadinessError reports why generation cannot start yet.
type ReadinessError struct {
	Violation cascade.Violation
}

func (e *ReadinessError) Error() string { return e.Violation.Message() }

// Backend is the slice of the API client the engine calls. Errors are
// transport-level only; any HTTP response arrives as a result value.
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResult, error)
	GenerateILOs(ctx context.Context, req api.GenerateRequest) (*api.GenerateResult, error)
	AnalyzeDocument(ctx context.Context, req api.AnalyzeRequest) (*api.AnalyzeResult, error)
	SuggestDP(ctx context.Context, req api.SuggestDPRequest) (*api.DPRecommendation, error)
}

// Engine owns the message history and the single-flight discipline over
// chat, generation and analysis. It reads the selection state but never
// mutates it; all selection changes go through the cascade store. An
// in-flight call is never cancelled or timed out: once issued it runs to
// completion and the engine waits, returning to idle on every exit path.
type Engine struct {
	mu        sync.Mutex
	backend   Backend
	selection *cascade.Store
	catalog   *taxonomy.Catalog
	locale    string
	practice  string
	busy      bool
	messages  []Message
	pending   *Attachment
	directive *Directive
}

// NewEngine creates an idle engine with an empty history.
func NewEngine(backend Backend, selection *cascade.Store, catalog *taxonomy.Catalog, locale string) *Engine {
	return &Engine{
		backend:   backend,
		selection: selection,
		catalog:   catalog,
		locale:    locale,
	}
}

// Rebase swaps the backend client and locale after a config reload. It
// takes effect for the next request; an in-flight call completes against
// the old backend.
func (e *Engine) Rebase(backend Backend, locale string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = backend
	if locale != "" {
		e.locale = locale
	}
}

// Messages returns a snapshot copy of the history.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Busy reports whether a chat, generation or analysis call is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Directive returns the active display directive, or nil.
func (e *Engine) Directive() *Directive {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.directive
}

// ClearDirective dismisses the active display directive.
func (e *Engine) ClearDirective() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.directive = nil
}

// Practice returns the disciplinary practice used for generation.
func (e *Engine) Practice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.practice == "" {
		return defaultPractice
	}
	return e.practice
}

// SetPractice overrides the disciplinary practice used for generation.
func (e *Engine) SetPractice(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.practice = p
}

// AttachFile stages a document for analysis with the next Submit. A
// previously staged file is replaced.
func (e *Engine) AttachFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot attach %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot attach %s: is a directory", path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = &Attachment{Name: filepath.Base(path), Path: path}
	return nil
}

// Pending returns the staged attachment, or nil.
func (e *Engine) Pending() *Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Restore replaces the history with a previously saved transcript. Only
// valid while idle; used when loading a saved session.
func (e *Engine) Restore(msgs []Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.messages = append([]Message(nil), msgs...)
	e.directive = nil
	return nil
}

// Submit sends one user turn. When a file is staged the whole turn is
// routed to the analysis flow instead of chat; the staged file is cleared
// before the upload starts and cannot be resubmitted. While busy, or when
// there is neither text nor a staged file, the call is rejected without
// any state change. The call blocks until the backend answers.
func (e *Engine) Submit(ctx context.Context, text string, suggested bool) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && e.pending == nil {
		e.mu.Unlock()
		return ErrNothingToSend
	}

	if att := e.pending; att != nil {
		// Route to analysis. The pending reference is cleared here,
		// before the network call, and is gone even if the upload fails.
		e.pending = nil
		if trimmed != "" {
			e.appendLocked(Message{Role: RoleUser, Text: text})
		}
		e.appendLocked(Message{Role: RoleUser, Text: fmt.Sprintf("（已上傳文件：%s）", att.Name)})
		e.busy = true
		sel := e.selection.State()
		e.mu.Unlock()
		e.runAnalyze(ctx, att, trimmed, sel)
		return nil
	}

	e.appendLocked(Message{Role: RoleUser, Text: text})
	e.busy = true
	req := buildChatRequest(text, suggested, e.selection.State(), e.catalog, e.locale, e.messages)
	e.mu.Unlock()
	e.runChat(ctx, req)
	return nil
}

func (e *Engine) runChat(ctx context.Context, req api.ChatRequest) {
	logging.ChatDebug("sending turn: %d history entries", len(req.ConversationHistory))
	res, err := e.backend.Chat(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.busy = false }()

	if err != nil {
		logging.Get(logging.CategoryChat).Error("transport failure: %v", err)
		e.appendLocked(Message{Role: RoleBot, Text: textConnectionFailure})
		return
	}
	if res.OK() {
		text := res.Reply
		if strings.TrimSpace(text) == "" {
			text = textEmptyReply
		}
		e.appendLocked(Message{Role: RoleBot, Text: text, SuggestedQuestions: res.SuggestedQuestions})
		e.applyActionsLocked(res.Actions)
		return
	}

	// Recovered failure: surface the best-available detail as a bot
	// message so the user is never left waiting with no feedback.
	logging.Get(logging.CategoryChat).Warn("chat returned HTTP %d: %s", res.Status, res.ErrorText)
	text := res.Reply
	if text == "" {
		text = res.ErrorText
	}
	if text == "" {
		text = fmt.Sprintf("HTTP %d 錯誤", res.Status)
	}
	e.appendLocked(Message{Role: RoleBot, Text: text})
}

func (e *Engine) runAnalyze(ctx context.Context, att *Attachment, message string, sel cascade.State) {
	finish := func(m Message) {
		e.mu.Lock()
		e.appendLocked(m)
		e.busy = false
		e.mu.Unlock()
	}

	f, err := os.Open(att.Path)
	if err != nil {
		logging.Get(logging.CategoryAnalyze).Error("cannot open %s: %v", att.Path, err)
		finish(Message{Role: RoleBot, Text: fmt.Sprintf("無法讀取文件：%s", att.Name)})
		return
	}
	defer f.Close()

	req := api.AnalyzeRequest{
		FileName: att.Name,
		File:     f,
		Message:  message,
	}
	if subject := e.catalog.SubjectByID(sel.SubjectID); subject != nil {
		req.Subject = taxonomy.ResolveName(subject, e.locale)
	}
	if grade := e.catalog.GradeByID(sel.GradeID); grade != nil {
		req.Grade = taxonomy.ResolveName(grade, e.locale)
	}
	req.Topic = strings.TrimSpace(sel.Topic)

	logging.Analyze("uploading %s", att.Name)
	res, err := e.backend.AnalyzeDocument(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.busy = false }()

	if err != nil {
		logging.Get(logging.CategoryAnalyze).Error("upload failed: %v", err)
		e.appendLocked(Message{Role: RoleBot, Text: textConnectionFailure})
		return
	}
	if res.OK() {
		text := res.Text
		if strings.TrimSpace(text) == "" {
			text = textAnalyzeDone
		}
		e.appendLocked(Message{Role: RoleBot, Text: text})
		e.applyActionsLocked(res.Actions)
		return
	}
	text := res.ErrorText
	if text == "" {
		text = fmt.Sprintf("HTTP %d 錯誤", res.Status)
	}
	e.appendLocked(Message{Role: RoleBot, Text: text})
}

// Generate requests ILOs for the current selection. The readiness
// predicate gates the call: the first violated condition is returned as a
// ReadinessError and nothing is sent.
func (e *Engine) Generate(ctx context.Context) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	if v := e.selection.Check(); v != cascade.ViolationNone {
		e.mu.Unlock()
		return &ReadinessError{Violation: v}
	}
	e.busy = true
	practice := e.practice
	if practice == "" {
		practice = defaultPractice
	}
	req := buildGenerateRequest(e.selection.State(), e.catalog, e.locale, practice)
	e.mu.Unlock()

	logging.Generate("requesting ILOs: topic=%q category=%q bloom=%q", req.Topic, req.Category, req.BloomLevel)
	res, err := e.backend.GenerateILOs(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.busy = false }()

	if err != nil {
		logging.Get(logging.CategoryGenerate).Error("transport failure: %v", err)
		e.appendLocked(Message{Role: RoleBot, Text: textConnectionFailure})
		return nil
	}
	if !res.OK() {
		text := res.ErrorText
		if text == "" {
			text = fmt.Sprintf("HTTP %d 錯誤", res.Status)
		}
		e.appendLocked(Message{Role: RoleBot, Text: text})
		return nil
	}
	if len(res.Statements) == 0 {
		// Never fail silently: surface a diagnostic with the raw body so
		// the user sees what came back.
		e.appendLocked(Message{
			Role: RoleBot,
			Text: "未能解析生成結果。原始回應：" + excerpt(res.Raw, 200),
		})
		return nil
	}

	ilos := make([]ILO, len(res.Statements))
	for i, s := range res.Statements {
		ilos[i] = ILO{Statement: s}
	}
	e.appendLocked(Message{
		Role: RoleBot,
		Text: fmt.Sprintf("已為你生成 %d 條學習成果（ILO）：", len(ilos)),
		ILOs: ilos,
	})
	return nil
}

// SuggestDP asks the backend to recommend a disciplinary practice for the
// current topic and subject. An accepted recommendation becomes the
// practice sent with later generation requests.
func (e *Engine) SuggestDP(ctx context.Context) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.busy = true
	sel := e.selection.State()
	req := api.SuggestDPRequest{Topic: strings.TrimSpace(sel.Topic)}
	if subject := e.catalog.SubjectByID(sel.SubjectID); subject != nil {
		req.Subject = taxonomy.ResolveName(subject, e.locale)
	}
	e.mu.Unlock()

	rec, err := e.backend.SuggestDP(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.busy = false }()

	if err != nil {
		logging.Get(logging.CategoryChat).Warn("suggest_dp failed: %v", err)
		e.appendLocked(Message{Role: RoleBot, Text: fmt.Sprintf("無法取得 Disciplinary Practice 建議：%v", err)})
		return nil
	}
	e.practice = rec.RecommendedDP
	e.appendLocked(Message{
		Role: RoleBot,
		Text: fmt.Sprintf("建議的 Disciplinary Practice：%s\n\n%s", rec.RecommendedDP, rec.Reason),
	})
	return nil
}

// appendLocked appends a message with a fresh local id. Caller holds e.mu.
func (e *Engine) appendLocked(m Message) {
	m.ID = uuid.NewString()
	m.Time = time.Now()
	e.messages = append(e.messages, m)
}

// applyActionsLocked installs the directive for the first matching action,
// replacing any previously active one. Caller holds e.mu.
func (e *Engine) applyActionsLocked(actions []api.Action) {
	if d := firstPatternDirective(actions); d != nil {
		e.directive = d
	}
}

// excerpt clips a raw response for a diagnostic message.
func excerpt(data []byte, n int) string {
	s := strings.TrimSpace(string(data))
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
