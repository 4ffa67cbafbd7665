package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilochat/internal/api"
	"ilochat/internal/cascade"
	"ilochat/internal/taxonomy"
)

func seedCatalog(t *testing.T, c *taxonomy.Catalog) {
	t.Helper()
	ctx := context.Background()
	c.Subjects.Load(ctx, func(context.Context) ([]taxonomy.Entity, error) {
		return []taxonomy.Entity{{ID: 1, Name: "Science"}}, nil
	})
	c.Grades.Load(ctx, func(context.Context) ([]taxonomy.Entity, error) {
		return []taxonomy.Entity{{ID: 2, Name: "Secondary 3"}}, nil
	})
	c.Categories.Load(ctx, func(context.Context) ([]taxonomy.Category, error) {
		return []taxonomy.Category{
			{Entity: taxonomy.Entity{ID: 10, Name: "Knowledge"}, ShowBloomTaxonomy: true, RequireBloomTaxonomy: true},
			{Entity: taxonomy.Entity{ID: 11, Name: "Values"}},
		}, nil
	})
	c.BloomLevels.Load(ctx, func(context.Context) ([]taxonomy.BloomLevel, error) {
		return []taxonomy.BloomLevel{{
			Entity: taxonomy.Entity{ID: 20, Name: "Apply"},
			Verbs:  []taxonomy.Verb{{ID: 30, Name: "demonstrate"}, {ID: 31, Name: "solve"}},
		}}, nil
	})
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *cascade.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.New(api.Config{BaseURL: srv.URL, Locale: "zh_HK"})
	catalog := taxonomy.NewCatalog(client)
	seedCatalog(t, catalog)
	sel := cascade.NewStore(catalog)
	return NewEngine(client, sel, catalog, "zh_HK"), sel
}

func TestSubmitChatRoundTrip(t *testing.T) {
	var got api.ChatRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{
			"chat_message_reply": {"text": "光合作用是植物利用光能製造養分的過程。"},
			"suggested_questions": ["葉綠素的作用是甚麼？"],
			"actions": [{
				"action_type": "show_pattern",
				"target": {"context": ""},
				"payload": {"patterns": [{"id": 5, "name": "SWBAT"}]},
				"ui": {}
			}]
		}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("  光合作用  ")
	sel.SetSubject(1)
	sel.SetGrade(2)

	require.NoError(t, engine.Submit(context.Background(), "什麼是光合作用？", false))

	assert.Equal(t, "什麼是光合作用？", got.Message)
	assert.Equal(t, "光合作用", got.Topic)
	assert.Equal(t, "Science", got.Subject)
	assert.Equal(t, "Secondary 3", got.Grade)
	assert.False(t, got.IsSuggestedQuestion)
	// The just-submitted user message is part of the replayed history.
	require.Len(t, got.ConversationHistory, 1)
	assert.Equal(t, "user", got.ConversationHistory[0].Role)

	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleBot, msgs[1].Role)
	assert.Equal(t, "光合作用是植物利用光能製造養分的過程。", msgs[1].Text)
	assert.Equal(t, []string{"葉綠素的作用是甚麼？"}, msgs[1].SuggestedQuestions)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	d := engine.Directive()
	require.NotNil(t, d)
	assert.Equal(t, "popup", d.Presentation)
	assert.Equal(t, "ILO", d.Context)
	require.Len(t, d.Patterns, 1)
	assert.Equal(t, 5, d.Patterns[0].ID)

	assert.False(t, engine.Busy())
}

func TestSubmitSuggestedQuestionFlag(t *testing.T) {
	var got api.ChatRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"chat_message_reply": {"text": "好的。"}}`)
	})
	engine, _ := newTestEngine(t, handler)

	require.NoError(t, engine.Submit(context.Background(), "葉綠素的作用是甚麼？", true))
	assert.True(t, got.IsSuggestedQuestion)
}

func TestSubmitEmptyReplyPlaceholder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chat_message_reply": {"text": "   "}}`)
	})
	engine, _ := newTestEngine(t, handler)

	require.NoError(t, engine.Submit(context.Background(), "hello", false))
	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "（沒有收到回覆內容）", msgs[1].Text)
}

func TestSubmitRecoveredFailure(t *testing.T) {
	fail := true
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "model overloaded"}`)
			return
		}
		fmt.Fprint(w, `{"chat_message_reply": {"text": "ok"}}`)
	})
	engine, _ := newTestEngine(t, handler)

	require.NoError(t, engine.Submit(context.Background(), "hello", false))
	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "model overloaded", msgs[1].Text)
	assert.False(t, engine.Busy())

	// A failed turn must not wedge the engine.
	fail = false
	require.NoError(t, engine.Submit(context.Background(), "again", false))
	msgs = engine.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "ok", msgs[3].Text)
}

func TestSubmitHTTPStatusFallback(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{}`)
	})
	engine, _ := newTestEngine(t, handler)

	require.NoError(t, engine.Submit(context.Background(), "hello", false))
	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "HTTP 502")
}

func TestSubmitTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := api.New(api.Config{BaseURL: srv.URL})
	catalog := taxonomy.NewCatalog(client)
	sel := cascade.NewStore(catalog)
	engine := NewEngine(client, sel, catalog, "zh_HK")

	require.NoError(t, engine.Submit(context.Background(), "hello", false))
	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, textConnectionFailure, msgs[1].Text)
	assert.False(t, engine.Busy())
}

func TestSubmitRejectsEmpty(t *testing.T) {
	engine, _ := newTestEngine(t, http.NotFoundHandler())

	err := engine.Submit(context.Background(), "   \n\t", false)
	require.ErrorIs(t, err, ErrNothingToSend)
	assert.Empty(t, engine.Messages())
}

func TestBusyRejectsConcurrentRequests(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		fmt.Fprint(w, `{"chat_message_reply": {"text": "slow reply"}}`)
	})
	engine, _ := newTestEngine(t, handler)

	done := make(chan error, 1)
	go func() { done <- engine.Submit(context.Background(), "first", false) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	assert.True(t, engine.Busy())

	assert.ErrorIs(t, engine.Submit(context.Background(), "second", false), ErrBusy)
	assert.ErrorIs(t, engine.Generate(context.Background()), ErrBusy)
	assert.ErrorIs(t, engine.SuggestDP(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, engine.Busy())

	// The dropped submits left no trace in the history.
	msgs := engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "slow reply", msgs[1].Text)
}

func TestHistoryWindowAndRoleMapping(t *testing.T) {
	var got api.ChatRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"chat_message_reply": {"text": "ok"}}`)
	})
	engine, _ := newTestEngine(t, handler)

	seed := make([]Message, 0, 12)
	for i := 0; i < 12; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleBot
		}
		seed = append(seed, Message{Role: role, Text: fmt.Sprintf("msg-%d", i)})
	}
	require.NoError(t, engine.Restore(seed))

	require.NoError(t, engine.Submit(context.Background(), "latest", false))

	// Window of 10 over 13 stored messages: msg-3 .. msg-11 plus the new
	// user turn, oldest first.
	require.Len(t, got.ConversationHistory, 10)
	assert.Equal(t, "msg-3", got.ConversationHistory[0].Content)
	assert.Equal(t, "latest", got.ConversationHistory[9].Content)
	for _, entry := range got.ConversationHistory {
		if strings.HasPrefix(entry.Content, "msg-") {
			continue
		}
		assert.Equal(t, "user", entry.Role)
	}
	assert.Equal(t, "assistant", got.ConversationHistory[0].Role) // msg-3 came from the bot
}

func TestHistoryDropsBlankMessages(t *testing.T) {
	var got api.ChatRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"chat_message_reply": {"text": "ok"}}`)
	})
	engine, _ := newTestEngine(t, handler)
	require.NoError(t, engine.Restore([]Message{
		{Role: RoleUser, Text: "real question"},
		{Role: RoleBot, Text: "   "},
	}))

	require.NoError(t, engine.Submit(context.Background(), "next", false))
	require.Len(t, got.ConversationHistory, 2)
	assert.Equal(t, "real question", got.ConversationHistory[0].Content)
	assert.Equal(t, "next", got.ConversationHistory[1].Content)
}

func TestGenerateReadinessOrder(t *testing.T) {
	engine, sel := newTestEngine(t, http.NotFoundHandler())
	ctx := context.Background()

	requireViolation := func(want cascade.Violation) {
		t.Helper()
		err := engine.Generate(ctx)
		var rerr *ReadinessError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, want, rerr.Violation)
	}

	requireViolation(cascade.ViolationMissingTopic)
	sel.SetTopic("光合作用")
	requireViolation(cascade.ViolationMissingCategory)
	sel.SetCategory(10) // requires a Bloom level
	requireViolation(cascade.ViolationMissingBloomLevel)
	sel.SetBloomLevel(20)
	// Selecting a Bloom level auto-selects its first verb, so the verb
	// violation needs the verb cleared explicitly.
	sel.SetVerb(0)
	requireViolation(cascade.ViolationMissingVerb)
}

func TestGenerateSuccess(t *testing.T) {
	var got api.GenerateRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate_ilos", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ilos": [
			{"statement": "Students will be able to explain photosynthesis."},
			{"statement": "Students will be able to demonstrate the light reaction."}
		]}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("光合作用")
	sel.SetSubject(1)
	sel.SetGrade(2)
	sel.SetCategory(10)
	sel.SetBloomLevel(20)

	require.NoError(t, engine.Generate(context.Background()))

	assert.Equal(t, "光合作用", got.Topic)
	assert.Equal(t, "Science", got.Subject)
	assert.Equal(t, "Knowledge", got.Category)
	assert.Equal(t, "Apply", got.BloomLevel)
	assert.Equal(t, "demonstrate", got.ActionVerb) // auto-selected first verb
	assert.Equal(t, "General Inquiry", got.DisciplinaryPractice)

	msgs := engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "已為你生成 2 條學習成果（ILO）：", msgs[0].Text)
	require.Len(t, msgs[0].ILOs, 2)
	assert.Equal(t, "Students will be able to explain photosynthesis.", msgs[0].ILOs[0].Statement)
	assert.False(t, engine.Busy())
}

func TestGenerateUnparseableResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected": true}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("光合作用")
	sel.SetCategory(11) // no Bloom requirement

	require.NoError(t, engine.Generate(context.Background()))
	msgs := engine.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "未能解析生成結果")
	assert.Contains(t, msgs[0].Text, `"unexpected"`)
	assert.Empty(t, msgs[0].ILOs)
}

func TestGenerateServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "quota exceeded"}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("光合作用")
	sel.SetCategory(11)

	require.NoError(t, engine.Generate(context.Background()))
	msgs := engine.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "quota exceeded", msgs[0].Text)
	assert.False(t, engine.Busy())
}

func TestAnalyzeFlow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson-plan.txt")
	require.NoError(t, os.WriteFile(path, []byte("unit outline"), 0o644))

	var gotFile, gotMessage, gotSubject, gotTopic string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/analyze-document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "unit outline", string(data))
		gotFile = header.Filename
		gotMessage = r.FormValue("message")
		gotSubject = r.FormValue("subject")
		gotTopic = r.FormValue("topic")
		fmt.Fprint(w, `{"analysis": "這份教案集中於光合作用的實驗部分。"}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("光合作用")
	sel.SetSubject(1)

	require.NoError(t, engine.AttachFile(path))
	require.NotNil(t, engine.Pending())

	require.NoError(t, engine.Submit(context.Background(), "請分析這份教案", false))

	assert.Equal(t, "lesson-plan.txt", gotFile)
	assert.Equal(t, "請分析這份教案", gotMessage)
	assert.Equal(t, "Science", gotSubject)
	assert.Equal(t, "光合作用", gotTopic)
	assert.Nil(t, engine.Pending())

	msgs := engine.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "請分析這份教案", msgs[0].Text)
	assert.Contains(t, msgs[1].Text, "lesson-plan.txt")
	assert.Equal(t, "這份教案集中於光合作用的實驗部分。", msgs[2].Text)
}

func TestAnalyzeWithoutMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	engine, _ := newTestEngine(t, handler)
	require.NoError(t, engine.AttachFile(path))

	// Empty text is allowed when a file is staged.
	require.NoError(t, engine.Submit(context.Background(), "", false))

	msgs := engine.Messages()
	require.Len(t, msgs, 2) // upload notice and the fallback reply
	assert.Contains(t, msgs[0].Text, "notes.txt")
	assert.Equal(t, "分析完成", msgs[1].Text)
}

func TestAnalyzeFailureClearsPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "unsupported file type"}`)
	})
	engine, _ := newTestEngine(t, handler)
	require.NoError(t, engine.AttachFile(path))

	require.NoError(t, engine.Submit(context.Background(), "analyze", false))

	// The staged file is consumed by the attempt, success or not.
	assert.Nil(t, engine.Pending())
	msgs := engine.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "unsupported file type", msgs[2].Text)
	assert.False(t, engine.Busy())
}

func TestAttachFileRejectsMissing(t *testing.T) {
	engine, _ := newTestEngine(t, http.NotFoundHandler())
	require.Error(t, engine.AttachFile(filepath.Join(t.TempDir(), "nope.pdf")))
	assert.Nil(t, engine.Pending())
}

func TestSuggestDP(t *testing.T) {
	var got api.SuggestDPRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/suggest_dp", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"recommended_dp": "Scientific Inquiry", "reason": "The topic is experiment driven."}`)
	})
	engine, sel := newTestEngine(t, handler)
	sel.SetTopic("光合作用")
	sel.SetSubject(1)

	assert.Equal(t, "General Inquiry", engine.Practice())
	require.NoError(t, engine.SuggestDP(context.Background()))

	assert.Equal(t, "光合作用", got.Topic)
	assert.Equal(t, "Science", got.Subject)
	assert.Equal(t, "Scientific Inquiry", engine.Practice())

	msgs := engine.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Scientific Inquiry")
	assert.Contains(t, msgs[0].Text, "experiment driven")
}

func TestDirectiveReplacementAndClear(t *testing.T) {
	n := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		fmt.Fprintf(w, `{
			"chat_message_reply": {"text": "reply %d"},
			"actions": [{
				"action_type": "show_pattern",
				"payload": {"patterns": [{"id": %d}]},
				"ui": {"presentation": "inline"}
			}]
		}`, n, n)
	})
	engine, _ := newTestEngine(t, handler)
	ctx := context.Background()

	require.NoError(t, engine.Submit(ctx, "one", false))
	d := engine.Directive()
	require.NotNil(t, d)
	assert.Equal(t, 1, d.Patterns[0].ID)
	assert.Equal(t, "inline", d.Presentation)

	require.NoError(t, engine.Submit(ctx, "two", false))
	d = engine.Directive()
	require.NotNil(t, d)
	assert.Equal(t, 2, d.Patterns[0].ID)

	engine.ClearDirective()
	assert.Nil(t, engine.Directive())
}
