package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ilochat/internal/taxonomy"
)

// Endpoint paths on the assistant backend.
const (
	pathSubjects    = "/api/subjects"
	pathGradeLevels = "/api/grade-levels"
	pathCategories  = "/api/ilo-categories"
	pathBloomLevels = "/api/bloom-taxonomy-levels"
	pathPatterns    = "/api/chatbot/patterns/intended-learning-outcomes"
	pathChat        = "/api/chat"
	pathGenerate    = "/api/generate_ilos"
	pathAnalyze     = "/api/analyze-document"
	pathSuggestDP   = "/api/suggest_dp"
)

// Config holds what the client needs to talk to the backend.
type Config struct {
	// BaseURL of the backend, e.g. http://localhost:5000.
	BaseURL string
	// Locale sent with taxonomy list requests.
	Locale string
	// Token, when set, is sent as a bearer Authorization header.
	Token string
	// ListTimeout bounds taxonomy list calls. Chat, generation and
	// analysis calls are issued without a timeout: once sent they run to
	// completion and the engine waits.
	ListTimeout time.Duration
}

// Client talks to the LDS assistant backend. Write-path calls (chat,
// generate, analyze) carry no timeout, no retries and no cancellation;
// list calls are bounded by ListTimeout and remain cancellable through
// their context.
type Client struct {
	baseURL     string
	locale      string
	token       string
	listTimeout time.Duration
	httpClient  *http.Client
}

// New creates a client for the given backend.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.ListTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     base,
		locale:      cfg.Locale,
		token:       cfg.Token,
		listTimeout: timeout,
		// No Timeout on the shared client: write-path requests must be
		// allowed to run as long as the backend takes.
		httpClient: &http.Client{},
	}
}

// BaseURL returns the backend base address the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// postJSON issues a POST and returns the status and raw body. The returned
// error is non-nil only for transport-level failures (no response at all)
// or request construction problems.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// listBody is the request body shared by the taxonomy list endpoints.
type listBody struct {
	Locale string `json:"locale,omitempty"`
}

func (c *Client) postList(ctx context.Context, path string, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()
	status, data, err := c.postJSON(ctx, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("backend returned HTTP %d: %s", status, truncate(data, 200))
	}
	return data, nil
}

// ListSubjects fetches the subject taxonomy. Non-array bodies decode to an
// empty list.
func (c *Client) ListSubjects(ctx context.Context) ([]taxonomy.Entity, error) {
	data, err := c.postList(ctx, pathSubjects, listBody{Locale: c.locale})
	if err != nil {
		return nil, err
	}
	return decodeList[taxonomy.Entity](data), nil
}

// ListGradeLevels fetches the grade-level taxonomy.
func (c *Client) ListGradeLevels(ctx context.Context) ([]taxonomy.Entity, error) {
	data, err := c.postList(ctx, pathGradeLevels, listBody{Locale: c.locale})
	if err != nil {
		return nil, err
	}
	return decodeList[taxonomy.Entity](data), nil
}

// ListCategories fetches the ILO category taxonomy.
func (c *Client) ListCategories(ctx context.Context) ([]taxonomy.Category, error) {
	data, err := c.postList(ctx, pathCategories, listBody{Locale: c.locale})
	if err != nil {
		return nil, err
	}
	return decodeList[taxonomy.Category](data), nil
}

// ListBloomLevels fetches the Bloom taxonomy levels with their verb lists.
func (c *Client) ListBloomLevels(ctx context.Context) ([]taxonomy.BloomLevel, error) {
	data, err := c.postList(ctx, pathBloomLevels, listBody{Locale: c.locale})
	if err != nil {
		return nil, err
	}
	return decodeList[taxonomy.BloomLevel](data), nil
}

// ListPatterns fetches the ILO pattern templates. The patterns endpoint
// takes an empty body.
func (c *Client) ListPatterns(ctx context.Context) ([]taxonomy.Pattern, error) {
	data, err := c.postList(ctx, pathPatterns, struct{}{})
	if err != nil {
		return nil, err
	}
	return decodeList[taxonomy.Pattern](data), nil
}

// Chat sends one chat turn. The returned error is non-nil only for
// transport failures; any HTTP response is decoded into a ChatResult.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	status, data, err := c.postJSON(ctx, pathChat, req)
	if err != nil {
		return nil, err
	}
	return decodeChatResult(status, data), nil
}

// GenerateILOs requests ILO generation. The returned error is non-nil only
// for transport failures.
func (c *Client) GenerateILOs(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	status, data, err := c.postJSON(ctx, pathGenerate, req)
	if err != nil {
		return nil, err
	}
	return decodeGenerateResult(status, data), nil
}

// AnalyzeRequest is a document upload with its optional context fields.
type AnalyzeRequest struct {
	FileName string
	File     io.Reader
	Message  string
	Subject  string
	Grade    string
	Topic    string
}

// AnalyzeDocument uploads a document for analysis as a multipart form. The
// returned error is non-nil only when the upload itself fails.
func (c *Client) AnalyzeDocument(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	for field, value := range map[string]string{
		"message": req.Message,
		"subject": req.Subject,
		"grade":   req.Grade,
		"topic":   req.Topic,
	} {
		if value == "" {
			continue
		}
		if err := w.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAnalyze, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeAnalyzeResult(resp.StatusCode, data), nil
}

// SuggestDP asks the backend to pick the best disciplinary practice for
// the given course context.
func (c *Client) SuggestDP(ctx context.Context, req SuggestDPRequest) (*DPRecommendation, error) {
	status, data, err := c.postJSON(ctx, pathSuggestDP, req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		if msg := errorField(data); msg != "" {
			return nil, fmt.Errorf("suggest_dp failed: %s", msg)
		}
		return nil, fmt.Errorf("suggest_dp failed: HTTP %d", status)
	}
	var rec DPRecommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation: %w", err)
	}
	return &rec, nil
}
