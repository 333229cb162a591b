package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to an Assistants-style REST API: threads, messages,
// runs and assistants under one base URL, bearer-token auth, JSON error
// envelope on failure.
type HTTPClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

func NewHTTPClient(baseURL, apiKey, model string, temperature float64) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &HTTPClient{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

type apiErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type apiThread struct {
	ID string `json:"id"`
}

type apiDeleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type apiRun struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type apiRunList struct {
	Data []apiRun `json:"data"`
}

type apiMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type apiMessageList struct {
	Data []apiMessage `json:"data"`
}

type apiAssistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

type apiAssistantList struct {
	Data []apiAssistant `json:"data"`
}

// normalizeStatus folds the service's extended run states onto the four
// the orchestrator models. Cancelled, expired and tool-call states count
// as failed since this client never submits tool outputs.
func normalizeStatus(s string) RunStatus {
	switch s {
	case "queued":
		return RunQueued
	case "in_progress", "cancelling":
		return RunInProgress
	case "completed":
		return RunCompleted
	default:
		return RunFailed
	}
}

func (r apiRun) toRun(fallbackThreadID string) *Run {
	run := &Run{ID: r.ID, ThreadID: r.ThreadID, Status: normalizeStatus(r.Status)}
	if run.ThreadID == "" {
		run.ThreadID = fallbackThreadID
	}
	if r.LastError != nil {
		run.ErrorCode = r.LastError.Code
		run.ErrorMessage = r.LastError.Message
	}
	if run.Status == RunFailed && run.ErrorCode == "" && r.Status != string(RunFailed) {
		run.ErrorCode = r.Status
	}
	return run
}

func (a apiAssistant) toAssistant() *Assistant {
	return &Assistant{ID: a.ID, Name: a.Name, Model: a.Model, Instructions: a.Instructions}
}

// do sends one JSON request and decodes the response into out (nil to
// discard). Failures come back as *RemoteError, already classified.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.Client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		var envelope apiErrorEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
			return classifyStatus(resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
		}
		return classifyStatus(resp.StatusCode, "", strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Category: CategoryPermanent, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

func (c *HTTPClient) CreateThread(ctx context.Context) (string, error) {
	var t apiThread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (c *HTTPClient) DeleteThread(ctx context.Context, threadID string) (bool, error) {
	var d apiDeleted
	if err := c.do(ctx, http.MethodDelete, "/threads/"+threadID, nil, &d); err != nil {
		return false, err
	}
	return d.Deleted, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, threadID, role, content string) error {
	body := map[string]string{"role": role, "content": content}
	return c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
}

func (c *HTTPClient) StartRun(ctx context.Context, assistantID, threadID string) (*Run, error) {
	body := map[string]any{"assistant_id": assistantID}
	if c.Model != "" {
		body["model"] = c.Model
	}
	if c.Temperature > 0 {
		body["temperature"] = c.Temperature
	}
	var r apiRun
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &r); err != nil {
		return nil, err
	}
	return r.toRun(threadID), nil
}

func (c *HTTPClient) PollRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var r apiRun
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &r); err != nil {
		return nil, err
	}
	return r.toRun(threadID), nil
}

func (c *HTTPClient) LatestRun(ctx context.Context, threadID string) (*Run, error) {
	var list apiRunList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs?limit=1&order=desc", nil, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return list.Data[0].toRun(threadID), nil
}

// ListMessages fetches the newest page of thread messages and returns it
// oldest first. Threads longer than one page lose their oldest entries;
// callers only ever need the recent tail.
func (c *HTTPClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var list apiMessageList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc&limit=100", nil, &list); err != nil {
		return nil, err
	}
	out := make([]ThreadMessage, 0, len(list.Data))
	for i := len(list.Data) - 1; i >= 0; i-- {
		m := list.Data[i]
		var b strings.Builder
		for _, part := range m.Content {
			if part.Type == "text" {
				b.WriteString(part.Text.Value)
			}
		}
		out = append(out, ThreadMessage{ID: m.ID, Role: m.Role, Content: b.String()})
	}
	return out, nil
}

func (c *HTTPClient) CreateAssistant(ctx context.Context, name, instructions string) (*Assistant, error) {
	body := map[string]any{"name": name, "instructions": instructions, "model": c.Model}
	var a apiAssistant
	if err := c.do(ctx, http.MethodPost, "/assistants", body, &a); err != nil {
		return nil, err
	}
	return a.toAssistant(), nil
}

func (c *HTTPClient) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	var a apiAssistant
	if err := c.do(ctx, http.MethodGet, "/assistants/"+assistantID, nil, &a); err != nil {
		return nil, err
	}
	return a.toAssistant(), nil
}

func (c *HTTPClient) ListAssistants(ctx context.Context, limit int) ([]Assistant, error) {
	if limit <= 0 {
		limit = 10
	}
	var list apiAssistantList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/assistants?limit=%d", limit), nil, &list); err != nil {
		return nil, err
	}
	out := make([]Assistant, 0, len(list.Data))
	for _, a := range list.Data {
		out = append(out, *a.toAssistant())
	}
	return out, nil
}

func (c *HTTPClient) UpdateAssistant(ctx context.Context, assistantID, instructions string) (*Assistant, error) {
	body := map[string]string{"instructions": instructions}
	var a apiAssistant
	if err := c.do(ctx, http.MethodPost, "/assistants/"+assistantID, body, &a); err != nil {
		return nil, err
	}
	return a.toAssistant(), nil
}

func (c *HTTPClient) DeleteAssistant(ctx context.Context, assistantID string) (bool, error) {
	var d apiDeleted
	if err := c.do(ctx, http.MethodDelete, "/assistants/"+assistantID, nil, &d); err != nil {
		return false, err
	}
	return d.Deleted, nil
}
