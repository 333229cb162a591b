package assistant

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const mockQuizJSON = `[{"question":"Which keyword starts a goroutine?","options":["go","run","spawn","async"],"answer":"go"},` +
	`{"question":"Which package implements JSON encoding?","options":["encoding/json","fmt","strconv","bytes"],"answer":"encoding/json"}]`

// MockClient is an in-memory stand-in for the remote service. Runs
// complete immediately and every user message gets a reply, so the full
// ask pipeline works without network access or an API key.
type MockClient struct {
	mu         sync.Mutex
	threads    map[string][]ThreadMessage
	runs       map[string]*Run
	assistants map[string]*Assistant

	// ReplyFn produces the assistant reply for the newest user message.
	// Leave nil for the default canned replies.
	ReplyFn func(lastUserMessage string) string
}

func NewMockClient() *MockClient {
	return &MockClient{
		threads:    make(map[string][]ThreadMessage),
		runs:       make(map[string]*Run),
		assistants: make(map[string]*Assistant),
	}
}

func defaultMockReply(lastUser string) string {
	if strings.Contains(lastUser, "quiz questions") {
		return mockQuizJSON
	}
	if lastUser == "" {
		return "Hello! This is a mock assistant."
	}
	return "Mock reply: " + lastUser
}

func mockNotFound(what string) *RemoteError {
	return &RemoteError{Category: CategoryPermanent, Code: "not_found", Message: what + " not found"}
}

func (m *MockClient) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "thread_mock_" + uuid.NewString()
	m.threads[id] = nil
	return id, nil
}

func (m *MockClient) DeleteThread(ctx context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return false, mockNotFound("thread")
	}
	delete(m.threads, threadID)
	delete(m.runs, threadID)
	return true, nil
}

func (m *MockClient) PostMessage(ctx context.Context, threadID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return mockNotFound("thread")
	}
	m.threads[threadID] = append(m.threads[threadID], ThreadMessage{
		ID:      "msg_mock_" + uuid.NewString(),
		Role:    role,
		Content: content,
	})
	return nil
}

func (m *MockClient) StartRun(ctx context.Context, assistantID, threadID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, mockNotFound("thread")
	}

	var lastUser string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			lastUser = msgs[i].Content
			break
		}
	}
	reply := defaultMockReply(lastUser)
	if m.ReplyFn != nil {
		reply = m.ReplyFn(lastUser)
	}

	m.threads[threadID] = append(msgs, ThreadMessage{
		ID:      "msg_mock_" + uuid.NewString(),
		Role:    "assistant",
		Content: reply,
	})

	run := &Run{ID: "run_mock_" + uuid.NewString(), ThreadID: threadID, Status: RunCompleted}
	m.runs[threadID] = run
	cp := *run
	return &cp, nil
}

func (m *MockClient) PollRun(ctx context.Context, threadID, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[threadID]
	if !ok || run.ID != runID {
		return nil, mockNotFound("run")
	}
	cp := *run
	return &cp, nil
}

func (m *MockClient) LatestRun(ctx context.Context, threadID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return nil, mockNotFound("thread")
	}
	run, ok := m.runs[threadID]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (m *MockClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, mockNotFound("thread")
	}
	return append([]ThreadMessage(nil), msgs...), nil
}

func (m *MockClient) CreateAssistant(ctx context.Context, name, instructions string) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &Assistant{
		ID:           "asst_mock_" + uuid.NewString(),
		Name:         name,
		Model:        "mock",
		Instructions: instructions,
	}
	m.assistants[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *MockClient) GetAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assistants[assistantID]
	if !ok {
		return nil, mockNotFound("assistant")
	}
	cp := *a
	return &cp, nil
}

func (m *MockClient) ListAssistants(ctx context.Context, limit int) ([]Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Assistant, 0, len(m.assistants))
	for _, a := range m.assistants {
		out = append(out, *a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockClient) UpdateAssistant(ctx context.Context, assistantID, instructions string) (*Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assistants[assistantID]
	if !ok {
		return nil, mockNotFound("assistant")
	}
	a.Instructions = instructions
	cp := *a
	return &cp, nil
}

func (m *MockClient) DeleteAssistant(ctx context.Context, assistantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assistants[assistantID]; !ok {
		return false, mockNotFound("assistant")
	}
	delete(m.assistants, assistantID)
	return true, nil
}
