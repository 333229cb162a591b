package assistant

import "context"

type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Run is one execution of an assistant over a thread's messages.
type Run struct {
	ID           string
	ThreadID     string
	Status       RunStatus
	ErrorCode    string
	ErrorMessage string
}

// ThreadMessage is a single message held on the remote thread.
type ThreadMessage struct {
	ID      string
	Role    string
	Content string
}

type Assistant struct {
	ID           string
	Name         string
	Model        string
	Instructions string
}

// Client is the remote conversation service surface. Implementations must
// classify their failures as *RemoteError so callers can make retry
// decisions without inspecting error text.
type Client interface {
	CreateThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) (bool, error)
	PostMessage(ctx context.Context, threadID, role, content string) error
	StartRun(ctx context.Context, assistantID, threadID string) (*Run, error)
	PollRun(ctx context.Context, threadID, runID string) (*Run, error)
	// LatestRun returns the newest run on the thread, or nil if the thread
	// has never been run.
	LatestRun(ctx context.Context, threadID string) (*Run, error)
	// ListMessages returns the thread's messages oldest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)

	CreateAssistant(ctx context.Context, name, instructions string) (*Assistant, error)
	GetAssistant(ctx context.Context, assistantID string) (*Assistant, error)
	ListAssistants(ctx context.Context, limit int) ([]Assistant, error)
	UpdateAssistant(ctx context.Context, assistantID, instructions string) (*Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) (bool, error)
}
