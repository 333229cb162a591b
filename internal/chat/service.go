package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

const randomFactPrompt = "Give me a random interesting technical fact."

// Service runs the full ask pipeline: resolve the thread for (user,
// mode), persist the user message, drive the remote run, persist the
// reply.
type Service struct {
	repo       *Repo
	client     assistant.Client
	resolver   *Resolver
	orch       *Orchestrator
	assistants map[string]string // mode -> assistant id
}

func NewService(repo *Repo, client assistant.Client, resolver *Resolver, orch *Orchestrator, assistants map[string]string) *Service {
	return &Service{
		repo:       repo,
		client:     client,
		resolver:   resolver,
		orch:       orch,
		assistants: assistants,
	}
}

// AssistantFor maps a mode onto its configured assistant id.
func (s *Service) AssistantFor(mode string) (string, error) {
	if id, ok := s.assistants[mode]; ok && id != "" {
		return id, nil
	}
	return "", fmt.Errorf("chat: no assistant configured for mode %q", mode)
}

// SendMessage is the synchronous ask pipeline. The user message is
// persisted before the remote call and stays persisted if it fails; the
// assistant reply is persisted after.
func (s *Service) SendMessage(ctx context.Context, userID uint64, mode, content string) (threadID, reply string, assistantMsgID uint64, err error) {
	if !ValidMode(mode) {
		return "", "", 0, fmt.Errorf("mode=%q: %w", mode, ErrInvalidMode)
	}
	assistantID, err := s.AssistantFor(mode)
	if err != nil {
		return "", "", 0, err
	}

	threadID, err = s.resolver.Resolve(ctx, userID, mode)
	if err != nil {
		return "", "", 0, err
	}

	if _, err := s.repo.AddMessage(ctx, threadID, RoleUser, content); err != nil {
		return threadID, "", 0, err
	}

	reply, err = s.orch.Ask(ctx, assistantID, threadID, content)
	if err != nil {
		return threadID, "", 0, err
	}

	m, err := s.repo.AddMessage(ctx, threadID, RoleAssistant, reply)
	if err != nil {
		return threadID, "", 0, err
	}
	return threadID, reply, m.ID, nil
}

// RandomFact asks the random-facts assistant for one fact on the user's
// random-mode thread.
func (s *Service) RandomFact(ctx context.Context, userID uint64) (string, string, uint64, error) {
	return s.SendMessage(ctx, userID, ModeRandom, randomFactPrompt)
}

// GenerateQuiz produces a parsed quiz for the topic on the user's quiz
// thread. The prompt is persisted up front, the raw reply after success.
func (s *Service) GenerateQuiz(ctx context.Context, userID uint64, topic string) (string, []QuizItem, error) {
	assistantID, err := s.AssistantFor(ModeQuiz)
	if err != nil {
		return "", nil, err
	}

	threadID, err := s.resolver.Resolve(ctx, userID, ModeQuiz)
	if err != nil {
		return "", nil, err
	}

	prompt := QuizPrompt(topic)
	if _, err := s.repo.AddMessage(ctx, threadID, RoleUser, prompt); err != nil {
		return threadID, nil, err
	}

	raw, items, err := s.orch.AskQuiz(ctx, assistantID, threadID, prompt)
	if err != nil {
		return threadID, nil, err
	}

	if _, err := s.repo.AddMessage(ctx, threadID, RoleAssistant, raw); err != nil {
		return threadID, nil, err
	}
	return threadID, items, nil
}

// Transcript returns the stored conversation for (user, mode), oldest
// first. Reading never creates a thread.
func (s *Service) Transcript(ctx context.Context, userID uint64, mode string) (string, []Message, error) {
	if !ValidMode(mode) {
		return "", nil, fmt.Errorf("mode=%q: %w", mode, ErrInvalidMode)
	}
	threadID, err := s.repo.GetThreadID(ctx, userID, mode)
	if err != nil {
		return "", nil, err
	}
	msgs, err := s.repo.GetMessages(ctx, threadID)
	if err != nil {
		return "", nil, err
	}
	return threadID, msgs, nil
}

// ClearSession drops the (user, mode) session with its messages, then
// deletes the remote thread. A remote delete failure is logged, not
// propagated.
func (s *Service) ClearSession(ctx context.Context, userID uint64, mode string) error {
	if !ValidMode(mode) {
		return fmt.Errorf("mode=%q: %w", mode, ErrInvalidMode)
	}
	threadID, err := s.repo.GetThreadID(ctx, userID, mode)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, threadID); err != nil {
		return err
	}
	if _, err := s.client.DeleteThread(ctx, threadID); err != nil {
		log.Printf("chat: remote thread delete failed thread=%s err=%v", threadID, err)
	}
	return nil
}

func (s *Service) CreateJob(ctx context.Context, job *Job) error {
	return s.repo.CreateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

// ExecuteJob runs one queued ask end to end and records the outcome on
// the job row.
func (s *Service) ExecuteJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	_, _, msgID, err := s.SendMessage(ctx, j.UserID, j.Mode, j.Prompt)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, msgID)
}
