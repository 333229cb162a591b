package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

// Orchestrator drives remote runs to a terminal state with bounded retry.
// It never touches the message store: persisting the exchange is the
// caller's job. Safe for concurrent use across different threads; calls
// on the same thread id must stay sequential.
type Orchestrator struct {
	Client       assistant.Client
	MaxRetries   int
	PollInterval time.Duration
	PollTimeout  time.Duration
	BackoffBase  time.Duration
	QuizAttempts int
}

func NewOrchestrator(client assistant.Client) *Orchestrator {
	return &Orchestrator{
		Client:       client,
		MaxRetries:   3,
		PollInterval: time.Second,
		PollTimeout:  90 * time.Second,
		BackoffBase:  time.Second,
		QuizAttempts: 2,
	}
}

// Ask submits userMessage on the thread and drives a run to completion,
// returning the assistant's reply text. A still-active prior run is
// drained first. Runs failing with a transient error code are restarted
// up to MaxRetries total attempts with exponential backoff; everything
// else propagates as *assistant.RemoteError. An empty reply after a
// completed run is returned as "" with no error.
func (o *Orchestrator) Ask(ctx context.Context, assistantID, threadID, userMessage string) (string, error) {
	if err := o.drain(ctx, threadID); err != nil {
		return "", err
	}

	if err := o.Client.PostMessage(ctx, threadID, RoleUser, userMessage); err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		run, err := o.Client.StartRun(ctx, assistantID, threadID)
		if err != nil {
			if re, ok := assistant.AsRemoteError(err); ok && re.Transient() && attempt < o.MaxRetries {
				if serr := o.backoff(ctx, attempt); serr != nil {
					return "", serr
				}
				continue
			}
			return "", err
		}

		run, err = o.waitTerminal(ctx, threadID, run)
		if err != nil {
			return "", err
		}

		if run.Status == assistant.RunCompleted {
			break
		}

		re := assistant.ClassifyRunFailure(run.ErrorCode, run.ErrorMessage)
		if re.Transient() && attempt < o.MaxRetries {
			log.Printf("chat: run failed transiently thread=%s run=%s code=%s attempt=%d",
				threadID, run.ID, run.ErrorCode, attempt)
			if serr := o.backoff(ctx, attempt); serr != nil {
				return "", serr
			}
			continue
		}
		return "", re
	}

	msgs, err := o.Client.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i].Content, nil
		}
	}
	return "", nil
}

// drain waits out a still-active prior run before anything is posted. A
// drained run that ends failed aborts the ask; a prior run that was
// already terminal does not.
func (o *Orchestrator) drain(ctx context.Context, threadID string) error {
	run, err := o.Client.LatestRun(ctx, threadID)
	if err != nil {
		return err
	}
	if run == nil || run.Status.Terminal() {
		return nil
	}

	run, err = o.waitTerminal(ctx, threadID, run)
	if err != nil {
		return err
	}
	if run.Status == assistant.RunFailed {
		re := assistant.ClassifyRunFailure(run.ErrorCode, run.ErrorMessage)
		re.Message = fmt.Sprintf("prior run %s failed: %s", run.ID, re.Message)
		return re
	}
	return nil
}

// waitTerminal polls the run at PollInterval until it reaches a terminal
// state, bounded by PollTimeout.
func (o *Orchestrator) waitTerminal(ctx context.Context, threadID string, run *assistant.Run) (*assistant.Run, error) {
	deadline := time.Now().Add(o.PollTimeout)
	for !run.Status.Terminal() {
		if time.Now().After(deadline) {
			return nil, &assistant.RemoteError{
				Category: assistant.CategoryTimeout,
				Code:     "poll_timeout",
				Message:  fmt.Sprintf("run %s still %s after %s", run.ID, run.Status, o.PollTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.PollInterval):
		}
		next, err := o.Client.PollRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
		run = next
	}
	return run, nil
}

// backoff sleeps 2^attempt times the base, honoring ctx.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.BackoffBase << uint(attempt)):
		return nil
	}
}
