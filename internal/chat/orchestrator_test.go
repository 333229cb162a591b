package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

func newTestOrchestrator(fake *fakeClient) *Orchestrator {
	o := NewOrchestrator(fake)
	o.PollInterval = time.Millisecond
	o.PollTimeout = 100 * time.Millisecond
	o.BackoffBase = time.Microsecond
	return o
}

func failedRun(id, code string) *assistant.Run {
	return &assistant.Run{ID: id, Status: assistant.RunFailed, ErrorCode: code, ErrorMessage: code}
}

func TestAsk_HappyPath(t *testing.T) {
	fake := &fakeClient{}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_1", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "fake reply" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	want := []string{"LatestRun", "PostMessage", "StartRun", "ListMessages"}
	got := fake.recorded()
	if len(got) != len(want) {
		t.Fatalf("unexpected call sequence: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: want %s, got %s (full: %v)", i, want[i], got[i], got)
		}
	}
}

func TestAsk_DrainsActivePriorRun(t *testing.T) {
	polls := 0
	fake := &fakeClient{}
	fake.latestRunFn = func(ctx context.Context, threadID string) (*assistant.Run, error) {
		return &assistant.Run{ID: "run_prior", ThreadID: threadID, Status: assistant.RunInProgress}, nil
	}
	fake.pollRunFn = func(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
		polls++
		if polls < 3 {
			return &assistant.Run{ID: runID, ThreadID: threadID, Status: assistant.RunInProgress}, nil
		}
		return &assistant.Run{ID: runID, ThreadID: threadID, Status: assistant.RunCompleted}, nil
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_2", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "fake reply" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// nothing is posted while the prior run is still live
	calls := fake.recorded()
	postAt, lastPollBeforePost := -1, -1
	for i, c := range calls {
		if c == "PostMessage" && postAt == -1 {
			postAt = i
		}
		if c == "PollRun" && postAt == -1 {
			lastPollBeforePost = i
		}
	}
	if postAt == -1 || lastPollBeforePost == -1 || lastPollBeforePost > postAt {
		t.Fatalf("expected polls before post, got %v", calls)
	}
	if polls < 3 {
		t.Fatalf("expected prior run polled to completion, polls=%d", polls)
	}
}

func TestAsk_AbortsWhenDrainedRunFails(t *testing.T) {
	fake := &fakeClient{}
	fake.latestRunFn = func(ctx context.Context, threadID string) (*assistant.Run, error) {
		return &assistant.Run{ID: "run_prior", ThreadID: threadID, Status: assistant.RunInProgress}, nil
	}
	fake.pollRunFn = func(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
		return failedRun(runID, "server_error"), nil
	}
	o := newTestOrchestrator(fake)

	_, err := o.Ask(context.Background(), "asst_1", "thread_orch_3", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	re, ok := assistant.AsRemoteError(err)
	if !ok {
		t.Fatalf("expected remote error, got %T: %v", err, err)
	}
	if !strings.Contains(re.Message, "prior run run_prior failed") {
		t.Fatalf("unexpected message: %q", re.Message)
	}

	if n := fake.countCalls("PostMessage"); n != 0 {
		t.Fatalf("message posted despite failed drain: %d", n)
	}
	if n := fake.countCalls("StartRun"); n != 0 {
		t.Fatalf("run started despite failed drain: %d", n)
	}
}

func TestAsk_TerminalFailedPriorRunDoesNotBlock(t *testing.T) {
	fake := &fakeClient{}
	fake.latestRunFn = func(ctx context.Context, threadID string) (*assistant.Run, error) {
		// already terminal when observed: it lost its chance to abort us
		return failedRun("run_old", "server_error"), nil
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_4", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "fake reply" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if n := fake.countCalls("StartRun"); n != 1 {
		t.Fatalf("expected 1 run, got %d", n)
	}
}

func TestAsk_RetriesTransientRunFailure(t *testing.T) {
	starts := 0
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		starts++
		if starts < 3 {
			return failedRun("run_try", "rate_limit_exceeded"), nil
		}
		return &assistant.Run{ID: "run_ok", ThreadID: threadID, Status: assistant.RunCompleted}, nil
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_5", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "fake reply" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if starts != 3 {
		t.Fatalf("expected 3 run starts, got %d", starts)
	}
	// the message is posted once, retries reuse it
	if n := fake.countCalls("PostMessage"); n != 1 {
		t.Fatalf("expected 1 post, got %d", n)
	}
}

func TestAsk_ExhaustsRetries(t *testing.T) {
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		return failedRun("run_bad", "server_error"), nil
	}
	o := newTestOrchestrator(fake)

	_, err := o.Ask(context.Background(), "asst_1", "thread_orch_6", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	re, ok := assistant.AsRemoteError(err)
	if !ok || !re.Transient() {
		t.Fatalf("expected transient remote error, got %v", err)
	}
	if n := fake.countCalls("StartRun"); n != o.MaxRetries {
		t.Fatalf("expected exactly %d attempts, got %d", o.MaxRetries, n)
	}
}

func TestAsk_PermanentRunFailureNotRetried(t *testing.T) {
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		return failedRun("run_bad", "invalid_request"), nil
	}
	o := newTestOrchestrator(fake)

	_, err := o.Ask(context.Background(), "asst_1", "thread_orch_7", "hi")
	re, ok := assistant.AsRemoteError(err)
	if !ok {
		t.Fatalf("expected remote error, got %v", err)
	}
	if re.Category != assistant.CategoryPermanent {
		t.Fatalf("expected permanent, got %s", re.Category)
	}
	if n := fake.countCalls("StartRun"); n != 1 {
		t.Fatalf("permanent failure retried: %d attempts", n)
	}
}

func TestAsk_RetriesTransientStartError(t *testing.T) {
	starts := 0
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		starts++
		if starts < 3 {
			return nil, &assistant.RemoteError{Category: assistant.CategoryTransient, Message: "connection reset"}
		}
		return &assistant.Run{ID: "run_ok", ThreadID: threadID, Status: assistant.RunCompleted}, nil
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_8", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "fake reply" || starts != 3 {
		t.Fatalf("reply=%q starts=%d", reply, starts)
	}
}

func TestAsk_PollTimeout(t *testing.T) {
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		return &assistant.Run{ID: "run_stuck", ThreadID: threadID, Status: assistant.RunQueued}, nil
	}
	fake.pollRunFn = func(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
		return &assistant.Run{ID: runID, ThreadID: threadID, Status: assistant.RunInProgress}, nil
	}
	o := newTestOrchestrator(fake)
	o.PollTimeout = 20 * time.Millisecond
	o.PollInterval = 2 * time.Millisecond

	_, err := o.Ask(context.Background(), "asst_1", "thread_orch_9", "hi")
	re, ok := assistant.AsRemoteError(err)
	if !ok {
		t.Fatalf("expected remote error, got %v", err)
	}
	if re.Category != assistant.CategoryTimeout || re.Code != "poll_timeout" {
		t.Fatalf("expected poll timeout, got category=%s code=%s", re.Category, re.Code)
	}
	// a run that may still be live is not restarted
	if n := fake.countCalls("StartRun"); n != 1 {
		t.Fatalf("timeout triggered a retry: %d starts", n)
	}
}

func TestAsk_EmptyReplyIsNotAnError(t *testing.T) {
	fake := &fakeClient{
		listMessagesFn: func(ctx context.Context, threadID string) ([]assistant.ThreadMessage, error) {
			return []assistant.ThreadMessage{
				{ID: "msg_1", Role: RoleUser, Content: "hi"},
			}, nil
		},
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_10", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

func TestAsk_NewestAssistantMessageWins(t *testing.T) {
	fake := &fakeClient{
		listMessagesFn: func(ctx context.Context, threadID string) ([]assistant.ThreadMessage, error) {
			return []assistant.ThreadMessage{
				{ID: "msg_1", Role: RoleAssistant, Content: "old"},
				{ID: "msg_2", Role: RoleUser, Content: "hi"},
				{ID: "msg_3", Role: RoleAssistant, Content: "new"},
			}, nil
		},
	}
	o := newTestOrchestrator(fake)

	reply, err := o.Ask(context.Background(), "asst_1", "thread_orch_11", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply != "new" {
		t.Fatalf("expected newest assistant message, got %q", reply)
	}
}

func TestAsk_SingleAttempt(t *testing.T) {
	fake := &fakeClient{}
	fake.startRunFn = func(ctx context.Context, assistantID, threadID string) (*assistant.Run, error) {
		return failedRun("run_bad", "server_error"), nil
	}
	o := newTestOrchestrator(fake)
	o.MaxRetries = 1

	_, err := o.Ask(context.Background(), "asst_1", "thread_orch_12", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if n := fake.countCalls("StartRun"); n != 1 {
		t.Fatalf("max retries of 1 produced %d attempts", n)
	}
}
