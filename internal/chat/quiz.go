package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// QuizItem is one generated question with its options and the correct
// answer.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

const quizQuestionCount = 10

// QuizPrompt is the generation request sent on the quiz thread. The
// thread's own history is what keeps repeated topics from producing
// repeated questions.
func QuizPrompt(topic string) string {
	return fmt.Sprintf("Please generate a new unique set of %d quiz questions on the topic: %s."+
		" Do not repeat previous questions in this thread.", quizQuestionCount, topic)
}

// AskQuiz runs Ask and requires the reply to parse as a non-empty list of
// quiz items. Remote failures and unusable replies both consume one
// attempt; exhausting QuizAttempts returns the last cause wrapped in
// *GenerationError. Partial data is never returned.
func (o *Orchestrator) AskQuiz(ctx context.Context, assistantID, threadID, prompt string) (string, []QuizItem, error) {
	attempts := o.QuizAttempts
	if attempts <= 0 {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := o.Ask(ctx, assistantID, threadID, prompt)
		if err != nil {
			log.Printf("chat: quiz ask failed thread=%s attempt=%d err=%v", threadID, attempt, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		items, perr := parseQuiz(raw)
		if perr != nil {
			log.Printf("chat: quiz reply unusable thread=%s attempt=%d err=%v", threadID, attempt, perr)
			lastErr = perr
			continue
		}
		return raw, items, nil
	}
	return "", nil, &GenerationError{Attempts: attempts, Cause: lastErr}
}

func parseQuiz(raw string) ([]QuizItem, error) {
	var items []QuizItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid quiz json: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("empty quiz")
	}
	for i, it := range items {
		if it.Question == "" || len(it.Options) == 0 || it.Answer == "" {
			return nil, fmt.Errorf("quiz item %d missing required fields", i)
		}
	}
	return items, nil
}
