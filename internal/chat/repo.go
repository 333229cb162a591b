package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repo is the message store. It requires a *gorm.DB opened with
// TranslateError so unique-index violations surface as
// gorm.ErrDuplicatedKey regardless of driver.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetThreadID is a pure lookup: no side effects, ErrSessionNotFound when
// the (user, mode) pair has no thread yet.
func (r *Repo) GetThreadID(ctx context.Context, userID uint64, mode string) (string, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND mode = ?", userID, mode).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user=%d mode=%s: %w", userID, mode, ErrSessionNotFound)
		}
		return "", storageErr("get thread id", err)
	}
	return s.ThreadID, nil
}

// CreateThread inserts the session row. The unique indexes are the
// arbitration point: a lost race comes back as ErrConflict, never as a
// silent overwrite.
func (r *Repo) CreateThread(ctx context.Context, userID uint64, mode, threadID string) error {
	s := &Session{UserID: userID, Mode: mode, ThreadID: threadID}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user=%d mode=%s thread=%s: %w", userID, mode, threadID, ErrConflict)
		}
		return storageErr("create thread", err)
	}
	return nil
}

// AddMessage appends one turn to the thread's log. The thread must have a
// session row; the roles are a closed set.
func (r *Repo) AddMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("role=%q: %w", role, ErrInvalidRole)
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&Session{}).
		Where("thread_id = ?", threadID).
		Count(&n).Error; err != nil {
		return nil, storageErr("check thread", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("thread=%s: %w", threadID, ErrUnknownThread)
	}

	m := &Message{ThreadID: threadID, Role: role, Content: content}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, storageErr("add message", err)
	}
	return m, nil
}

// GetMessages returns the thread's messages in insertion order. An
// unknown or empty thread yields an empty slice, not an error.
func (r *Repo) GetMessages(ctx context.Context, threadID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, storageErr("get messages", err)
	}
	return msgs, nil
}

// ClearThread deletes the thread's messages. Idempotent.
func (r *Repo) ClearThread(ctx context.Context, threadID string) error {
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Delete(&Message{}).Error; err != nil {
		return storageErr("clear thread", err)
	}
	return nil
}

// DeleteSession removes the session and all its messages in one
// transaction. ErrSessionNotFound when there is nothing to delete.
func (r *Repo) DeleteSession(ctx context.Context, threadID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("thread_id = ?", threadID).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("thread=%s: %w", threadID, ErrSessionNotFound)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return storageErr("delete session", err)
	}
	return nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		// No key provided -> always a fresh job
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
