package chat

import "time"

// Conversation modes. Each (user, mode) pair owns at most one remote thread.
const (
	ModeGPT    = "gpt"
	ModeTalk   = "talk"
	ModeQuiz   = "quiz"
	ModeRandom = "random"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func ValidMode(m string) bool {
	switch m {
	case ModeGPT, ModeTalk, ModeQuiz, ModeRandom:
		return true
	}
	return false
}

func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Session binds one (user, mode) pair to one remote thread. Rows are
// created once by the resolver and never updated.
type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint64    `gorm:"not null;index:uniq_chat_session_user_mode,unique,priority:1" json:"user_id"`
	Mode      string    `gorm:"type:varchar(16);not null;index:uniq_chat_session_user_mode,unique,priority:2" json:"mode"`
	ThreadID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID  string    `gorm:"type:varchar(64);index;not null" json:"thread_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
