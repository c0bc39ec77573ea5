package domain

import "time"

type SessionID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one turn in a session's bounded log.
type ConversationMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskReference binds a task id to a snapshot of the task and the text it
// was mentioned in. It is a cache over the task store, never the source of
// truth: if the underlying task has been deleted the reference resolves to
// "not found".
type TaskReference struct {
	TaskID      TaskID    `json:"task_id"`
	Task        *Task     `json:"task"`
	Context     string    `json:"context"`
	MentionedAt time.Time `json:"mentioned_at"`
}

// Session identifies one bounded conversational context between a user and
// the agent.
type Session struct {
	ID           SessionID `json:"id"`
	UserID       UserID    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}
