package domain

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// TaskStore defines authoritative, validated task persistence. Every
// operation is scoped to an owner; a task belonging to another user is
// indistinguishable from a missing one (ErrTaskNotFound).
//
// Writes are atomic from the caller's perspective: either the full
// validated record is persisted or nothing changes.
type TaskStore interface {
	Create(ctx context.Context, owner UserID, draft TaskDraft) (*Task, error)
	Get(ctx context.Context, owner UserID, id TaskID) (*Task, error)
	Update(ctx context.Context, owner UserID, id TaskID, patch TaskPatch) (*Task, error)
	Complete(ctx context.Context, owner UserID, id TaskID) (*Task, error)
	Reopen(ctx context.Context, owner UserID, id TaskID) (*Task, error)
	Delete(ctx context.Context, owner UserID, id TaskID) error
	List(ctx context.Context, owner UserID, filter TaskFilter) ([]*Task, error)
	Stats(ctx context.Context, owner UserID) (TaskStats, error)
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolOutcome feeds an executed tool's result back to the model.
type ToolOutcome struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// ModelTurn is one element of the transcript sent to the provider. An
// assistant turn may carry tool calls; a user turn may carry the matching
// tool outcomes.
type ModelTurn struct {
	Role         Role
	Text         string
	ToolCalls    []ToolCall
	ToolOutcomes []ToolOutcome
}

// ToolSchema describes one tool to the provider.
type ToolSchema struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

type CompletionRequest struct {
	System    string
	Turns     []ModelTurn
	Tools     []ToolSchema
	MaxTokens int
}

type CompletionResult struct {
	Text      string
	ToolCalls []ToolCall
}

// ModelClient is the opaque "complete with tools" call. Any provider
// implementing this contract is substitutable.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
