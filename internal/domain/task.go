package domain

import (
	"fmt"
	"strings"
	"time"
)

type TaskID string
type UserID string

// Priority orders tasks when no due date is available.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of low, medium, high (got %q)", s)}
	}
}

// rank used for sorting tasks without a due date.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("must be pending or completed (got %q)", s)}
	}
}

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

// Task is the unit of work. Every persisted Task has passed Validate;
// stores never hold a partially valid record.
type Task struct {
	ID          TaskID     `json:"id"`
	OwnerID     UserID     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if len(t.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("exceeds %d characters", MaxTitleLen)}
	}
	if len(t.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("exceeds %d characters", MaxDescriptionLen)}
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return &ValidationError{Field: "updated_at", Reason: "cannot precede created_at"}
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate a stored record.
func (t *Task) Clone() *Task {
	cp := *t
	if t.DueDate != nil {
		d := *t.DueDate
		cp.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	if t.Tags != nil {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	return &cp
}

// TaskDraft is the payload for creating a task. Priority defaults to
// medium when empty.
type TaskDraft struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
	Tags        []string
}

// NewTask builds and validates a task from a draft. The returned task is
// fully valid or the error is a *ValidationError.
func NewTask(id TaskID, owner UserID, draft TaskDraft, now time.Time) (*Task, error) {
	priority := PriorityMedium
	if strings.TrimSpace(draft.Priority) != "" {
		p, err := ParsePriority(draft.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}

	t := &Task{
		ID:          id,
		OwnerID:     owner,
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		DueDate:     draft.DueDate,
		Priority:    priority,
		Status:      StatusPending,
		Tags:        draft.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *string
	Status      *string
	Tags        []string
}

// PatchTask merges a patch into a copy of the task, re-validates the merged
// result and refreshes updated_at. The original task is never mutated, so a
// bad merge cannot persist.
func PatchTask(t *Task, patch TaskPatch, now time.Time) (*Task, error) {
	merged := t.Clone()

	if patch.Title != nil {
		merged.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.DueDate != nil {
		d := *patch.DueDate
		merged.DueDate = &d
	}
	if patch.Priority != nil {
		p, err := ParsePriority(*patch.Priority)
		if err != nil {
			return nil, err
		}
		merged.Priority = p
	}
	if patch.Status != nil {
		st, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		setStatus(merged, st, now)
	}
	if patch.Tags != nil {
		merged.Tags = append([]string(nil), patch.Tags...)
	}

	merged.UpdatedAt = now
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// CompleteTask marks a copy of the task completed. Completing an already
// completed task returns an unchanged copy (idempotent).
func CompleteTask(t *Task, now time.Time) *Task {
	cp := t.Clone()
	if cp.Status == StatusCompleted {
		return cp
	}
	setStatus(cp, StatusCompleted, now)
	cp.UpdatedAt = now
	return cp
}

// ReopenTask flips a completed task back to pending, clearing completed_at.
// Reopening a pending task is a no-op.
func ReopenTask(t *Task, now time.Time) *Task {
	cp := t.Clone()
	if cp.Status == StatusPending {
		return cp
	}
	setStatus(cp, StatusPending, now)
	cp.UpdatedAt = now
	return cp
}

func setStatus(t *Task, st Status, now time.Time) {
	t.Status = st
	switch st {
	case StatusCompleted:
		at := now
		t.CompletedAt = &at
	case StatusPending:
		t.CompletedAt = nil
	}
}
