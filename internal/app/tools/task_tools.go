package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskchat/taskchat/internal/domain"
)

// NewTaskRegistry wires the six task tools over a task store.
func NewTaskRegistry(store domain.TaskStore) *Registry {
	t := &taskTools{store: store}
	return NewRegistry(
		Definition{
			Name:        "create_task",
			Description: "Create a new task for the user. Title is required; description, due_date (YYYY-MM-DD or RFC3339), priority (low|medium|high) and tags are optional.",
			InputSchema: GenerateSchema[CreateTaskInput](),
			Handler:     t.createTask,
		},
		Definition{
			Name:        "update_task",
			Description: "Update fields of an existing task. Only the supplied fields change; status may be set to pending to reopen a completed task.",
			InputSchema: GenerateSchema[UpdateTaskInput](),
			Handler:     t.updateTask,
		},
		Definition{
			Name:        "complete_task",
			Description: "Mark a task as completed. Completing an already completed task is not an error.",
			InputSchema: GenerateSchema[CompleteTaskInput](),
			Handler:     t.completeTask,
		},
		Definition{
			Name:        "reopen_task",
			Description: "Move a completed task back to pending. Reopening an already pending task is not an error.",
			InputSchema: GenerateSchema[ReopenTaskInput](),
			Handler:     t.reopenTask,
		},
		Definition{
			Name:        "delete_task",
			Description: "Delete a task permanently.",
			InputSchema: GenerateSchema[DeleteTaskInput](),
			Handler:     t.deleteTask,
		},
		Definition{
			Name:        "get_task",
			Description: "Fetch a single task by id.",
			InputSchema: GenerateSchema[GetTaskInput](),
			Handler:     t.getTask,
		},
		Definition{
			Name:        "list_tasks",
			Description: "List the user's tasks with optional range (today|upcoming|overdue|completed|all), status, priority and free-text search filters. Also returns aggregate stats.",
			InputSchema: GenerateSchema[ListTasksInput](),
			Handler:     t.listTasks,
		},
	)
}

type taskTools struct {
	store domain.TaskStore
}

type CreateTaskInput struct {
	Title       string   `json:"title" jsonschema:"required" jsonschema_description:"Task title, non-empty, at most 200 characters."`
	Description string   `json:"description,omitempty" jsonschema_description:"Optional details, at most 2000 characters."`
	DueDate     string   `json:"due_date,omitempty" jsonschema_description:"Optional due date, YYYY-MM-DD or RFC3339."`
	Priority    string   `json:"priority,omitempty" jsonschema_description:"low, medium or high; defaults to medium."`
	Tags        []string `json:"tags,omitempty" jsonschema_description:"Optional free-form labels."`
}

type UpdateTaskInput struct {
	TaskID      string   `json:"task_id" jsonschema:"required" jsonschema_description:"Id of the task to update."`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	DueDate     *string  `json:"due_date,omitempty" jsonschema_description:"New due date, YYYY-MM-DD or RFC3339."`
	Priority    *string  `json:"priority,omitempty" jsonschema_description:"low, medium or high."`
	Status      *string  `json:"status,omitempty" jsonschema_description:"pending or completed."`
	Tags        []string `json:"tags,omitempty"`
}

type CompleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
}

type ReopenTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
}

type DeleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
}

type GetTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
}

type ListTasksInput struct {
	Range    string `json:"range,omitempty" jsonschema_description:"today, upcoming, overdue, completed or all."`
	Status   string `json:"status,omitempty" jsonschema_description:"pending or completed."`
	Priority string `json:"priority,omitempty" jsonschema_description:"low, medium or high."`
	Search   string `json:"search,omitempty" jsonschema_description:"Case-insensitive substring over title and description."`
}

// ListTasksData is the payload of a successful list_tasks call.
type ListTasksData struct {
	Tasks []*domain.Task   `json:"tasks"`
	Stats domain.TaskStats `json:"stats"`
}

func (t *taskTools) createTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in CreateTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid create_task input: %v", err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return failf("title is required")
	}

	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return fail(err)
	}

	task, err := t.store.Create(ctx, tctx.OwnerID, domain.TaskDraft{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     due,
		Priority:    in.Priority,
		Tags:        in.Tags,
	})
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Created task %q.", task.Title), task)
}

func (t *taskTools) updateTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in UpdateTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid update_task input: %v", err)
	}
	if in.TaskID == "" {
		return failf("task_id is required")
	}

	patch := domain.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		Tags:        in.Tags,
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return fail(err)
		}
		patch.DueDate = due
	}

	task, err := t.store.Update(ctx, tctx.OwnerID, domain.TaskID(in.TaskID), patch)
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Updated task %q.", task.Title), task)
}

func (t *taskTools) completeTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in CompleteTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid complete_task input: %v", err)
	}
	if in.TaskID == "" {
		return failf("task_id is required")
	}

	task, err := t.store.Complete(ctx, tctx.OwnerID, domain.TaskID(in.TaskID))
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Marked %q as completed.", task.Title), task)
}

func (t *taskTools) reopenTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in ReopenTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid reopen_task input: %v", err)
	}
	if in.TaskID == "" {
		return failf("task_id is required")
	}

	task, err := t.store.Reopen(ctx, tctx.OwnerID, domain.TaskID(in.TaskID))
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Moved %q back to pending.", task.Title), task)
}

func (t *taskTools) deleteTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in DeleteTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid delete_task input: %v", err)
	}
	if in.TaskID == "" {
		return failf("task_id is required")
	}

	// Fetch first so the confirmation can name the deleted task.
	task, err := t.store.Get(ctx, tctx.OwnerID, domain.TaskID(in.TaskID))
	if err != nil {
		return fail(err)
	}
	if err := t.store.Delete(ctx, tctx.OwnerID, task.ID); err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Deleted task %q.", task.Title), map[string]string{"deleted_title": task.Title})
}

func (t *taskTools) getTask(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in GetTaskInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid get_task input: %v", err)
	}
	if in.TaskID == "" {
		return failf("task_id is required")
	}

	task, err := t.store.Get(ctx, tctx.OwnerID, domain.TaskID(in.TaskID))
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("Found task %q.", task.Title), task)
}

func (t *taskTools) listTasks(ctx context.Context, tctx Context, input json.RawMessage) Result {
	var in ListTasksInput
	if err := json.Unmarshal(input, &in); err != nil {
		return failf("invalid list_tasks input: %v", err)
	}

	filter := domain.TaskFilter{Search: in.Search}

	rng, err := domain.ParseRange(in.Range)
	if err != nil {
		return fail(err)
	}
	filter.Range = rng

	if in.Status != "" {
		st, err := domain.ParseStatus(in.Status)
		if err != nil {
			return fail(err)
		}
		filter.Status = st
	}
	if in.Priority != "" {
		p, err := domain.ParsePriority(in.Priority)
		if err != nil {
			return fail(err)
		}
		filter.Priority = p
	}

	tasks, err := t.store.List(ctx, tctx.OwnerID, filter)
	if err != nil {
		return fail(err)
	}
	stats, err := t.store.Stats(ctx, tctx.OwnerID)
	if err != nil {
		return fail(err)
	}

	return ok(fmt.Sprintf("Found %d task(s).", len(tasks)), ListTasksData{Tasks: tasks, Stats: stats})
}

// parseDueDate accepts a plain date or a full RFC3339 timestamp. Empty
// input means "no deadline".
func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return &d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return &d, nil
	}
	return nil, &domain.ValidationError{Field: "due_date", Reason: fmt.Sprintf("must be YYYY-MM-DD or RFC3339 (got %q)", s)}
}
