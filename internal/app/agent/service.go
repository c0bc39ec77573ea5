// Package agent drives one request/response turn: session memory in,
// model completion with tools, tool execution, memory update, reply out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/app/sessions"
	"github.com/taskchat/taskchat/internal/app/tools"
	"github.com/taskchat/taskchat/internal/domain"
	"github.com/taskchat/taskchat/internal/observability"
)

const (
	DefaultMaxSteps        = 5
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxTokens       = 1024

	apologyReply = "Sorry, something went wrong on my side while handling that. Please try again in a moment."
	stepCapReply = "I had to stop before finishing: that request needed more steps than I allow in one turn. Could you split it into smaller requests?"
)

type Config struct {
	MaxSteps        int
	ProviderTimeout time.Duration
	MaxTokens       int
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// Service is the agent orchestrator.
type Service struct {
	model    domain.ModelClient
	registry *tools.Registry
	sessions *sessions.Manager
	cfg      Config
	now      func() time.Time
}

func NewService(model domain.ModelClient, registry *tools.Registry, mgr *sessions.Manager, cfg Config) *Service {
	return &Service{
		model:    model,
		registry: registry,
		sessions: mgr,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// SetClock overrides the service clock; used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ToolCallRecord is one executed tool invocation within a turn.
type ToolCallRecord struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
	Result tools.Result    `json:"result"`
}

// TurnResult is what one turn produces for the caller.
type TurnResult struct {
	Reply     string           `json:"reply"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// ProcessTurn runs one complete turn for (user, session). Turns within a
// session are serialized by the session manager.
func (s *Service) ProcessTurn(ctx context.Context, user domain.UserID, sessionID domain.SessionID, text string) (*TurnResult, error) {
	ctx = observability.WithTurnID(ctx, fmt.Sprintf("turn-%d", s.now().UnixNano()))
	log := observability.LoggerFromContext(ctx).With(
		"user_id", user,
		"session_id", sessionID,
	)
	log.Info("turn started")

	mem, release := s.sessions.Acquire(user, sessionID)
	defer release()

	now := s.now()
	mem.AddMessage(domain.RoleUser, text, now)
	mem.Prune(now)

	res := resolveReference(text, mem)
	switch res.kind {
	case resolveAmbiguous:
		log.Info("ambiguous task reference", "candidates", len(res.candidates))
		return s.finishWithoutTools(mem, clarificationQuestion(res.candidates)), nil
	case resolveUnknown:
		log.Info("unresolved task reference")
		return s.finishWithoutTools(mem, unknownReferenceReply), nil
	}

	var resolvedNote string
	if res.kind == resolveFound {
		resolvedNote = fmt.Sprintf("The user's message refers to task %s (%q).", res.ref.TaskID, res.ref.Task.Title)
	}

	turns := []domain.ModelTurn{{
		Role: domain.RoleUser,
		Text: buildUserContent(mem.ContextForPrompt(), resolvedNote, text),
	}}

	var (
		records   []ToolCallRecord
		lastText  string
		toolSteps int
	)

	for {
		out, err := s.complete(ctx, turns)
		if err != nil {
			log.Error("model provider failed", "error", err)
			result := s.finishWithoutTools(mem, apologyReply)
			result.ToolCalls = records
			return result, nil
		}
		if out.Text != "" {
			lastText = out.Text
		}

		if len(out.ToolCalls) == 0 {
			break
		}
		if toolSteps >= s.cfg.MaxSteps {
			// Hard bound against runaway loops: return what we have.
			log.Warn("tool step cap reached", "max_steps", s.cfg.MaxSteps)
			lastText = capReply(lastText)
			break
		}
		toolSteps++

		tctx := tools.Context{
			OwnerID:   user,
			SessionID: sessionID,
			RequestID: observability.RequestIDFromContext(ctx),
		}

		outcomes := make([]domain.ToolOutcome, 0, len(out.ToolCalls))
		for _, call := range out.ToolCalls {
			start := time.Now()
			result := s.registry.Dispatch(ctx, tctx, call.Name, call.Input)
			log.Info("tool executed",
				"tool", call.Name,
				"success", result.Success,
				"elapsed_ms", time.Since(start).Milliseconds())

			records = append(records, ToolCallRecord{Tool: call.Name, Params: call.Input, Result: result})
			s.recordReferences(mem, call.Name, result, text)
			outcomes = append(outcomes, outcome(call, result))
		}

		turns = append(turns,
			domain.ModelTurn{Role: domain.RoleAssistant, Text: out.Text, ToolCalls: out.ToolCalls},
			domain.ModelTurn{Role: domain.RoleUser, ToolOutcomes: outcomes},
		)
	}

	reply := lastText
	if reply == "" {
		reply = "Done."
	}
	mem.AddMessage(domain.RoleAssistant, reply, s.now())

	log.Info("turn completed", "tool_calls", len(records))
	return &TurnResult{Reply: reply, ToolCalls: records}, nil
}

// complete runs one provider call bounded by the configured timeout.
func (s *Service) complete(ctx context.Context, turns []domain.ModelTurn) (*domain.CompletionResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	return s.model.Complete(cctx, domain.CompletionRequest{
		System:    systemPrompt,
		Turns:     turns,
		Tools:     s.registry.Schemas(),
		MaxTokens: s.cfg.MaxTokens,
	})
}

// finishWithoutTools records an assistant reply produced without any model
// or tool involvement (clarifications, apologies).
func (s *Service) finishWithoutTools(mem *memory.Session, reply string) *TurnResult {
	mem.AddMessage(domain.RoleAssistant, reply, s.now())
	return &TurnResult{Reply: reply}
}

// recordReferences keeps memory in sync with what the turn touched:
// successful create/update/complete results record the affected task with
// the user's message as context; list results record every returned task.
func (s *Service) recordReferences(mem *memory.Session, tool string, result tools.Result, userMessage string) {
	if !result.Success {
		return
	}
	now := s.now()
	switch tool {
	case "create_task", "update_task", "complete_task", "reopen_task":
		if task, isTask := result.Data.(*domain.Task); isTask {
			mem.RecordTaskReference(task, userMessage, now)
		}
	case "list_tasks":
		if data, isList := result.Data.(tools.ListTasksData); isList {
			for _, task := range data.Tasks {
				mem.RecordTaskReference(task, userMessage, now)
			}
		}
	case "delete_task":
		// The reference, if any, becomes stale and is treated as not
		// found on the next resolution; no eager cleanup needed.
	}
}

func outcome(call domain.ToolCall, result tools.Result) domain.ToolOutcome {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"success":false,"error":"failed to encode tool result"}`)
	}
	return domain.ToolOutcome{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(payload),
		IsError: !result.Success,
	}
}

func capReply(lastText string) string {
	if lastText == "" {
		return stepCapReply
	}
	return lastText + "\n\n" + stepCapReply
}

// Session lifecycle, exposed for the management surface.

func (s *Service) CreateSession(user domain.UserID) *domain.Session {
	return s.sessions.Create(user)
}

func (s *Service) EndSession(user domain.UserID, id domain.SessionID) error {
	return s.sessions.End(user, id)
}

func (s *Service) ListSessions(user domain.UserID) []*domain.Session {
	return s.sessions.ListByUser(user)
}

func (s *Service) GetHistory(user domain.UserID, id domain.SessionID) ([]domain.ConversationMessage, error) {
	return s.sessions.History(user, id)
}
