package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/taskchat/taskchat/internal/domain"
)

// Context brings ambient metadata of the call to the tool. OwnerID comes
// from the authenticated caller, never from model-supplied input.
type Context struct {
	OwnerID   domain.UserID
	SessionID domain.SessionID
	RequestID string
}

// Result is the uniform envelope every tool returns. Tools never leak raw
// errors to the model loop; failures are carried in Error with Success
// false so the orchestrator can always produce a reply.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

func fail(err error) Result {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return Result{Error: "I couldn't find that task."}
	case domain.IsValidation(err):
		return Result{Error: err.Error()}
	default:
		return Result{Error: fmt.Sprintf("operation failed: %v", err)}
	}
}

func failf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// HandlerFunc executes one tool call. Implementations must not panic and
// must fold every error into the Result envelope.
type HandlerFunc func(ctx context.Context, tctx Context, input json.RawMessage) Result

// Definition describes one tool: its wire name, the description shown to
// the model, the JSON schema of its input, and the handler.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     HandlerFunc
}

// GenerateSchema derives a JSON schema from a Go struct's json and
// jsonschema tags.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(&v)
}

// Registry is the closed set of tools the orchestrator may dispatch.
// Model-chosen names are looked up here; an unknown name yields an error
// result, never dynamic execution.
type Registry struct {
	defs  map[string]Definition
	order []string
}

func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.Name]; dup {
			panic(fmt.Sprintf("duplicate tool %q", d.Name))
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Schemas returns the provider-facing tool descriptions in registration
// order.
func (r *Registry) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		out = append(out, domain.ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			Schema:      d.InputSchema,
		})
	}
	return out
}

// Dispatch executes the named tool. Unknown names are reported through the
// envelope so the model can correct itself.
func (r *Registry) Dispatch(ctx context.Context, tctx Context, name string, input json.RawMessage) Result {
	d, okName := r.defs[name]
	if !okName {
		return failf("unknown tool %q", name)
	}
	return d.Handler(ctx, tctx, input)
}
