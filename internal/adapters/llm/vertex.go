package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/taskchat/taskchat/internal/domain"
)

const defaultVertexModel = "gemini-2.5-flash"

// VertexClient implements domain.ModelClient on Vertex AI (Gemini) with
// function calling.
type VertexClient struct {
	client    *genai.Client
	modelName string
}

func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("project and location are required for the Vertex client")
	}
	if modelName == "" {
		modelName = defaultVertexModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (v *VertexClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	contents, err := toContents(req.Turns)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		MaxOutputTokens:   int32(req.MaxTokens),
	}
	if decls := toDeclarations(req.Tools); len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("vertex completion: empty response")
	}

	out := &domain.CompletionResult{}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			input, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("encoding function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				// Gemini does not always assign call ids; outcomes are
				// matched back by function name instead.
				id = part.FunctionCall.Name
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		}
	}
	out.Text = text.String()
	return out, nil
}

func toContents(turns []domain.ModelTurn) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var parts []*genai.Part

		if len(turn.ToolOutcomes) > 0 {
			for _, o := range turn.ToolOutcomes {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       o.CallID,
					Name:     o.Name,
					Response: map[string]any{"result": o.Content},
				}})
			}
		} else if turn.Text != "" {
			parts = append(parts, &genai.Part{Text: turn.Text})
		}
		for _, call := range turn.ToolCalls {
			var args map[string]any
			if len(call.Input) > 0 {
				if err := json.Unmarshal(call.Input, &args); err != nil {
					return nil, fmt.Errorf("decoding tool call input: %w", err)
				}
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: args,
			}})
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}

func toDeclarations(schemas []domain.ToolSchema) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, t := range schemas {
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(t.Schema),
		})
	}
	return out
}

// toGenaiSchema converts the reflected JSON schema of a tool input into
// the subset Gemini understands.
func toGenaiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	if s.Properties != nil && s.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = toGenaiSchema(pair.Value)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}
