package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/taskchat/taskchat/internal/domain"
)

const defaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_0)

// AnthropicClient implements domain.ModelClient on the Anthropic Messages
// API. The SDK reads ANTHROPIC_API_KEY from the environment.
type AnthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropicClient(modelName string) *AnthropicClient {
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	c := anthropic.NewClient()
	return &AnthropicClient{
		client: &c,
		model:  anthropic.Model(modelName),
	}
}

func (a *AnthropicClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(req.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  toMessages(req.Turns),
		Tools:     toTools(req.Tools),
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	out := &domain.CompletionResult{}
	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:    v.ID,
				Name:  v.Name,
				Input: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	out.Text = text.String()
	return out, nil
}

func toMessages(turns []domain.ModelTurn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		var blocks []anthropic.ContentBlockParamUnion

		if len(turn.ToolOutcomes) > 0 {
			for _, o := range turn.ToolOutcomes {
				blocks = append(blocks, anthropic.NewToolResultBlock(o.CallID, o.Content, o.IsError))
			}
		} else if turn.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(turn.Text))
		}
		for _, call := range turn.ToolCalls {
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    call.ID,
					Name:  call.Name,
					Input: call.Input,
				},
			})
		}
		if len(blocks) == 0 {
			continue
		}

		if turn.Role == domain.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toTools(schemas []domain.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, t := range schemas {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Schema.Properties},
		}})
	}
	return out
}
