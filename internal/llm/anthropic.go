package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider for Claude and Anthropic-compatible
// APIs, translating quill's chat-completions message shapes to content
// blocks and back.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
	name   string
}

// NewAnthropic creates an Anthropic provider with a static API key.
// baseURL may be empty for the default endpoint.
func NewAnthropic(apiKey, baseURL, model string) *AnthropicProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		model:  model,
		name:   "anthropic",
	}
}

func (p *AnthropicProvider) Name() string { return p.name }

// Complete sends one request and returns the structured reply. Tool calls
// come back in the chat-completions shape; stop reasons are normalized so
// the caller only ever sees "stop" for a completed turn.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	system, messages := buildAnthropicMessages(req.Messages)

	var anthropicTools []anthropic.ToolUnionParam
	for _, t := range req.Tools {
		props := make(map[string]any, len(t.Parameters.Properties))
		for name, prop := range t.Parameters.Properties {
			props[name] = map[string]any{
				"type":        prop.Type,
				"description": prop.Description,
			}
		}
		anthropicTools = append(anthropicTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   t.Parameters.Required,
				},
			},
		})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
		Tools:     anthropicTools,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params,
		option.WithRequestTimeout(10*time.Minute),
	)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			body := apierr.RawJSON()
			return nil, &ProviderError{
				Message:    fmt.Sprintf("HTTP %d: %s", apierr.StatusCode, body),
				StatusCode: apierr.StatusCode,
				Body:       body,
				Provider:   p.name,
			}
		}
		return nil, &ProviderError{
			Message:  err.Error(),
			Provider: p.name,
		}
	}

	var content string
	var toolCalls []ToolCall
	for _, block := range message.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += v.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(v.Input)
			toolCalls = append(toolCalls, ToolCall{
				ID:   v.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      v.Name,
					Arguments: string(inputJSON),
				},
			})
		}
	}

	return &CompletionResponse{
		Message: Message{
			Role:      "assistant",
			Content:   content,
			ToolCalls: toolCalls,
		},
		FinishReason: normalizeStopReason(string(message.StopReason)),
		Model:        string(message.Model),
		Usage: Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}

// buildAnthropicMessages converts the unified history into content-block
// messages. System messages collapse into the system prompt; tool results
// ride as user-role tool_result blocks, which is how the Anthropic wire
// expects them.
func buildAnthropicMessages(history []Message) (string, []anthropic.MessageParam) {
	var system []string
	var messages []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var inputValue any
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &inputValue); err != nil {
						inputValue = map[string]any{}
					}
				} else {
					inputValue = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, inputValue, tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			isError := strings.HasPrefix(m.Content, "error:")
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isError),
			))
		}
	}
	return strings.Join(system, "\n\n"), messages
}

// normalizeStopReason maps Anthropic stop reasons onto the
// chat-completions vocabulary the orchestrator understands.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
