// Package llm provides model provider interfaces and implementations
// for quill's agent loop.
package llm

import "context"

// Message represents a single chat message in the conversation.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool messages only
}

// CompletionRequest holds parameters for a model completion.
type CompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// Usage reports token counts for a single completion. Advisory only;
// never fed back to the model.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// CompletionResponse holds the model's reply.
type CompletionResponse struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
	Model        string  `json:"model"`
	Usage        Usage   `json:"usage"`
}

// Finish reasons the orchestrator cares about. Providers normalize their
// native stop reasons to these; anything other than FinishStop means the
// turn continues.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Provider is the interface for model providers.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Complete sends one completion request with the full message history
	// and tool schemas, and returns the structured reply. Implementations
	// never retry; transport failures surface as *ProviderError.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ProviderError represents a model provider failure. For HTTP transport
// errors StatusCode and Body carry the raw response so the caller can
// show exactly what the endpoint said.
type ProviderError struct {
	Message    string
	StatusCode int
	Body       string
	Provider   string
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return e.Provider + ": " + e.Message
	}
	return e.Message
}
