package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openaiHTTPClient is a shared HTTP client for OpenAI-compatible requests
// with a generous timeout for large context windows.
var openaiHTTPClient = &http.Client{Timeout: 10 * time.Minute}

// OpenAIProvider implements Provider for any OpenAI-compatible
// chat-completions API. Works with OpenAI, Moonshot, DeepSeek, and local
// inference servers.
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAI creates a provider for an OpenAI-compatible endpoint.
func NewOpenAI(name, baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends the entire message history and tool schema set in a
// single request and parses the one returned choice. It never retries;
// a transport failure is the turn's failure.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := map[string]interface{}{
		"model":      model,
		"messages":   req.Messages,
		"n":          1,
		"max_tokens": maxTokens,
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type":     "function",
				"function": t,
			})
		}
		body["tools"] = tools
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "quill/0.1.0")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := openaiHTTPClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{
			Message:  fmt.Sprintf("http request: %v", err),
			Provider: p.name,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{
			Message:  fmt.Sprintf("read response: %v", err),
			Provider: p.name,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Provider:   p.name,
		}
	}

	var oaiResp struct {
		Choices []struct {
			Message      Message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, &ProviderError{
			Message:  fmt.Sprintf("parse response: %v", err),
			Provider: p.name,
		}
	}
	if len(oaiResp.Choices) == 0 {
		return nil, &ProviderError{
			Message:  "response contained no choices",
			Provider: p.name,
		}
	}

	choice := oaiResp.Choices[0]
	msg := choice.Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}

	total := oaiResp.Usage.TotalTokens
	if total == 0 {
		total = oaiResp.Usage.PromptTokens + oaiResp.Usage.CompletionTokens
	}

	return &CompletionResponse{
		Message:      msg,
		FinishReason: choice.FinishReason,
		Model:        oaiResp.Model,
		Usage: Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      total,
		},
	}, nil
}
