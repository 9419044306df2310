package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quill-labs/quill/internal/llm"
	"github.com/quill-labs/quill/internal/tools"
)

// Interactor is the narrow surface the agent needs from the interactive
// layer: confirmation answers and progress events. The agent never
// touches the terminal directly.
type Interactor interface {
	// Confirm asks whether a dangerous tool call may run.
	Confirm(tool, rawArgs string) Decision
	// AssistantText reports intermediate assistant text that accompanies
	// tool calls. The final text comes back from Run instead.
	AssistantText(text string)
	// ToolCall reports that a tool is about to execute.
	ToolCall(tool, rawArgs string)
	// ToolResult reports a finished tool execution.
	ToolResult(tool, result string, isError bool)
}

// Headless answers every confirmation with a fixed decision and ignores
// progress events. One-shot mode uses it.
type Headless struct{ Allow bool }

func (h Headless) Confirm(string, string) Decision {
	if h.Allow {
		return AllowOnce
	}
	return Deny
}
func (Headless) AssistantText(string)          {}
func (Headless) ToolCall(string, string)       {}
func (Headless) ToolResult(string, string, bool) {}

// Recorder receives telemetry about model invocations and tool calls.
// Recording failures never interrupt a turn.
type Recorder interface {
	RecordInvocation(model string, promptTokens, completionTokens int, cost float64, d time.Duration) error
	RecordToolCall(tool string, d time.Duration, isError bool) error
}

// Prices holds per-million-token prices for cost accounting. Zero
// values disable cost tracking.
type Prices struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// StopReason says why a turn ended.
type StopReason int

const (
	// StopCompleted means the model signalled it was done.
	StopCompleted StopReason = iota
	// StopSafetyLimit means the iteration cap cut the loop off.
	StopSafetyLimit
)

// TurnResult is the outcome of one full user turn.
type TurnResult struct {
	Text   string
	Reason StopReason
	Turns  int       // model invocations consumed
	Usage  llm.Usage // summed over invocations, cost included
}

// Options configures an Agent.
type Options struct {
	Provider    llm.Provider
	Registry    *tools.Registry
	Gate        *Gate
	Interactor  Interactor
	Recorder    Recorder
	Model       string
	MaxTokens   int
	Temperature float64
	MaxTurns    int
	Prices      Prices
	// SystemPrompt seeds the conversation and every reset.
	SystemPrompt string
}

// Agent owns one conversation and drives the invoke → confirm →
// execute → append cycle. Single-threaded by design: one turn runs to
// completion before the next input is read.
type Agent struct {
	provider    llm.Provider
	registry    *tools.Registry
	gate        *Gate
	ui          Interactor
	recorder    Recorder
	conv        *Conversation
	model       string
	maxTokens   int
	temperature float64
	maxTurns    int
	prices      Prices
}

// New creates an agent with a fresh conversation.
func New(opts Options) *Agent {
	ui := opts.Interactor
	if ui == nil {
		ui = Headless{}
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate(nil)
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Agent{
		provider:    opts.Provider,
		registry:    opts.Registry,
		gate:        gate,
		ui:          ui,
		recorder:    opts.Recorder,
		conv:        NewConversation(opts.SystemPrompt),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		maxTurns:    maxTurns,
		prices:      opts.Prices,
	}
}

// Reset discards the conversation, leaving only the seed. The next
// request carries no residue from before the reset.
func (a *Agent) Reset() { a.conv.Reset() }

// History returns a copy of the conversation so far.
func (a *Agent) History() []llm.Message { return a.conv.Messages() }

// Tools returns the schemas of every registered tool.
func (a *Agent) Tools() []llm.ToolDefinition { return a.registry.Definitions() }

// Run executes one full user turn: the input is appended, then the
// model is invoked with the complete history and tool schemas until it
// stops requesting tools or the iteration cap trips. The assistant
// reply is appended verbatim before any of its tool calls execute, so
// the log stays causally ordered even when execution fails. Only
// transport errors escape; everything else feeds back into the
// conversation as tool-result content.
func (a *Agent) Run(ctx context.Context, input string) (*TurnResult, error) {
	a.conv.Append(llm.Message{Role: "user", Content: input})

	var total llm.Usage
	for turn := 0; turn < a.maxTurns; turn++ {
		req := llm.CompletionRequest{
			Model:       a.model,
			Messages:    a.conv.Messages(),
			Tools:       a.registry.Definitions(),
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
		}

		start := time.Now()
		resp, err := a.provider.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("model invocation %d failed: %w", turn+1, err)
		}
		a.recordInvocation(resp, time.Since(start), &total)

		a.conv.Append(resp.Message)

		if resp.FinishReason == llm.FinishStop || len(resp.Message.ToolCalls) == 0 {
			return &TurnResult{
				Text:   resp.Message.Content,
				Reason: StopCompleted,
				Turns:  turn + 1,
				Usage:  total,
			}, nil
		}

		if resp.Message.Content != "" {
			a.ui.AssistantText(resp.Message.Content)
		}

		for _, call := range resp.Message.ToolCalls {
			result := a.executeCall(ctx, call)
			a.conv.Append(llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	slog.Warn("turn hit iteration cap", "max_turns", a.maxTurns)
	return &TurnResult{
		Reason: StopSafetyLimit,
		Turns:  a.maxTurns,
		Usage:  total,
	}, nil
}

// executeCall gates and dispatches a single tool call, returning the
// result string that becomes the tool message. Denial short-circuits
// only this call; later calls in the same reply still run.
func (a *Agent) executeCall(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name
	rawArgs := call.Function.Arguments

	if a.gate.NeedsConfirmation(name) {
		switch a.ui.Confirm(name, rawArgs) {
		case AlwaysAllow:
			a.gate.RememberAllow(name)
		case AllowOnce:
		default:
			slog.Info("tool call denied", "tool", name)
			return deniedByUser
		}
	}

	a.ui.ToolCall(name, rawArgs)
	start := time.Now()
	result := a.registry.Execute(ctx, name, rawArgs)
	isError := strings.HasPrefix(result, "error:")
	if a.recorder != nil {
		if err := a.recorder.RecordToolCall(name, time.Since(start), isError); err != nil {
			slog.Warn("record tool call", "tool", name, "error", err)
		}
	}
	a.ui.ToolResult(name, result, isError)
	return result
}

// recordInvocation prices the usage, accumulates the turn total, and
// hands the row to the recorder.
func (a *Agent) recordInvocation(resp *llm.CompletionResponse, d time.Duration, total *llm.Usage) {
	usage := resp.Usage
	usage.Cost = float64(usage.PromptTokens)/1e6*a.prices.InputPerMTok +
		float64(usage.CompletionTokens)/1e6*a.prices.OutputPerMTok

	total.PromptTokens += usage.PromptTokens
	total.CompletionTokens += usage.CompletionTokens
	total.TotalTokens += usage.TotalTokens
	total.Cost += usage.Cost

	if a.recorder != nil {
		if err := a.recorder.RecordInvocation(resp.Model, usage.PromptTokens, usage.CompletionTokens, usage.Cost, d); err != nil {
			slog.Warn("record invocation", "error", err)
		}
	}
}
