package agent

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/quill-labs/quill/internal/llm"
	"github.com/quill-labs/quill/internal/tools"
)

// scriptedProvider returns canned responses in order, repeating the last
// one forever, and records every request it sees.
type scriptedProvider struct {
	responses []*llm.CompletionResponse
	requests  []llm.CompletionRequest
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

// scriptedUI answers every confirmation with a fixed decision and
// records the events it receives.
type scriptedUI struct {
	decision  Decision
	confirms  []string
	texts     []string
	toolCalls []string
	results   []string
	errFlags  []bool
}

func (u *scriptedUI) Confirm(tool, rawArgs string) Decision {
	u.confirms = append(u.confirms, tool)
	return u.decision
}
func (u *scriptedUI) AssistantText(text string)    { u.texts = append(u.texts, text) }
func (u *scriptedUI) ToolCall(tool, rawArgs string) { u.toolCalls = append(u.toolCalls, tool) }
func (u *scriptedUI) ToolResult(tool, result string, isError bool) {
	u.results = append(u.results, result)
	u.errFlags = append(u.errFlags, isError)
}

// countingTool records how often it ran.
type countingTool struct {
	name string
	out  string
	err  error
	runs *int
}

func (c countingTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: c.name, Parameters: llm.Schema{Type: "object"}}
}

func (c countingTool) Run(context.Context, map[string]any) (string, error) {
	*c.runs++
	return c.out, c.err
}

type fakeRecorder struct {
	invocations int
	models      []string
	toolCalls   []string
	toolErrs    []bool
}

func (r *fakeRecorder) RecordInvocation(model string, promptTokens, completionTokens int, cost float64, d time.Duration) error {
	r.invocations++
	r.models = append(r.models, model)
	return nil
}

func (r *fakeRecorder) RecordToolCall(tool string, d time.Duration, isError bool) error {
	r.toolCalls = append(r.toolCalls, tool)
	r.toolErrs = append(r.toolErrs, isError)
	return nil
}

func toolCallResponse(id, name, text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Message: llm.Message{
			Role:    "assistant",
			Content: text,
			ToolCalls: []llm.ToolCall{{
				ID:       id,
				Type:     "function",
				Function: llm.FunctionCall{Name: name, Arguments: "{}"},
			}},
		},
		FinishReason: llm.FinishToolCalls,
		Model:        "test-model",
		Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func finalResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Message:      llm.Message{Role: "assistant", Content: text},
		FinishReason: llm.FinishStop,
		Model:        "test-model",
		Usage:        llm.Usage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27},
	}
}

func TestRunStopsOnFinish(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.CompletionResponse{finalResponse("done")}}
	a := New(Options{
		Provider: p,
		Registry: tools.NewRegistry(),
		Model:    "test-model",
	})

	res, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "done" {
		t.Errorf("Text = %q, want %q", res.Text, "done")
	}
	if res.Reason != StopCompleted {
		t.Errorf("Reason = %v, want StopCompleted", res.Reason)
	}
	if res.Turns != 1 {
		t.Errorf("Turns = %d, want 1", res.Turns)
	}

	// The one request carried the user input.
	msgs := p.requests[0].Messages
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "hi" {
		t.Errorf("request messages = %+v", msgs)
	}
}

func TestRunExecutesToolCalls(t *testing.T) {
	runs := 0
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "probe", "checking"),
		finalResponse("all done"),
	}}
	ui := &scriptedUI{}
	a := New(Options{
		Provider:   p,
		Registry:   tools.NewRegistry(countingTool{name: "probe", out: "probe output", runs: &runs}),
		Interactor: ui,
		Model:      "test-model",
	})

	res, err := a.Run(context.Background(), "look around")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "all done" || res.Turns != 2 {
		t.Errorf("result = %+v, want all done in 2 turns", res)
	}
	if runs != 1 {
		t.Errorf("tool ran %d times, want 1", runs)
	}

	// The second request must replay the assistant reply verbatim and
	// then the tool result keyed by the call id.
	msgs := p.requests[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != "assistant" || len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant message not replayed verbatim: %+v", msgs[1])
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "call_1" || msgs[2].Content != "probe output" {
		t.Errorf("tool message = %+v", msgs[2])
	}

	// Tool schemas ride on every request.
	for i, req := range p.requests {
		if len(req.Tools) != 1 || req.Tools[0].Name != "probe" {
			t.Errorf("request %d tools = %+v", i, req.Tools)
		}
	}

	// Intermediate text was surfaced; the final text was not.
	if len(ui.texts) != 1 || ui.texts[0] != "checking" {
		t.Errorf("AssistantText events = %v", ui.texts)
	}
	if len(ui.results) != 1 || ui.results[0] != "probe output" {
		t.Errorf("ToolResult events = %v", ui.results)
	}
}

func TestRunDeniedTool(t *testing.T) {
	runs := 0
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "bash", ""),
		finalResponse("understood"),
	}}
	ui := &scriptedUI{decision: Deny}
	a := New(Options{
		Provider:   p,
		Registry:   tools.NewRegistry(countingTool{name: "bash", out: "ran", runs: &runs}),
		Interactor: ui,
	})

	res, err := a.Run(context.Background(), "wipe the disk")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "understood" {
		t.Errorf("Text = %q", res.Text)
	}

	if runs != 0 {
		t.Errorf("denied tool ran %d times, want 0", runs)
	}
	if len(ui.confirms) != 1 || ui.confirms[0] != "bash" {
		t.Errorf("Confirm events = %v", ui.confirms)
	}
	if len(ui.toolCalls) != 0 {
		t.Errorf("ToolCall events = %v, want none for a denied call", ui.toolCalls)
	}

	// The model still sees a result for the call id.
	msgs := p.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" || last.Content != "denied by user" {
		t.Errorf("denial message = %+v", last)
	}
}

func TestRunAlwaysAllowConfirmsOnce(t *testing.T) {
	runs := 0
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "bash", ""),
		toolCallResponse("call_2", "bash", ""),
		finalResponse("done"),
	}}
	ui := &scriptedUI{decision: AlwaysAllow}
	a := New(Options{
		Provider:   p,
		Registry:   tools.NewRegistry(countingTool{name: "bash", out: "ok", runs: &runs}),
		Interactor: ui,
	})

	if _, err := a.Run(context.Background(), "twice"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runs != 2 {
		t.Errorf("tool ran %d times, want 2", runs)
	}
	if len(ui.confirms) != 1 {
		t.Errorf("Confirm asked %d times, want 1", len(ui.confirms))
	}
}

func TestRunSafetyLimit(t *testing.T) {
	runs := 0
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "probe", ""),
	}}
	a := New(Options{
		Provider: p,
		Registry: tools.NewRegistry(countingTool{name: "probe", out: "again", runs: &runs}),
		MaxTurns: 3,
	})

	res, err := a.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != StopSafetyLimit {
		t.Errorf("Reason = %v, want StopSafetyLimit", res.Reason)
	}
	if res.Turns != 3 {
		t.Errorf("Turns = %d, want 3", res.Turns)
	}
	if len(p.requests) != 3 {
		t.Errorf("provider saw %d requests, want 3", len(p.requests))
	}
	if runs != 3 {
		t.Errorf("tool ran %d times, want 3", runs)
	}
}

func TestRunProviderError(t *testing.T) {
	p := &scriptedProvider{err: &llm.ProviderError{
		Message:    "HTTP 500: upstream sad",
		StatusCode: 500,
		Provider:   "scripted",
	}}
	a := New(Options{Provider: p, Registry: tools.NewRegistry()})

	_, err := a.Run(context.Background(), "hi")
	if err == nil {
		t.Fatal("Run succeeded, want provider error")
	}
	if !strings.Contains(err.Error(), "model invocation 1 failed") {
		t.Errorf("error = %q, want invocation context", err)
	}
	var perr *llm.ProviderError
	if !errors.As(err, &perr) || perr.StatusCode != 500 {
		t.Errorf("error does not wrap the provider error: %v", err)
	}
}

func TestRunToolErrorFeedsBack(t *testing.T) {
	runs := 0
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "probe", ""),
		finalResponse("recovered"),
	}}
	ui := &scriptedUI{}
	a := New(Options{
		Provider:   p,
		Registry:   tools.NewRegistry(countingTool{name: "probe", err: errors.New("kaput"), runs: &runs}),
		Interactor: ui,
	})

	res, err := a.Run(context.Background(), "try it")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "recovered" {
		t.Errorf("Text = %q", res.Text)
	}

	msgs := p.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Content != "error: kaput" {
		t.Errorf("tool message = %q, want %q", last.Content, "error: kaput")
	}
	if len(ui.errFlags) != 1 || !ui.errFlags[0] {
		t.Errorf("ToolResult error flags = %v, want [true]", ui.errFlags)
	}
}

func TestRunRecordsTelemetry(t *testing.T) {
	runs := 0
	rec := &fakeRecorder{}
	p := &scriptedProvider{responses: []*llm.CompletionResponse{
		toolCallResponse("call_1", "probe", ""),
		finalResponse("done"),
	}}
	a := New(Options{
		Provider: p,
		Registry: tools.NewRegistry(countingTool{name: "probe", out: "ok", runs: &runs}),
		Recorder: rec,
		Prices:   Prices{InputPerMTok: 3, OutputPerMTok: 15},
	})

	res, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.invocations != 2 {
		t.Errorf("RecordInvocation called %d times, want 2", rec.invocations)
	}
	if len(rec.toolCalls) != 1 || rec.toolCalls[0] != "probe" || rec.toolErrs[0] {
		t.Errorf("tool telemetry = %v / %v", rec.toolCalls, rec.toolErrs)
	}

	// Usage sums both invocations; cost follows the per-MTok prices.
	if res.Usage.PromptTokens != 30 || res.Usage.CompletionTokens != 12 {
		t.Errorf("Usage = %+v", res.Usage)
	}
	wantCost := float64(30)/1e6*3 + float64(12)/1e6*15
	if math.Abs(res.Usage.Cost-wantCost) > 1e-12 {
		t.Errorf("Cost = %v, want %v", res.Usage.Cost, wantCost)
	}
}
