// Package tools implements quill's built-in tools and the dispatcher
// that executes model-requested tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quill-labs/quill/internal/llm"
)

// Tool is a single capability the model can invoke. Definitions are
// static; Run receives the parsed argument object and returns the result
// content or an error, which the registry encodes for the model.
type Tool interface {
	Definition() llm.ToolDefinition
	Run(ctx context.Context, args map[string]any) (string, error)
}

// Registry maps tool names to implementations and owns the dispatch
// contract: every execution produces a string, errors included.
type Registry struct {
	order  []string
	byName map[string]Tool
}

// NewRegistry creates a registry with the given tools, preserving
// registration order for Definitions.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Defaults returns the six built-in tools in their canonical order.
func Defaults() []Tool {
	return []Tool{
		ReadTool{},
		WriteTool{},
		EditTool{},
		BashTool{},
		GlobTool{},
		GrepTool{},
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = t
}

// Definitions returns the static schema set in registration order. The
// same set goes to the model on every request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Execute runs one tool call and always returns a result string: parse
// failures, unknown names, handler errors, and handler panics all come
// back as "error: ..." content for the model, never as a panic or a
// broken loop.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (result string) {
	start := time.Now()
	isError := false
	defer func() {
		if rec := recover(); rec != nil {
			isError = true
			result = fmt.Sprintf("error: tool %s panicked: %v", name, rec)
		}
		slog.Info("tool call",
			"tool", name,
			"duration", time.Since(start).Round(time.Millisecond),
			"is_error", isError,
		)
	}()

	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			isError = true
			return fmt.Sprintf("error: invalid tool arguments: %v", err)
		}
	}

	tool, ok := r.byName[name]
	if !ok {
		isError = true
		return fmt.Sprintf("error: unknown tool %q", name)
	}

	content, err := tool.Run(ctx, args)
	if err != nil {
		isError = true
		return "error: " + err.Error()
	}
	return content
}
