package llm

// ToolDefinition describes a tool the model can call. Definitions are
// static for the life of the process and sent verbatim on every request.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Schema is a JSON Schema object describing a tool's parameters.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single tool parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolCall represents the model requesting a tool execution, in the
// chat-completions function-call shape.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its raw JSON arguments. The
// arguments are untrusted text; the dispatcher owns parsing them.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
