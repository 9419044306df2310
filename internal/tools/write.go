package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/quill-labs/quill/internal/llm"
)

// WriteTool creates or truncates a file with the given content.
type WriteTool struct{}

func (WriteTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "write",
		Description: "Write content to a file, creating it or replacing what was there. Use edit for partial changes.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path":    {Type: "string", Description: "Path of the file to write"},
				"content": {Type: "string", Description: "Full new content of the file"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (WriteTool) Run(ctx context.Context, args map[string]any) (string, error) {
	path, err := requiredString(args, "path")
	if err != nil {
		return "", err
	}
	content, err := requiredString(args, "content")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return "ok", nil
}
