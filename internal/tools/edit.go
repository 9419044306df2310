package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/quill-labs/quill/internal/llm"
)

// EditTool replaces a literal substring in a file. Ambiguity is an
// error: with more than one occurrence the caller must either supply a
// larger unique context or pass all=true. Counting and replacement share
// Go's non-overlapping string semantics, so they always agree.
type EditTool struct{}

func (EditTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "edit",
		Description: "Replace an exact literal substring in a file. Fails if the old string is absent, or ambiguous (multiple occurrences) without all=true.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path": {Type: "string", Description: "Path of the file to edit"},
				"old":  {Type: "string", Description: "Exact substring to replace"},
				"new":  {Type: "string", Description: "Replacement text"},
				"all":  {Type: "boolean", Description: "Replace every occurrence instead of requiring a unique match"},
			},
			Required: []string{"path", "old", "new"},
		},
	}
}

func (EditTool) Run(ctx context.Context, args map[string]any) (string, error) {
	path, err := requiredString(args, "path")
	if err != nil {
		return "", err
	}
	old, err := requiredString(args, "old")
	if err != nil {
		return "", err
	}
	if old == "" {
		return "", fmt.Errorf("parameter old must not be empty")
	}
	replacement, err := requiredString(args, "new")
	if err != nil {
		return "", err
	}
	all := boolArg(args, "all")

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	count := strings.Count(content, old)
	if count == 0 {
		return "", fmt.Errorf("old string not found in %s", path)
	}
	if count > 1 && !all {
		return "", fmt.Errorf("old string occurs %d times in %s; provide a larger unique context or pass all=true", count, path)
	}

	var updated string
	if all {
		updated = strings.ReplaceAll(content, old, replacement)
	} else {
		updated = strings.Replace(content, old, replacement, 1)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(updated), mode); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return "ok", nil
}
