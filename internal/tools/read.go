package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/quill-labs/quill/internal/llm"
)

// ReadTool returns file content with 1-based line numbers. Numbering
// always reflects true file position, so a sliced read still tells the
// model where it is in the file.
type ReadTool struct{}

func (ReadTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "read",
		Description: "Read a text file and return its lines with 1-based line numbers. Use offset and limit to page through large files.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path":   {Type: "string", Description: "Path of the file to read"},
				"offset": {Type: "integer", Description: "Zero-based line index to start from"},
				"limit":  {Type: "integer", Description: "Maximum number of lines to return"},
			},
			Required: []string{"path"},
		},
	}
}

func (ReadTool) Run(ctx context.Context, args map[string]any) (string, error) {
	path, err := requiredString(args, "path")
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	// A trailing newline produces one empty trailing element; drop it so
	// numbering matches what an editor shows.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	offset := intArg(args, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	if offset > 0 && offset >= len(lines) {
		return "", fmt.Errorf("offset %d is beyond the end of %s (%d lines)", offset, path, len(lines))
	}

	end := len(lines)
	if limit := intArg(args, "limit", 0); limit > 0 && offset+limit < end {
		end = offset + limit
	}

	numbered := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		numbered = append(numbered, fmt.Sprintf("%4d| %s", i+1, lines[i]))
	}
	return strings.Join(numbered, "\n"), nil
}
