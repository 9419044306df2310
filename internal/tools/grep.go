package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quill-labs/quill/internal/llm"
)

// maxGrepFileSize bounds how large a file grep will scan.
const maxGrepFileSize = 5 * 1024 * 1024

// GrepTool searches file contents with a regular expression.
type GrepTool struct{}

func (GrepTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "grep",
		Description: "Search file contents for a regular expression and return path:line: text for every match. Binary and unreadable files are skipped.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"pattern": {Type: "string", Description: "Regular expression to search for (Go syntax)"},
				"dir":     {Type: "string", Description: "Directory to search (default: current directory)"},
				"glob":    {Type: "string", Description: "Only search files matching this glob, e.g. *.go"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (GrepTool) Run(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := requiredString(args, "pattern")
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex %q: %v", pattern, err)
	}

	dir := stringArg(args, "dir", ".")
	include := stringArg(args, "glob", "")

	var results []string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if include != "" && !matchGlob(include, rel) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxGrepFileSize {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil // permission failures and the like are skipped
		}
		if bytes.IndexByte(data, 0) >= 0 {
			return nil // binary
		}

		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", p, i+1, line))
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	if len(results) == 0 {
		return "(no matches)", nil
	}
	return strings.Join(results, "\n"), nil
}
