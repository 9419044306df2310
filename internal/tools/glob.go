package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/quill-labs/quill/internal/llm"
)

// ignoredDirs are dependency caches and VCS metadata that file walks
// never descend into.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".cache":       true,
}

// GlobTool finds files matching a glob pattern under a directory.
type GlobTool struct{}

func (GlobTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "glob",
		Description: "Find files matching a glob pattern (supports ** for recursive matches) under a directory. Dependency caches like node_modules are skipped.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"pattern": {Type: "string", Description: "Glob pattern, e.g. **/*.go or cmd/*/main.go"},
				"dir":     {Type: "string", Description: "Directory to search (default: current directory)"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (GlobTool) Run(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := requiredString(args, "pattern")
	if err != nil {
		return "", err
	}
	dir := stringArg(args, "dir", ".")

	var matches []string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
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
		if matchGlob(pattern, rel) {
			matches = append(matches, p)
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	if len(matches) == 0 {
		return "(no matches)", nil
	}
	return strings.Join(matches, "\n"), nil
}

// matchGlob matches a relative path against a glob pattern. Patterns
// containing ** match across path separators; a pattern with no
// separator also matches against the base name, so "*.go" finds files
// in subdirectories.
func matchGlob(pattern, relPath string) bool {
	pattern = filepath.ToSlash(pattern)
	relPath = filepath.ToSlash(relPath)

	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, relPath)
	}
	if ok, err := path.Match(pattern, relPath); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, err := path.Match(pattern, path.Base(relPath))
		return err == nil && ok
	}
	return false
}

// matchDoublestar handles the common single-** pattern forms: a fixed
// prefix, then ** spanning any number of segments, then a glob suffix
// matched against every tail of the remaining path.
func matchDoublestar(pattern, relPath string) bool {
	parts := strings.Split(pattern, "**")

	prefix := strings.TrimSuffix(parts[0], "/")
	rest := relPath
	if prefix != "" {
		if relPath != prefix && !strings.HasPrefix(relPath, prefix+"/") {
			return false
		}
		rest = strings.TrimPrefix(strings.TrimPrefix(relPath, prefix), "/")
	}

	suffix := strings.TrimPrefix(parts[len(parts)-1], "/")
	if suffix == "" {
		return true
	}

	segs := strings.Split(rest, "/")
	for i := range segs {
		tail := strings.Join(segs[i:], "/")
		if ok, err := path.Match(suffix, tail); err == nil && ok {
			return true
		}
	}
	return false
}
