package tools

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// fileTree creates the named files (slash-separated, content "x") under
// a fresh temp dir.
func fileTree(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func globPaths(t *testing.T, dir, pattern string) []string {
	t.Helper()
	got, err := GlobTool{}.Run(context.Background(), map[string]any{
		"pattern": pattern,
		"dir":     dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got == "(no matches)" {
		return nil
	}
	paths := strings.Split(got, "\n")
	sort.Strings(paths)
	return paths
}

func TestGlobDoublestar(t *testing.T) {
	dir := fileTree(t, "main.go", "readme.md", "sub/util.go", "sub/deep/notes.txt")

	got := globPaths(t, dir, "**/*.go")
	want := []string{filepath.Join(dir, "main.go"), filepath.Join(dir, "sub/util.go")}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("matches[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGlobBareName(t *testing.T) {
	dir := fileTree(t, "sub/deep/util.go", "sub/deep/notes.txt")

	// A pattern without a separator matches by base name anywhere.
	got := globPaths(t, dir, "*.go")
	if len(got) != 1 || got[0] != filepath.Join(dir, "sub/deep/util.go") {
		t.Errorf("matches = %v, want the nested .go file", got)
	}
}

func TestGlobSkipsIgnoredDirs(t *testing.T) {
	dir := fileTree(t, "main.go", "node_modules/pkg/index.go", ".git/hook.go", "vendor/dep/dep.go")

	got := globPaths(t, dir, "**/*.go")
	if len(got) != 1 || got[0] != filepath.Join(dir, "main.go") {
		t.Errorf("matches = %v, want only main.go", got)
	}
}

func TestGlobNoMatches(t *testing.T) {
	dir := fileTree(t, "main.go")

	got, err := GlobTool{}.Run(context.Background(), map[string]any{
		"pattern": "*.rs",
		"dir":     dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "(no matches)" {
		t.Errorf("Run = %q, want %q", got, "(no matches)")
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.go", "a.go", true},
		{"*.go", "sub/a.go", true},
		{"*.md", "a.go", false},
		{"sub/*.go", "sub/a.go", true},
		{"sub/*.go", "other/a.go", false},
		{"**/*.go", "a.go", true},
		{"**/*.go", "sub/deep/a.go", true},
		{"**/*.go", "sub/a.md", false},
		{"cmd/**/main.go", "cmd/x/main.go", true},
		{"cmd/**/main.go", "cmd/x/y/main.go", true},
		{"cmd/**/main.go", "lib/x/main.go", false},
		{"cmd/**", "cmd/x/y.go", true},
		{"cmd/**", "other/y.go", false},
	}
	for _, tc := range tests {
		if got := matchGlob(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
