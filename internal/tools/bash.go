package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/quill-labs/quill/internal/llm"
)

// bashTimeout is the hard wall-clock limit for a single command.
const bashTimeout = 30 * time.Second

// BashTool runs a shell command with a hard timeout. A timeout is a
// plain result, not an error, so the model sees what happened instead of
// a process-kill failure.
type BashTool struct{}

func (BashTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "bash",
		Description: "Run a shell command with bash -c and return its combined output. Commands are killed after 30 seconds.",
		Parameters: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"command": {Type: "string", Description: "Shell command to execute"},
			},
			Required: []string{"command"},
		},
	}
}

func (BashTool) Run(ctx context.Context, args map[string]any) (string, error) {
	command, err := requiredString(args, "command")
	if err != nil {
		return "", err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, bashTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "bash", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return "(timed out after 30s)", nil
	}

	output := strings.TrimSpace(stdout.String() + stderr.String())
	if runErr != nil {
		if output != "" {
			return "", fmt.Errorf("command failed: %v\n%s", runErr, output)
		}
		return "", fmt.Errorf("command failed: %v", runErr)
	}
	if output == "" {
		return "(empty)", nil
	}
	return output, nil
}
