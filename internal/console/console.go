// Package console is quill's interactive layer: a line-edited REPL with
// input history, markdown rendering, and the confirmation prompts the
// agent's gate suspends on.
package console

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"

	"github.com/quill-labs/quill/internal/agent"
	"github.com/quill-labs/quill/pkg/ledger"
)

// Console reads user input and renders agent activity. It implements
// agent.Interactor, so a running turn can suspend on it for
// confirmation answers.
type Console struct {
	line        *liner.State
	historyPath string
	agent       *agent.Agent
	ledger      *ledger.Ledger
}

// New creates a console with line editing and persistent input history.
func New(historyPath string) *Console {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &Console{line: line, historyPath: historyPath}
	c.loadHistory()
	return c
}

// Close saves input history and restores the terminal.
func (c *Console) Close() {
	c.saveHistory()
	c.line.Close()
}

func (c *Console) loadHistory() {
	if f, err := os.Open(c.historyPath); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

func (c *Console) saveHistory() {
	if dir := filepath.Dir(c.historyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return
		}
	}
	f, err := os.OpenFile(c.historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Banner prints the startup line.
func (c *Console) Banner(version, provider, model string) {
	fmt.Println(bannerStyle.Render("quill") + " " + infoStyle.Render(version+" | "+provider+" | "+model))
	fmt.Println(infoStyle.Render("type a request, or /help for commands"))
	fmt.Println()
}

// Run drives the REPL until /exit, /quit, or end of input. One turn
// runs to completion before the next prompt; Ctrl-C during a turn
// abandons it and returns to the prompt.
func (c *Console) Run(ctx context.Context, a *agent.Agent, l *ledger.Ledger) error {
	c.agent = a
	c.ledger = l

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		input, err := c.line.Prompt(promptStyle.Render("quill> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println(infoStyle.Render("(/exit to quit)"))
				continue
			}
			// EOF (Ctrl-D) or a closed terminal
			fmt.Println()
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		c.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := c.handleCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
			}
			if quit {
				break
			}
			continue
		}

		c.runTurn(ctx, sigCh, input)
	}

	c.printSessionSummary()
	return nil
}

// runTurn executes one agent turn, wiring SIGINT to the turn's context
// so an in-flight model call or tool can be abandoned.
func (c *Console) runTurn(ctx context.Context, sigCh chan os.Signal, input string) {
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[cancelled]"))
			cancel()
		case <-done:
		}
	}()

	res, err := c.agent.Run(turnCtx, input)
	close(done)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
		return
	}

	switch res.Reason {
	case agent.StopSafetyLimit:
		fmt.Println(warningStyle.Render(fmt.Sprintf(
			"[stopped] safety limit reached after %d model invocations", res.Turns)))
	default:
		if res.Text != "" {
			fmt.Print(renderMarkdown(res.Text))
		}
	}

	if res.Usage.TotalTokens > 0 {
		line := fmt.Sprintf("%d tokens", res.Usage.TotalTokens)
		if res.Usage.Cost > 0 {
			line += fmt.Sprintf(" | $%.4f", res.Usage.Cost)
		}
		fmt.Println(infoStyle.Render(line))
	}
}

// handleCommand dispatches a slash command. quit reports that the REPL
// should end.
func (c *Console) handleCommand(input string) (bool, error) {
	switch strings.Fields(input)[0] {
	case "/exit", "/quit":
		return true, nil

	case "/new", "/clear":
		c.agent.Reset()
		if c.ledger != nil {
			if err := c.ledger.StartSession(uuid.New().String()); err != nil {
				return false, err
			}
		}
		fmt.Println(infoStyle.Render("conversation cleared"))
		return false, nil

	case "/help":
		c.printHelp()
		return false, nil

	case "/tools":
		c.printTools()
		return false, nil

	case "/usage":
		return false, c.printUsage()

	case "/reset-approvals":
		if c.ledger == nil {
			fmt.Println(infoStyle.Render("no ledger configured"))
			return false, nil
		}
		if err := c.ledger.ClearApprovals(); err != nil {
			return false, err
		}
		fmt.Println(infoStyle.Render("remembered approvals cleared"))
		return false, nil

	default:
		fmt.Println(infoStyle.Render("unknown command; try /help"))
		return false, nil
	}
}

func (c *Console) printHelp() {
	fmt.Println(infoStyle.Render(strings.TrimSpace(`
/new, /clear      start a fresh conversation
/tools            list available tools
/usage            show this session's token usage and cost
/reset-approvals  forget remembered always-allow answers
/exit, /quit      leave quill
`)))
}

func (c *Console) printTools() {
	for _, def := range c.agent.Tools() {
		fmt.Printf("%s  %s\n", toolStyle.Render(def.Name), infoStyle.Render(def.Description))
	}
}

func (c *Console) printUsage() error {
	if c.ledger == nil {
		fmt.Println(infoStyle.Render("no ledger configured"))
		return nil
	}
	s, err := c.ledger.SessionSummary()
	if err != nil {
		return err
	}
	fmt.Printf("%s %d calls, %d prompt + %d completion tokens",
		infoStyle.Render("model:"), s.Invocations, s.PromptTokens, s.CompletionTokens)
	if s.Cost > 0 {
		fmt.Printf(", $%.4f", s.Cost)
	}
	fmt.Println()
	fmt.Printf("%s %d calls, %d errors\n", infoStyle.Render("tools:"), s.ToolCalls, s.ToolErrors)
	return nil
}

func (c *Console) printSessionSummary() {
	if c.ledger == nil {
		return
	}
	s, err := c.ledger.SessionSummary()
	if err != nil || s.Invocations == 0 {
		return
	}
	line := fmt.Sprintf("session: %d model calls, %d tool calls, %d tokens",
		s.Invocations, s.ToolCalls, s.PromptTokens+s.CompletionTokens)
	if s.Cost > 0 {
		line += fmt.Sprintf(", $%.4f", s.Cost)
	}
	fmt.Println(infoStyle.Render(line))
}

// Confirm asks whether a dangerous tool call may run. Anything but an
// explicit yes (or always) is a denial.
func (c *Console) Confirm(tool, rawArgs string) agent.Decision {
	fmt.Println(warningStyle.Render(fmt.Sprintf("[confirm] %s wants to run:", tool)))
	fmt.Println("  " + preview(rawArgs, 200))

	answer, err := c.line.Prompt(warningStyle.Render("allow? [y/N/a] "))
	if err != nil {
		return agent.Deny
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return agent.AllowOnce
	case "a", "always":
		return agent.AlwaysAllow
	default:
		return agent.Deny
	}
}

// AssistantText shows intermediate assistant text that accompanies tool
// calls.
func (c *Console) AssistantText(text string) {
	fmt.Print(renderMarkdown(text))
}

// ToolCall shows a tool about to execute.
func (c *Console) ToolCall(tool, rawArgs string) {
	fmt.Println(toolStyle.Render("[tool] "+tool) + " " + infoStyle.Render(preview(rawArgs, 120)))
}

// ToolResult shows a finished tool execution.
func (c *Console) ToolResult(tool, result string, isError bool) {
	if isError {
		fmt.Println(errorStyle.Render("  " + preview(result, 200)))
		return
	}
	fmt.Println(infoStyle.Render("  " + preview(result, 200)))
}
