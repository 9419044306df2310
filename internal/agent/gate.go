package agent

import "log/slog"

// dangerousTools is the fixed set of tools with destructive or
// externally visible side effects. Everything else runs unprompted.
var dangerousTools = map[string]bool{
	"write": true,
	"edit":  true,
	"bash":  true,
}

// deniedByUser is the tool result recorded when the user refuses a
// dangerous call. The tool never runs; the model sees this string.
const deniedByUser = "denied by user"

// Decision is the answer to a confirmation prompt. Anything that is not
// an explicit affirmative maps to Deny.
type Decision int

const (
	Deny Decision = iota
	AllowOnce
	AlwaysAllow
)

// ApprovalStore persists always-allow decisions across sessions.
type ApprovalStore interface {
	IsApproved(tool string) bool
	Approve(tool string) error
}

// Gate decides whether a tool call needs interactive confirmation
// before it may run.
type Gate struct {
	store   ApprovalStore
	session map[string]bool
}

// NewGate creates a gate. store may be nil, in which case always-allow
// answers last only for the process lifetime.
func NewGate(store ApprovalStore) *Gate {
	return &Gate{store: store, session: make(map[string]bool)}
}

// NeedsConfirmation reports whether the named tool requires approval
// before executing.
func (g *Gate) NeedsConfirmation(tool string) bool {
	if !dangerousTools[tool] {
		return false
	}
	if g.session[tool] {
		return false
	}
	if g.store != nil && g.store.IsApproved(tool) {
		return false
	}
	return true
}

// RememberAllow records an always-allow decision, persisting it when a
// store is configured.
func (g *Gate) RememberAllow(tool string) {
	g.session[tool] = true
	if g.store == nil {
		return
	}
	if err := g.store.Approve(tool); err != nil {
		slog.Warn("persist tool approval", "tool", tool, "error", err)
	}
}
