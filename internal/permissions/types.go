package permissions

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// Status is the approval gate state.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusAwaitingPermission Status = "awaiting_permission"
	StatusExecuting          Status = "executing"
)

// Decision is the operator's answer to a request.
type Decision string

const (
	AllowOnce    Decision = "allow_once"
	AllowSession Decision = "allow_session"
	Deny         Decision = "deny"
)

// Allowed reports whether the decision lets the tool run.
func (d Decision) Allowed() bool {
	return d == AllowOnce || d == AllowSession
}

// Mode defines the permission checking mode
type Mode string

const (
	ModeAsk    Mode = "ask"    // prompt for tools that need approval
	ModeAuto   Mode = "auto"   // approve everything without prompting
	ModeStrict Mode = "strict" // deny everything that needs approval
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAsk, ModeAuto, ModeStrict:
		return m, nil
	case "":
		return ModeAsk, nil
	default:
		return "", fmt.Errorf("unknown permission mode %q", s)
	}
}

// Scope controls how far an allow_session grant reaches.
type Scope string

const (
	ScopeProcess Scope = "process" // grant applies to every thread
	ScopeThread  Scope = "thread"  // grant applies to the granting thread only
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopeProcess, ScopeThread:
		return sc, nil
	case "":
		return ScopeProcess, nil
	default:
		return "", fmt.Errorf("unknown grant scope %q", s)
	}
}

// Request is one tool call surfaced to the approver. Respond is accepted once.
type Request struct {
	ThreadID    string
	Call        llm.ToolCall
	Level       string
	Description string

	once     sync.Once
	decision chan Decision
	done     chan struct{}
}

func newRequest(threadID string, call llm.ToolCall, level, description string) *Request {
	return &Request{
		ThreadID:    threadID,
		Call:        call,
		Level:       level,
		Description: description,
		decision:    make(chan Decision, 1),
		done:        make(chan struct{}),
	}
}

// Respond delivers the operator's decision. It returns false if the request
// was already answered or expired.
func (r *Request) Respond(d Decision) bool {
	accepted := false
	r.once.Do(func() {
		r.decision <- d
		close(r.done)
		accepted = true
	})
	return accepted
}

// Done is closed once the request is answered or expires.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// expire closes the request without a decision. It reports false if a
// decision was delivered first.
func (r *Request) expire() bool {
	expired := false
	r.once.Do(func() {
		close(r.done)
		expired = true
	})
	return expired
}

// Summary is a one-line description for prompts and logs.
func (r *Request) Summary() string {
	if len(r.Call.Args) == 0 {
		return r.Call.Name
	}
	keys := make([]string, 0, len(r.Call.Args))
	for k := range r.Call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(r.Call.Args[k])
		if len(v) > 60 {
			v = v[:57] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return fmt.Sprintf("%s(%s)", r.Call.Name, strings.Join(parts, ", "))
}

// Snapshot is a point-in-time view of the gate.
type Snapshot struct {
	Status  Status
	Pending *Request
}
