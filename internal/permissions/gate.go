// Package permissions implements the single-flight approval gate that stands
// between model-issued tool calls and their side effects.
package permissions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// DefaultTimeout is how long a request waits for the operator before it is denied.
const DefaultTimeout = 60 * time.Second

// Options configures a Gate.
type Options struct {
	Mode    Mode
	Scope   Scope
	Timeout time.Duration
	Clock   Clock

	// OnTransition observes every status change. Called with the gate lock released.
	OnTransition func(from, to Status)

	Logger *zap.Logger
}

// Gate serializes permission-requiring tool calls: at most one call is
// awaiting_permission or executing at any instant. Callers Acquire a Lease,
// ask for a decision, mark execution, and Release.
type Gate struct {
	mode    Mode
	scope   Scope
	timeout time.Duration
	clock   Clock
	onTrans func(from, to Status)
	log     *zap.Logger

	slot     chan struct{}
	requests chan *Request

	mu      sync.Mutex
	status  Status
	pending *Request
	holder  uint64 // generation of the lease holding the slot, 0 when free
	gen     uint64
	grants  map[string]struct{}
}

// NewGate creates a gate. Zero options mean ask mode, process scope, 60s timeout.
func NewGate(opts Options) *Gate {
	if opts.Mode == "" {
		opts.Mode = ModeAsk
	}
	if opts.Scope == "" {
		opts.Scope = ScopeProcess
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("permissions")
	}
	return &Gate{
		mode:     opts.Mode,
		scope:    opts.Scope,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		onTrans:  opts.OnTransition,
		log:      opts.Logger,
		slot:     make(chan struct{}, 1),
		requests: make(chan *Request, 1),
		status:   StatusIdle,
		grants:   make(map[string]struct{}),
	}
}

// Requests is the approver mailbox. Each request must be answered with
// Respond or left to time out.
func (g *Gate) Requests() <-chan *Request {
	return g.requests
}

// Mode returns the configured mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// State returns the current status and pending request.
func (g *Gate) State() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{Status: g.status, Pending: g.pending}
}

// Lease is the right to run one permission-requiring call.
type Lease struct {
	gate *Gate
	gen  uint64
}

// Acquire waits for the single-flight slot.
func (g *Gate) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.holder = g.gen
	return &Lease{gate: g, gen: g.gen}, nil
}

// RequestDecision asks for approval of call. A prior session grant answers
// immediately with AllowSession and leaves the status untouched. On timeout
// or cancellation the result is Deny together with the cause.
func (l *Lease) RequestDecision(ctx context.Context, threadID string, call llm.ToolCall, level, description string) (Decision, error) {
	g := l.gate

	if g.HasSessionGrant(threadID, call.Name) {
		return AllowSession, nil
	}
	switch g.mode {
	case ModeAuto:
		return AllowOnce, nil
	case ModeStrict:
		return Deny, nil
	}

	req := newRequest(threadID, call, level, description)
	if !l.transition(StatusAwaitingPermission, req) {
		return Deny, berrors.PermissionDenied(call.Name)
	}

	timeout := g.clock.After(g.timeout)

	// the mailbox has room for the single in-flight request
	select {
	case g.requests <- req:
	case <-timeout:
		return l.expire(req, berrors.PermissionTimeout(call.Name, g.timeout))
	case <-ctx.Done():
		return l.expire(req, ctx.Err())
	}

	select {
	case <-req.Done():
		return l.decided(req, call.Name)
	case <-timeout:
		if !req.expire() {
			return l.decided(req, call.Name)
		}
		g.log.Warn(logging.EventPermissionTimeout, logging.ThreadID(threadID), logging.ToolName(call.Name))
		logging.GlobalMetrics().RecordPermissionTimeout()
		return l.abandon(berrors.PermissionTimeout(call.Name, g.timeout))
	case <-ctx.Done():
		return l.expire(req, ctx.Err())
	}
}

// decided reads the outcome of a request that is already done. A request
// closed without a decision was expired by Gate.Reset.
func (l *Lease) decided(req *Request, tool string) (Decision, error) {
	select {
	case d := <-req.decision:
		if !d.Allowed() {
			l.transition(StatusIdle, nil)
			return Deny, nil
		}
		return d, nil
	default:
		return Deny, berrors.PermissionDenied(tool)
	}
}

// expire abandons req unless a decision already arrived, in which case that
// decision stands.
func (l *Lease) expire(req *Request, cause error) (Decision, error) {
	if !req.expire() {
		return l.decided(req, req.Call.Name)
	}
	return l.abandon(cause)
}

// abandon drops an expired request from the mailbox if the approver never
// took it, and returns to idle.
func (l *Lease) abandon(cause error) (Decision, error) {
	l.gate.drainMailbox()
	l.transition(StatusIdle, nil)
	return Deny, cause
}

// BeginExecuting marks the approved call as running.
func (l *Lease) BeginExecuting() {
	l.transition(StatusExecuting, nil)
}

// Release returns the gate to idle and frees the slot. Safe to call more than
// once; a lease invalidated by Gate.Reset releases nothing.
func (l *Lease) Release() {
	g := l.gate
	g.mu.Lock()
	if g.holder != l.gen {
		g.mu.Unlock()
		return
	}
	from := g.status
	g.status = StatusIdle
	g.pending = nil
	g.holder = 0
	g.mu.Unlock()

	<-g.slot
	g.notify(from, StatusIdle)
}

// transition changes status if the lease still owns the gate.
func (l *Lease) transition(to Status, pending *Request) bool {
	g := l.gate
	g.mu.Lock()
	if g.holder != l.gen {
		g.mu.Unlock()
		return false
	}
	from := g.status
	g.status = to
	if to == StatusAwaitingPermission {
		g.pending = pending
	} else if to == StatusIdle {
		g.pending = nil
	}
	g.mu.Unlock()

	g.notify(from, to)
	return true
}

// Reset unconditionally returns the gate to idle, drops any pending request,
// and frees the slot. The current lease, if any, becomes inert.
func (g *Gate) Reset() {
	g.mu.Lock()
	from := g.status
	pending := g.pending
	held := g.holder != 0
	g.status = StatusIdle
	g.pending = nil
	g.holder = 0
	g.mu.Unlock()

	if pending != nil {
		pending.expire()
	}
	g.drainMailbox()
	if held {
		<-g.slot
	}
	g.notify(from, StatusIdle)
}

// drainMailbox drops a request the approver has not picked up. The slot
// guarantees it is the one being abandoned.
func (g *Gate) drainMailbox() {
	select {
	case <-g.requests:
	default:
	}
}

func (g *Gate) notify(from, to Status) {
	if from == to {
		return
	}
	g.log.Debug(logging.EventPermissionTransition, logging.From(string(from)), logging.To(string(to)))
	if g.onTrans != nil {
		g.onTrans(from, to)
	}
}

// GrantSession records an allow_session grant. Idempotent.
func (g *Gate) GrantSession(threadID, toolName string) {
	g.mu.Lock()
	_, existed := g.grants[g.grantKey(threadID, toolName)]
	g.grants[g.grantKey(threadID, toolName)] = struct{}{}
	g.mu.Unlock()

	if !existed {
		g.log.Info(logging.EventPermissionGranted,
			logging.ThreadID(threadID),
			logging.ToolName(toolName),
			zap.String("scope", string(g.scope)),
		)
	}
}

// HasSessionGrant reports whether toolName was granted for the session.
func (g *Gate) HasSessionGrant(threadID, toolName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.grants[g.grantKey(threadID, toolName)]
	return ok
}

// RevokeSessionGrants forgets every grant.
func (g *Gate) RevokeSessionGrants() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants = make(map[string]struct{})
}

// grantKey is the tool name alone under process scope. Callers hold g.mu.
func (g *Gate) grantKey(threadID, toolName string) string {
	if g.scope == ScopeThread {
		return threadID + "\x00" + toolName
	}
	return toolName
}
