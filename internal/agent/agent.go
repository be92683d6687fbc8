// Package agent runs the conversation loop: model turns, permission-gated
// tool execution, and thread memory management.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ctxmgr "github.com/BerkeliumLabs/berkelium/internal/context"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
	"github.com/BerkeliumLabs/berkelium/internal/memory"
)

// SummaryTag prefixes the seeded summary of a compressed thread.
const SummaryTag = "[CONVERSATION SUMMARY]"

// ErrNoPendingToolCalls is returned when tool results arrive for a thread
// with no outstanding model turn.
var ErrNoPendingToolCalls = errors.New("no pending tool calls for thread")

// Result classifies one model turn.
type Result struct {
	Finished  bool
	Answer    string
	ToolCalls []llm.ToolCall
	Err       error
	Usage     *llm.Usage
}

// Config holds agent dependencies.
type Config struct {
	Model llm.Model
	Store memory.Store

	// Tools is offered to the model on every turn. Nil disables tool use.
	Tools []llm.ToolDefinition

	// Estimator, when set, is calibrated with reported input tokens.
	Estimator *ctxmgr.Estimator

	Logger *zap.Logger
}

// Agent wraps model invocations for threads. A turn that requests tools is
// held as pending and committed together with its results, so stored history
// never ends with unanswered tool calls.
type Agent struct {
	model     llm.Model
	store     memory.Store
	tools     []llm.ToolDefinition
	estimator *ctxmgr.Estimator
	logger    *zap.Logger
	metrics   *logging.Metrics

	mu      sync.Mutex
	pending map[string]llm.Message
	usage   map[string]llm.Usage
}

// New creates an agent.
func New(cfg Config) *Agent {
	if cfg.Store == nil {
		cfg.Store = memory.NewInMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Named("agent")
	}
	return &Agent{
		model:     cfg.Model,
		store:     cfg.Store,
		tools:     cfg.Tools,
		estimator: cfg.Estimator,
		logger:    cfg.Logger,
		metrics:   logging.GlobalMetrics(),
		pending:   make(map[string]llm.Message),
		usage:     make(map[string]llm.Usage),
	}
}

// GenerateResponse submits prompt on threadID. The system context is
// prepended only when the thread is empty.
func (a *Agent) GenerateResponse(ctx context.Context, prompt, systemContext, threadID string) Result {
	return a.generate(ctx, prompt, systemContext, threadID, a.tools)
}

func (a *Agent) generate(ctx context.Context, prompt, systemContext, threadID string, defs []llm.ToolDefinition) Result {
	history, err := a.store.Get(ctx, threadID)
	if err != nil {
		return Result{Finished: true, Err: err}
	}

	// a new prompt abandons tool calls left unanswered by an earlier turn
	a.dropPending(threadID)

	msgs := make([]llm.Message, 0, 2)
	if len(history) == 0 {
		msgs = append(msgs, llm.SystemMessage(systemContext))
	}
	msgs = append(msgs, llm.HumanMessage(prompt))
	if err := a.store.Append(ctx, threadID, msgs...); err != nil {
		return Result{Finished: true, Err: err}
	}

	return a.invoke(ctx, threadID, defs)
}

// ProcessToolResults commits the pending model turn and one tool message per
// outcome, in order, then resubmits the thread.
func (a *Agent) ProcessToolResults(ctx context.Context, outcomes []ToolOutcome, threadID string) Result {
	pending, ok := a.takePending(threadID)
	if !ok {
		return Result{Finished: true, Err: ErrNoPendingToolCalls}
	}

	msgs := make([]llm.Message, 0, len(outcomes)+1)
	msgs = append(msgs, pending)
	for _, o := range outcomes {
		msgs = append(msgs, llm.ToolMessage(o.CallID, o.Name, o.Result.Content()))
	}
	if err := a.store.Append(ctx, threadID, msgs...); err != nil {
		return Result{Finished: true, Err: err}
	}

	return a.invoke(ctx, threadID, a.tools)
}

func (a *Agent) invoke(ctx context.Context, threadID string, defs []llm.ToolDefinition) Result {
	history, err := a.store.Get(ctx, threadID)
	if err != nil {
		return Result{Finished: true, Err: err}
	}

	requestID := uuid.NewString()
	a.logger.Debug(logging.EventModelRequest,
		logging.ThreadID(threadID),
		logging.RequestID(requestID),
		logging.Model(a.model.Name()),
		logging.MessageCount(len(history)),
	)

	start := time.Now()
	resp, err := a.model.Invoke(ctx, threadID, history, defs)
	if err != nil {
		a.metrics.RecordModelCall(threadID, 0, 0, 0, err)
		a.logger.Warn(logging.EventModelError,
			logging.ThreadID(threadID),
			logging.RequestID(requestID),
			logging.Error(err),
			logging.DurationSince(start),
		)
		return Result{Finished: true, Err: err}
	}

	a.recordUsage(threadID, history, resp.Usage)
	a.logger.Debug(logging.EventModelResponse,
		logging.ThreadID(threadID),
		logging.RequestID(requestID),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.String("stop_reason", resp.StopReason),
		logging.DurationSince(start),
	)

	if len(resp.ToolCalls) > 0 {
		calls := ensureCallIDs(resp.ToolCalls)
		a.mu.Lock()
		a.pending[threadID] = llm.AIMessage(resp.Content, calls, resp.Usage)
		a.mu.Unlock()
		return Result{ToolCalls: calls, Usage: resp.Usage}
	}

	ai := llm.AIMessage(resp.Content, nil, resp.Usage)
	if err := a.store.Append(ctx, threadID, ai); err != nil {
		return Result{Finished: true, Err: err}
	}
	return Result{Finished: true, Answer: resp.Text(), Usage: resp.Usage}
}

func (a *Agent) recordUsage(threadID string, history []llm.Message, usage *llm.Usage) {
	if usage == nil {
		a.metrics.RecordModelCall(threadID, 0, 0, 0, nil)
		return
	}
	a.metrics.RecordModelCall(threadID, usage.InputTokens, usage.OutputTokens, usage.TotalTokens, nil)
	a.mu.Lock()
	a.usage[threadID] = *usage
	a.mu.Unlock()
	if a.estimator != nil {
		a.estimator.Observe(history, usage.InputTokens)
	}
}

// ensureCallIDs fills missing or repeated call ids so every tool message can
// be correlated within the turn.
func ensureCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	seen := make(map[string]bool, len(calls))
	for i, c := range calls {
		c = c.Clone()
		if c.ID == "" || seen[c.ID] {
			c.ID = "call_" + uuid.NewString()
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out
}

// LastUsage returns the usage reported by the thread's latest model turn.
func (a *Agent) LastUsage(threadID string) (llm.Usage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.usage[threadID]
	return u, ok
}

// Stats reports the thread's estimated context window usage.
func (a *Agent) Stats(ctx context.Context, threadID string) (ctxmgr.Stats, bool) {
	if a.estimator == nil {
		return ctxmgr.Stats{}, false
	}
	return a.estimator.Stats(a.History(ctx, threadID)), true
}

// History returns the committed messages of a thread, or an empty slice.
func (a *Agent) History(ctx context.Context, threadID string) []llm.Message {
	msgs, err := a.store.Get(ctx, threadID)
	if err != nil {
		a.logger.Warn("failed to read thread", logging.ThreadID(threadID), logging.Error(err))
		return []llm.Message{}
	}
	if msgs == nil {
		return []llm.Message{}
	}
	return msgs
}

// ClearThread removes every message of a thread. Idempotent.
func (a *Agent) ClearThread(ctx context.Context, threadID string) error {
	a.dropPending(threadID)
	a.mu.Lock()
	delete(a.usage, threadID)
	a.mu.Unlock()
	if err := a.store.Clear(ctx, threadID); err != nil {
		return err
	}
	a.logger.Debug(logging.EventThreadCleared, logging.ThreadID(threadID))
	return nil
}

// CompressThread replaces a thread's history with its system context and a
// tagged summary. The previous messages are discarded. A pending turn is kept,
// so compression requested by a tool call lands before that call's result.
func (a *Agent) CompressThread(ctx context.Context, threadID, summary, systemContext string) error {
	return a.store.Replace(ctx, threadID, []llm.Message{
		llm.SystemMessage(systemContext),
		llm.HumanMessage(SummaryTag + "\n" + summary),
	})
}

// Threads lists stored threads, most recently updated first.
func (a *Agent) Threads(ctx context.Context) ([]memory.ThreadInfo, error) {
	return a.store.Threads(ctx)
}

// ModelName returns the underlying model name.
func (a *Agent) ModelName() string {
	return a.model.Name()
}

func (a *Agent) takePending(threadID string) (llm.Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg, ok := a.pending[threadID]
	delete(a.pending, threadID)
	return msg, ok
}

func (a *Agent) dropPending(threadID string) {
	a.mu.Lock()
	delete(a.pending, threadID)
	a.mu.Unlock()
}
