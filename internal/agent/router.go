package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BerkeliumLabs/berkelium/internal/commands"
	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// DefaultMaxTurns caps tool rounds per prompt when none is configured.
const DefaultMaxTurns = 20

// EmptyAnswer is returned when the model finishes without any content.
const EmptyAnswer = "The assistant returned an empty response."

// ContextSource supplies the system context for new threads.
type ContextSource interface {
	Context() string
}

// StaticContext is a fixed system context.
type StaticContext string

// Context returns s.
func (s StaticContext) Context() string { return string(s) }

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Agent    *Agent
	Executor *ToolExecutor
	Commands *commands.Catalog
	Context  ContextSource

	// MaxTurns is the number of tool rounds allowed per prompt.
	MaxTurns int

	Logger *zap.Logger
}

// Reply is the outcome of one routed prompt.
type Reply struct {
	Text       string
	Err        error
	ToolRounds int
}

// Router drives one user prompt to a final answer: command resolution,
// model turns, and tool rounds.
type Router struct {
	agent    *Agent
	executor *ToolExecutor
	commands *commands.Catalog
	context  ContextSource
	maxTurns int
	logger   *zap.Logger
	metrics  *logging.Metrics
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Commands == nil {
		cfg.Commands = commands.NewCatalog()
	}
	if cfg.Context == nil {
		cfg.Context = StaticContext("")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Named("router")
	}
	return &Router{
		agent:    cfg.Agent,
		executor: cfg.Executor,
		commands: cfg.Commands,
		context:  cfg.Context,
		maxTurns: cfg.MaxTurns,
		logger:   cfg.Logger,
		metrics:  logging.GlobalMetrics(),
	}
}

// RoutePrompt runs prompt on threadID and returns the user-visible text.
func (r *Router) RoutePrompt(ctx context.Context, prompt, threadID string, out Output) string {
	return r.Route(ctx, prompt, threadID, out).Text
}

// Route runs prompt on threadID. Errors are folded into Reply.Text as well
// as returned in Reply.Err.
func (r *Router) Route(ctx context.Context, prompt, threadID string, out Output) Reply {
	out = outputOrNop(out)
	start := time.Now()
	r.metrics.RecordPrompt()
	r.logger.Debug(logging.EventRoutePrompt, logging.ThreadID(threadID), zap.Int("prompt_len", len(prompt)))

	if commands.IsCommand(prompt) {
		resolved, err := r.commands.Resolve(prompt)
		if err != nil {
			return failed(err, 0)
		}
		parsed, _ := commands.Parse(prompt)
		r.logger.Info(logging.EventCommand, logging.ThreadID(threadID), zap.String("command", parsed.Command))
		prompt = resolved
	}

	res := r.agent.GenerateResponse(ctx, prompt, r.context.Context(), threadID)
	rounds := 0
	for !res.Finished {
		if rounds >= r.maxTurns {
			err := berrors.TurnLimitReached(r.maxTurns)
			r.agent.dropPending(threadID)
			r.metrics.RecordTurnLimit()
			r.logger.Warn(logging.EventTurnLimit,
				logging.ThreadID(threadID),
				logging.Turn(rounds),
				zap.Int("discarded_calls", len(res.ToolCalls)),
			)
			out.Warning(err.Message)
			return failed(err, rounds)
		}
		rounds++
		outcomes := r.executor.ExecuteBatch(ctx, threadID, res.ToolCalls, out)
		res = r.agent.ProcessToolResults(ctx, outcomes, threadID)
	}

	r.logger.Debug(logging.EventTurnComplete,
		logging.ThreadID(threadID),
		logging.Turn(rounds),
		logging.Success(res.Err == nil),
		logging.DurationSince(start),
	)

	switch {
	case res.Err != nil:
		return failed(res.Err, rounds)
	case res.Answer != "":
		return Reply{Text: res.Answer, ToolRounds: rounds}
	default:
		return Reply{Text: EmptyAnswer, ToolRounds: rounds}
	}
}

func failed(err error, rounds int) Reply {
	return Reply{Text: berrors.UserMessage(err), Err: err, ToolRounds: rounds}
}

// ListAvailableCommands returns display options for every known command.
func (r *Router) ListAvailableCommands() []commands.Option {
	return r.commands.Options()
}

// ClearConversation empties threadID.
func (r *Router) ClearConversation(ctx context.Context, threadID string) error {
	return r.agent.ClearThread(ctx, threadID)
}

// Agent returns the router's agent.
func (r *Router) Agent() *Agent {
	return r.agent
}
