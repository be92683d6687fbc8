package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
	"github.com/BerkeliumLabs/berkelium/internal/permissions"
	"github.com/BerkeliumLabs/berkelium/internal/tools"
)

const defaultMaxConcurrency = 4

// ToolOutcome pairs a tool result with the call that produced it.
type ToolOutcome struct {
	CallID string
	Name   string
	Result tools.Result
}

// ToolExecutor applies the permission policy to tool calls and runs them.
// Execute never fails: every outcome is encoded in the returned Result.
type ToolExecutor struct {
	tools          *tools.Registry
	gate           *permissions.Gate
	parallelReads  bool
	maxConcurrency int
	logger         *zap.Logger
	metrics        *logging.Metrics
}

// NewToolExecutor creates a new ToolExecutor.
func NewToolExecutor(registry *tools.Registry, gate *permissions.Gate, logger *zap.Logger) *ToolExecutor {
	if logger == nil {
		logger = logging.Named("executor")
	}
	return &ToolExecutor{
		tools:          registry,
		gate:           gate,
		maxConcurrency: defaultMaxConcurrency,
		logger:         logger,
		metrics:        logging.GlobalMetrics(),
	}
}

// SetParallelReads lets read-only calls in a batch run concurrently.
// Calls that need approval always go through the gate one at a time.
func (te *ToolExecutor) SetParallelReads(enabled bool) {
	te.parallelReads = enabled
}

// Definitions returns the tool definitions offered to the model.
func (te *ToolExecutor) Definitions() []llm.ToolDefinition {
	return te.tools.Definitions()
}

// Execute runs one call for threadID. The gate is back to idle when it returns.
func (te *ToolExecutor) Execute(ctx context.Context, threadID string, call llm.ToolCall, out Output) tools.Result {
	out = outputOrNop(out)
	ctx = tools.WithThreadID(ctx, threadID)

	tool, ok := te.tools.Get(call.Name)
	if !ok {
		err := berrors.ToolNotFound(call.Name)
		te.logger.Warn(logging.EventToolError, logging.ThreadID(threadID), logging.ToolName(call.Name), logging.Error(err))
		res := failure(err)
		out.ToolResult(call.Name, res)
		return res
	}

	if !tool.Permission().RequiresApproval() {
		return te.run(ctx, threadID, tool, call, describeCall(call), out)
	}

	lease, err := te.gate.Acquire(ctx)
	if err != nil {
		res := failure(berrors.PermissionDenied(call.Name))
		out.ToolResult(call.Name, res)
		return res
	}
	defer lease.Release()

	description := tools.Preview(ctx, tool, call.Args)
	if description == "" {
		description = describeCall(call)
	}

	decision, err := lease.RequestDecision(ctx, threadID, call, tool.Permission().String(), description)
	if !decision.Allowed() {
		return te.denied(threadID, call, err, out)
	}
	if decision == permissions.AllowSession {
		te.gate.GrantSession(threadID, call.Name)
	}

	lease.BeginExecuting()
	return te.run(ctx, threadID, tool, call, describeCall(call), out)
}

func (te *ToolExecutor) run(ctx context.Context, threadID string, tool tools.Tool, call llm.ToolCall, description string, out Output) tools.Result {
	out.ToolCall(call.Name, description)
	te.logger.Debug(logging.EventToolStart,
		logging.ThreadID(threadID),
		logging.ToolName(call.Name),
		logging.ToolCallID(call.ID),
	)

	start := time.Now()
	res := tools.Run(ctx, tool, call.Args)
	te.metrics.RecordToolCall(call.Name, time.Since(start), res.Success)

	if res.Success {
		te.logger.Debug(logging.EventToolComplete,
			logging.ThreadID(threadID),
			logging.ToolName(call.Name),
			zap.Int("output_bytes", len(res.Output)),
			logging.DurationSince(start),
		)
	} else {
		te.logger.Warn(logging.EventToolError,
			logging.ThreadID(threadID),
			logging.ToolName(call.Name),
			zap.String("error", res.Error),
			logging.DurationSince(start),
		)
	}
	out.ToolResult(call.Name, res)
	return res
}

// denied builds the result for a denial. A timeout keeps its own message,
// which still starts with "permission denied for <tool>".
func (te *ToolExecutor) denied(threadID string, call llm.ToolCall, cause error, out Output) tools.Result {
	var denial *berrors.Error
	if cause == nil || !errors.As(cause, &denial) || denial.Category != berrors.CategoryPermission {
		denial = berrors.PermissionDenied(call.Name)
	}
	te.logger.Info(logging.EventToolDenied,
		logging.ThreadID(threadID),
		logging.ToolName(call.Name),
		zap.String("reason", denial.Code),
	)
	te.metrics.RecordToolDenied(call.Name)

	res := failure(denial)
	out.ToolResult(call.Name, res)
	return res
}

// failure encodes err with its user-facing message.
func failure(err error) tools.Result {
	return tools.Result{Error: berrors.UserMessage(err)}
}

// ExecuteBatch runs every call and returns one outcome per call in call order.
// Calls needing approval run sequentially through the gate. Read-only calls
// run sequentially too unless parallel reads are enabled.
func (te *ToolExecutor) ExecuteBatch(ctx context.Context, threadID string, calls []llm.ToolCall, out Output) []ToolOutcome {
	outcomes := make([]ToolOutcome, len(calls))
	for i, call := range calls {
		outcomes[i] = ToolOutcome{CallID: call.ID, Name: call.Name}
	}

	if !te.parallelReads {
		for i, call := range calls {
			outcomes[i].Result = te.Execute(ctx, threadID, call, out)
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(te.maxConcurrency)
	var gated []int
	for i, call := range calls {
		if te.tools.RequiresPermission(call.Name) {
			gated = append(gated, i)
			continue
		}
		g.Go(func() error {
			outcomes[i].Result = te.Execute(gctx, threadID, call, out)
			return nil
		})
	}
	for _, i := range gated {
		outcomes[i].Result = te.Execute(ctx, threadID, calls[i], out)
	}
	_ = g.Wait()
	return outcomes
}

// describeCall creates a human-readable description of a tool call.
func describeCall(call llm.ToolCall) string {
	str := func(key string) string {
		s, _ := call.Args[key].(string)
		return s
	}
	switch call.Name {
	case "read_file":
		return fmt.Sprintf("Read %s", str("path"))
	case "write_file":
		return fmt.Sprintf("Write to %s", str("file_path"))
	case "replace":
		return fmt.Sprintf("Edit %s", str("file_path"))
	case "run_shell_command":
		cmd := str("command")
		if len(cmd) > 60 {
			cmd = cmd[:60] + "..."
		}
		return fmt.Sprintf("Run: %s", cmd)
	case "search_file_content":
		return fmt.Sprintf("Search: %s", str("pattern"))
	case "glob":
		return fmt.Sprintf("Glob: %s", str("pattern"))
	case "list_directory":
		path := str("path")
		if path == "" {
			path = "."
		}
		return fmt.Sprintf("List %s", path)
	case "web_fetch":
		return "Fetch URLs"
	case "create_feature_branch":
		return fmt.Sprintf("Create branch for %q", str("feature_description"))
	case "compress_memory":
		return "Compress conversation memory"
	}
	return call.Name
}
