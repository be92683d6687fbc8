package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// DefaultCompressTimeout bounds each step of a compression.
const DefaultCompressTimeout = 30 * time.Second

// ErrNothingToCompress is returned for an empty thread.
var ErrNothingToCompress = errors.New("No conversation history found to compress")

const summarizationPrompt = `Please analyze this conversation history and create a comprehensive yet concise summary that captures:

1. **Key Tasks Completed**: What has been accomplished in this session
2. **Current Project State**: Important context about the codebase/project
3. **Ongoing Work**: Any incomplete tasks or work in progress
4. **Important Decisions**: Key technical decisions or approaches discussed
5. **Relevant Context**: Critical information needed for future interactions

The summary should be detailed enough to maintain effective context for future conversations while being significantly more token-efficient than the full conversation history.

CONVERSATION HISTORY:
%s

Please provide a structured summary that will serve as compressed memory for future interactions:`

// Compressor replaces a thread's history with a model-written summary.
// It satisfies tools.MemoryCompressor.
type Compressor struct {
	agent   *Agent
	context ContextSource
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *logging.Metrics
}

// NewCompressor creates a compressor. A non-positive timeout uses the default.
func NewCompressor(a *Agent, source ContextSource, timeout time.Duration, logger *zap.Logger) *Compressor {
	if timeout <= 0 {
		timeout = DefaultCompressTimeout
	}
	if source == nil {
		source = StaticContext("")
	}
	if logger == nil {
		logger = logging.Named("compressor")
	}
	return &Compressor{
		agent:   a,
		context: source,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
		metrics: logging.GlobalMetrics(),
	}
}

// Compress summarizes threadID on a temporary thread and then replaces its
// history. On any failure, including a timeout, the history is untouched.
func (c *Compressor) Compress(ctx context.Context, threadID string) (string, error) {
	history := c.agent.History(ctx, threadID)
	if len(history) == 0 {
		return "", ErrNothingToCompress
	}

	start := c.now()
	c.logger.Info(logging.EventCompressStart, logging.ThreadID(threadID), logging.MessageCount(len(history)))

	systemContext := c.context.Context()
	summaryThread := fmt.Sprintf("%s_summary_%d", threadID, start.UnixNano())
	cleanupCtx := context.WithoutCancel(ctx)

	prompt := fmt.Sprintf(summarizationPrompt, FormatTranscript(history))
	summary, err := withTimeout(ctx, c.timeout, "conversation summarization", func(ctx context.Context) (string, error) {
		// runs after a late model reply too, so nothing is written back afterwards
		defer c.clearSummaryThread(cleanupCtx, summaryThread)
		res := c.agent.generate(ctx, prompt, systemContext, summaryThread, nil)
		if res.Err != nil {
			return "", res.Err
		}
		if strings.TrimSpace(res.Answer) == "" {
			return "", errors.New("Failed to generate conversation summary")
		}
		return res.Answer, nil
	})
	if err != nil {
		return "", c.fail(threadID, err)
	}

	// Replace is atomic: a deadline aborts it whole
	applyCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.agent.CompressThread(applyCtx, threadID, summary, systemContext)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = berrors.OperationTimeout("memory compression", c.timeout)
		}
		return "", c.fail(threadID, err)
	}

	c.metrics.RecordCompression()
	c.logger.Info(logging.EventCompressComplete,
		logging.ThreadID(threadID),
		logging.MessageCount(len(history)),
		zap.Int("summary_len", len(summary)),
		logging.DurationSince(start),
	)
	return summary, nil
}

func (c *Compressor) clearSummaryThread(ctx context.Context, summaryThread string) {
	if err := c.agent.ClearThread(ctx, summaryThread); err != nil {
		c.logger.Debug("failed to clear summary thread", logging.ThreadID(summaryThread), logging.Error(err))
	}
}

func (c *Compressor) fail(threadID string, err error) error {
	c.logger.Warn(logging.EventCompressFailed, logging.ThreadID(threadID), logging.Error(err))
	return err
}

// withTimeout runs fn under a deadline and returns OperationTimeout when the
// deadline passes first, even if fn ignores its context.
func withTimeout(ctx context.Context, d time.Duration, op string, fn func(context.Context) (string, error)) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn(tctx)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", berrors.OperationTimeout(op, d)
		}
		return r.out, r.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", berrors.OperationTimeout(op, d)
	}
}

// FormatTranscript renders messages as tagged paragraphs for summarization.
func FormatTranscript(messages []llm.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		var tag string
		switch msg.Role {
		case llm.RoleSystem:
			tag = "SYSTEM"
		case llm.RoleHuman:
			tag = "USER"
		case llm.RoleAI:
			tag = "ASSISTANT"
		case llm.RoleTool:
			tag = "TOOL RESULT"
		default:
			tag = strings.ToUpper(string(msg.Role))
		}
		text := msg.Text()
		if len(msg.ToolCalls) > 0 {
			names := make([]string, len(msg.ToolCalls))
			for i, call := range msg.ToolCalls {
				names[i] = call.Name
			}
			text = strings.TrimSpace(text + " (called tools: " + strings.Join(names, ", ") + ")")
		}
		parts = append(parts, fmt.Sprintf("[%s]: %s", tag, text))
	}
	return strings.Join(parts, "\n\n")
}
