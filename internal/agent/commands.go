package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BerkeliumLabs/berkelium/internal/commands"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// CommandOutput is what REPL commands write to.
type CommandOutput interface {
	Output
	Info(msg string)
	Success(msg string)
	ErrorStr(msg string)
}

// CommandAction tells the REPL what to do after Handle.
type CommandAction int

const (
	// ActionRoute sends the returned text to the router.
	ActionRoute CommandAction = iota
	// ActionHandled means the line was consumed locally.
	ActionHandled
	// ActionExit ends the REPL.
	ActionExit
)

// Session is the REPL state a command may change.
type Session struct {
	ThreadID string
}

// NewThreadID returns a fresh millisecond timestamp thread id.
func NewThreadID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// PickFunc lets the operator choose a command interactively. ok is false when
// the picker was cancelled.
type PickFunc func(ctx context.Context, options []commands.Option) (choice string, ok bool, err error)

// CommandHandler handles REPL-local commands. Anything it does not recognize
// is routed as a prompt, including catalog commands.
type CommandHandler struct {
	router     *Router
	compressor *Compressor
	pick       PickFunc
	newThread  func() string
	now        func() time.Time
}

// NewCommandHandler creates a handler. compressor and pick may be nil.
func NewCommandHandler(router *Router, compressor *Compressor, pick PickFunc) *CommandHandler {
	return &CommandHandler{
		router:     router,
		compressor: compressor,
		pick:       pick,
		newThread:  NewThreadID,
		now:        time.Now,
	}
}

// Handle processes one REPL line. For ActionRoute the returned string is the
// prompt to route.
func (ch *CommandHandler) Handle(ctx context.Context, line string, sess *Session, out CommandOutput) (CommandAction, string) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return ActionHandled, ""
	case "exit", "quit", "/exit", "/quit":
		out.Info("Goodbye!")
		return ActionExit, ""
	}

	parts := strings.Fields(line)
	switch parts[0] {
	case "/help":
		ch.showHelp(out)
		return ActionHandled, ""

	case commands.Sigil + commands.NameClear:
		if err := ch.router.ClearConversation(ctx, sess.ThreadID); err != nil {
			out.ErrorStr("Failed to clear memory: " + err.Error())
			return ActionHandled, ""
		}
		sess.ThreadID = ch.newThread()
		out.Success("Agent memory cleared.")
		return ActionHandled, ""

	case commands.Sigil + commands.NameCompress:
		ch.compress(ctx, sess, out)
		return ActionHandled, ""

	case "/context":
		ch.showContext(ctx, sess, out)
		return ActionHandled, ""

	case "/usage":
		ch.showUsage(sess, out)
		return ActionHandled, ""

	case "/commands":
		return ch.pickCommand(ctx, out)

	case "/threads":
		ch.listThreads(ctx, sess, out)
		return ActionHandled, ""

	case "/resume":
		if len(parts) != 2 {
			out.ErrorStr("Usage: /resume <thread id>")
			return ActionHandled, ""
		}
		ch.resume(ctx, parts[1], sess, out)
		return ActionHandled, ""
	}

	return ActionRoute, line
}

func (ch *CommandHandler) showHelp(out CommandOutput) {
	out.Info("Commands:")
	out.Info("  /help            Show this help")
	out.Info("  /clear           Clear memory and start a new conversation")
	out.Info("  /compress        Replace the conversation with a summary")
	out.Info("  /context         Show context window usage")
	out.Info("  /usage           Show token usage")
	out.Info("  /commands        Choose a prompt command")
	out.Info("  /threads         List stored conversations")
	out.Info("  /resume <id>     Continue a stored conversation")
	out.Info("  exit, quit       Leave")

	if opts := ch.router.ListAvailableCommands(); len(opts) > 0 {
		out.Info("")
		out.Info("Prompt commands:")
		for _, opt := range opts {
			out.Info("  " + opt.Label)
		}
	}
}

func (ch *CommandHandler) compress(ctx context.Context, sess *Session, out CommandOutput) {
	if ch.compressor == nil {
		out.ErrorStr("Memory compression is not available")
		return
	}
	out.Info("Compressing conversation...")
	before := len(ch.router.Agent().History(ctx, sess.ThreadID))
	if _, err := ch.compressor.Compress(ctx, sess.ThreadID); err != nil {
		out.ErrorStr("Compress failed: " + err.Error())
		return
	}
	out.Success(fmt.Sprintf("Compressed %d messages into a summary", before))
}

func (ch *CommandHandler) showContext(ctx context.Context, sess *Session, out CommandOutput) {
	stats, ok := ch.router.Agent().Stats(ctx, sess.ThreadID)
	if !ok {
		out.Info("Context tracking is not enabled")
		return
	}
	out.Info(fmt.Sprintf("Context: %d/%d tokens (%.1f%%)",
		stats.UsedTokens, stats.ContextWindow, stats.UsagePercent*100))
	out.Info(fmt.Sprintf("  Messages: %d", stats.MessageCount))
	if stats.NeedsCompaction {
		out.Warning("Context is nearly full - use /compress")
	} else if stats.NeedsWarning {
		out.Warning("Context is getting full - consider /compress")
	}
}

func (ch *CommandHandler) showUsage(sess *Session, out CommandOutput) {
	if last, ok := ch.router.Agent().LastUsage(sess.ThreadID); ok {
		out.Info(fmt.Sprintf("Last turn: %d in / %d out / %d total tokens",
			last.InputTokens, last.OutputTokens, last.TotalTokens))
	}
	thread := logging.GlobalMetrics().ThreadUsage(sess.ThreadID)
	out.Info(fmt.Sprintf("Thread:    %d in / %d out / %d total tokens (%d requests)",
		thread.InputTokens, thread.OutputTokens, thread.TotalTokens, thread.Requests))
	total := logging.GlobalMetrics().Summary().Usage
	out.Info(fmt.Sprintf("Session:   %d in / %d out / %d total tokens (%d requests)",
		total.InputTokens, total.OutputTokens, total.TotalTokens, total.Requests))
}

func (ch *CommandHandler) listThreads(ctx context.Context, sess *Session, out CommandOutput) {
	threads, err := ch.router.Agent().Threads(ctx)
	if err != nil {
		out.ErrorStr("Failed to list conversations: " + err.Error())
		return
	}
	if len(threads) == 0 {
		out.Info("No stored conversations")
		return
	}
	now := ch.now()
	for _, t := range threads {
		marker := " "
		if t.ID == sess.ThreadID {
			marker = "*"
		}
		out.Info(fmt.Sprintf("%s %s  %3d messages  %s", marker, t.ID, t.MessageCount, relativeTime(t.UpdatedAt, now)))
	}
}

func (ch *CommandHandler) resume(ctx context.Context, threadID string, sess *Session, out CommandOutput) {
	if len(ch.router.Agent().History(ctx, threadID)) == 0 {
		out.ErrorStr(fmt.Sprintf("Conversation %q not found", threadID))
		return
	}
	sess.ThreadID = threadID
	out.Success("Resumed conversation " + threadID)
}

// relativeTime renders t as "just now", "5m ago", "3h ago", "2d ago" or a date.
func relativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func (ch *CommandHandler) pickCommand(ctx context.Context, out CommandOutput) (CommandAction, string) {
	opts := ch.router.ListAvailableCommands()
	if len(opts) == 0 {
		out.Info("No commands available")
		return ActionHandled, ""
	}
	if ch.pick == nil {
		for _, opt := range opts {
			out.Info("  " + opt.Label)
		}
		return ActionHandled, ""
	}

	choice, ok, err := ch.pick(ctx, opts)
	if err != nil {
		out.ErrorStr("Command picker failed: " + err.Error())
		return ActionHandled, ""
	}
	if !ok {
		return ActionHandled, ""
	}
	return ActionRoute, choice
}
