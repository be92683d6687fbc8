package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BerkeliumLabs/berkelium/internal/commands"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/permissions"
)

func newHandlerRig(t *testing.T, pick PickFunc) (*CommandHandler, *testRig) {
	t.Helper()
	rig := newTestRig(t, permissions.ModeAsk, []*llm.Response{answer("SUMMARY")})
	rig.router = NewRouter(RouterConfig{
		Agent:    rig.agent,
		Executor: rig.executor,
		Commands: commands.NewCatalog(commands.Builtins()...),
		Context:  StaticContext("sys"),
		Logger:   zap.NewNop(),
	})
	compressor := NewCompressor(rig.agent, StaticContext("sys"), time.Second, zap.NewNop())
	h := NewCommandHandler(rig.router, compressor, pick)
	h.newThread = func() string { return "fresh" }
	return h, rig
}

func TestHandleExit(t *testing.T) {
	h, _ := newHandlerRig(t, nil)
	for _, line := range []string{"exit", "quit", "/exit", " /quit "} {
		action, _ := h.Handle(context.Background(), line, &Session{ThreadID: "t1"}, &recordingOutput{})
		assert.Equal(t, ActionExit, action, line)
	}
}

func TestHandleRoutesEverythingElse(t *testing.T) {
	h, _ := newHandlerRig(t, nil)
	for _, line := range []string{"hello", "/init src", "/compressx"} {
		action, prompt := h.Handle(context.Background(), line, &Session{ThreadID: "t1"}, &recordingOutput{})
		assert.Equal(t, ActionRoute, action, line)
		assert.Equal(t, line, prompt)
	}

	action, _ := h.Handle(context.Background(), "   ", &Session{}, &recordingOutput{})
	assert.Equal(t, ActionHandled, action)
}

func TestHandleClearStartsNewThread(t *testing.T) {
	h, rig := newHandlerRig(t, nil)
	ctx := context.Background()
	rig.router.Route(ctx, "hi", "t1", nil)
	sess := &Session{ThreadID: "t1"}
	out := &recordingOutput{}

	action, _ := h.Handle(ctx, "/clear", sess, out)

	assert.Equal(t, ActionHandled, action)
	assert.Equal(t, "fresh", sess.ThreadID)
	assert.Empty(t, rig.agent.History(ctx, "t1"))
	assert.Equal(t, []string{"Agent memory cleared."}, out.infos)
}

func TestHandleCompress(t *testing.T) {
	h, rig := newHandlerRig(t, nil)
	ctx := context.Background()
	sess := &Session{ThreadID: "t1"}

	out := &recordingOutput{}
	h.Handle(ctx, "/compress", sess, out)
	assert.Equal(t, []string{"Compress failed: No conversation history found to compress"}, out.errors)

	rig.router.Route(ctx, "hi", "t1", nil)
	out = &recordingOutput{}
	h.Handle(ctx, "/compress", sess, out)
	assert.Empty(t, out.errors)
	assert.Equal(t, "human: [CONVERSATION SUMMARY]\nSUMMARY", transcript(rig.agent.History(ctx, "t1"))[1])
}

func TestHandleHelpListsPromptCommands(t *testing.T) {
	h, _ := newHandlerRig(t, nil)
	out := &recordingOutput{}

	h.Handle(context.Background(), "/help", &Session{}, out)

	assert.Contains(t, out.infos, "Prompt commands:")
	assert.Contains(t, out.infos, "  /init - "+initDescription(t))
}

func initDescription(t *testing.T) string {
	t.Helper()
	for _, c := range commands.Builtins() {
		if c.Name == "init" {
			return c.Description
		}
	}
	t.Fatal("init builtin missing")
	return ""
}

func TestHandleCommandsPicker(t *testing.T) {
	t.Run("chosen command is routed", func(t *testing.T) {
		var offered []commands.Option
		h, _ := newHandlerRig(t, func(_ context.Context, opts []commands.Option) (string, bool, error) {
			offered = opts
			return "/compress", true, nil
		})
		action, prompt := h.Handle(context.Background(), "/commands", &Session{}, &recordingOutput{})
		assert.Equal(t, ActionRoute, action)
		assert.Equal(t, "/compress", prompt)
		assert.NotEmpty(t, offered)
	})

	t.Run("cancelled", func(t *testing.T) {
		h, _ := newHandlerRig(t, func(context.Context, []commands.Option) (string, bool, error) {
			return "", false, nil
		})
		action, _ := h.Handle(context.Background(), "/commands", &Session{}, &recordingOutput{})
		assert.Equal(t, ActionHandled, action)
	})

	t.Run("picker error", func(t *testing.T) {
		h, _ := newHandlerRig(t, func(context.Context, []commands.Option) (string, bool, error) {
			return "", false, errors.New("no tty")
		})
		out := &recordingOutput{}
		action, _ := h.Handle(context.Background(), "/commands", &Session{}, out)
		assert.Equal(t, ActionHandled, action)
		assert.Equal(t, []string{"Command picker failed: no tty"}, out.errors)
	})

	t.Run("no picker lists commands", func(t *testing.T) {
		h, _ := newHandlerRig(t, nil)
		out := &recordingOutput{}
		action, _ := h.Handle(context.Background(), "/commands", &Session{}, out)
		assert.Equal(t, ActionHandled, action)
		assert.NotEmpty(t, out.infos)
	})
}

func TestHandleUsage(t *testing.T) {
	h, rig := newHandlerRig(t, nil)
	ctx := context.Background()
	rig.router.Route(ctx, "hi", "t1", nil)
	out := &recordingOutput{}

	h.Handle(ctx, "/usage", &Session{ThreadID: "t1"}, out)

	require.NotEmpty(t, out.infos)
	assert.Equal(t, "Last turn: 20 in / 8 out / 28 total tokens", out.infos[0])
}

func TestHandleContextWithoutEstimator(t *testing.T) {
	h, _ := newHandlerRig(t, nil)
	out := &recordingOutput{}
	h.Handle(context.Background(), "/context", &Session{ThreadID: "t1"}, out)
	assert.Equal(t, []string{"Context tracking is not enabled"}, out.infos)
}

func TestNewThreadID(t *testing.T) {
	id := NewThreadID()
	assert.Regexp(t, `^\d{13}$`, id)
}

func TestHandleThreadsAndResume(t *testing.T) {
	h, rig := newHandlerRig(t, nil)
	ctx := context.Background()
	sess := &Session{ThreadID: "t2"}

	out := &recordingOutput{}
	h.Handle(ctx, "/threads", sess, out)
	assert.Equal(t, []string{"No stored conversations"}, out.infos)

	rig.router.Route(ctx, "hi", "t1", nil)
	out = &recordingOutput{}
	h.Handle(ctx, "/threads", sess, out)
	require.Len(t, out.infos, 1)
	assert.Regexp(t, `^  t1 +3 messages  just now$`, out.infos[0])

	out = &recordingOutput{}
	h.Handle(ctx, "/resume missing", sess, out)
	assert.Equal(t, []string{`Conversation "missing" not found`}, out.errors)
	assert.Equal(t, "t2", sess.ThreadID)

	out = &recordingOutput{}
	h.Handle(ctx, "/resume", sess, out)
	assert.Equal(t, []string{"Usage: /resume <thread id>"}, out.errors)

	out = &recordingOutput{}
	h.Handle(ctx, "/resume t1", sess, out)
	assert.Empty(t, out.errors)
	assert.Equal(t, "t1", sess.ThreadID)

	out = &recordingOutput{}
	h.Handle(ctx, "/threads", sess, out)
	require.Len(t, out.infos, 1)
	assert.True(t, strings.HasPrefix(out.infos[0], "* t1"), out.infos[0])
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
		{30 * 24 * time.Hour, "Feb 8"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(now.Add(-tt.ago), now), tt.ago.String())
	}
}
