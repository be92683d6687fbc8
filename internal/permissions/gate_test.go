package permissions

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started by an init in the provider SDK's telemetry dependency
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func shellCall(id string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "run_shell_command", Args: map[string]any{"command": "ls"}}
}

// recorder collects status transitions in order.
type recorder struct {
	mu    sync.Mutex
	trail []Status
}

func (r *recorder) record(_, to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trail = append(r.trail, to)
}

func (r *recorder) get() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.trail...)
}

func newTestGate(opts Options) (*Gate, *ManualClock, *recorder) {
	clock := NewManualClock()
	rec := &recorder{}
	opts.Clock = clock
	opts.OnTransition = rec.record
	return NewGate(opts), clock, rec
}

// approve answers the next request from a goroutine.
func approve(t *testing.T, g *Gate, d Decision) <-chan *Request {
	t.Helper()
	seen := make(chan *Request, 1)
	go func() {
		req := <-g.Requests()
		seen <- req
		req.Respond(d)
	}()
	return seen
}

func TestAllowOnceLifecycle(t *testing.T) {
	g, _, rec := newTestGate(Options{})
	ctx := context.Background()

	seen := approve(t, g, AllowOnce)
	lease, err := g.Acquire(ctx)
	require.NoError(t, err)

	d, err := lease.RequestDecision(ctx, "t1", shellCall("c1"), "execute", "run a command")
	require.NoError(t, err)
	assert.Equal(t, AllowOnce, d)

	req := <-seen
	assert.Equal(t, "c1", req.Call.ID)
	assert.Equal(t, "t1", req.ThreadID)

	lease.BeginExecuting()
	assert.Equal(t, StatusExecuting, g.State().Status)
	lease.Release()

	assert.Equal(t, StatusIdle, g.State().Status)
	assert.Nil(t, g.State().Pending)
	assert.Equal(t, []Status{StatusAwaitingPermission, StatusExecuting, StatusIdle}, rec.get())
}

func TestDenyGoesStraightToIdle(t *testing.T) {
	g, _, rec := newTestGate(Options{})
	ctx := context.Background()

	approve(t, g, Deny)
	lease, err := g.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release()

	d, err := lease.RequestDecision(ctx, "t1", shellCall("c1"), "execute", "")
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
	assert.Equal(t, StatusIdle, g.State().Status)
	assert.Equal(t, []Status{StatusAwaitingPermission, StatusIdle}, rec.get())
}

func TestTimeoutDeniesAndReturnsToIdle(t *testing.T) {
	g, clock, _ := newTestGate(Options{})
	ctx := context.Background()

	lease, err := g.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release()

	type outcome struct {
		d   Decision
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		d, err := lease.RequestDecision(ctx, "t1", shellCall("c1"), "execute", "")
		done <- outcome{d, err}
	}()

	<-clock.Armed()
	require.Eventually(t, func() bool { return g.State().Status == StatusAwaitingPermission }, time.Second, time.Millisecond)

	clock.Advance(59 * time.Second)
	select {
	case <-done:
		t.Fatal("request resolved before the timeout")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)
	out := <-done
	assert.Equal(t, Deny, out.d)
	assert.True(t, berrors.HasCode(out.err, berrors.CodePermissionTimeout))
	assert.Equal(t, StatusIdle, g.State().Status)

	// the abandoned request cannot be answered late and was removed from the mailbox
	select {
	case req := <-g.Requests():
		t.Fatalf("stale request left in mailbox: %v", req.Call.ID)
	default:
	}
}

func TestLateResponseIsRejected(t *testing.T) {
	g, clock, _ := newTestGate(Options{Timeout: time.Second})
	ctx := context.Background()

	lease, err := g.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release()

	reqs := make(chan *Request, 1)
	go func() { reqs <- <-g.Requests() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d, _ := lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
		assert.Equal(t, Deny, d)
	}()

	req := <-reqs
	<-clock.Armed()
	clock.Advance(time.Second)
	<-done

	assert.False(t, req.Respond(AllowOnce))
}

func TestResponseRacingTimeoutAgreesWithOutcome(t *testing.T) {
	for range 50 {
		g, clock, _ := newTestGate(Options{})
		ctx := context.Background()

		lease, err := g.Acquire(ctx)
		require.NoError(t, err)

		type outcome struct {
			d   Decision
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			d, err := lease.RequestDecision(ctx, "t1", shellCall("c1"), "execute", "")
			done <- outcome{d, err}
		}()

		req := <-g.Requests()
		<-clock.Armed()
		clock.Advance(time.Minute)
		accepted := req.Respond(AllowOnce)
		out := <-done

		if accepted {
			assert.Equal(t, AllowOnce, out.d)
			assert.NoError(t, out.err)
			assert.Equal(t, StatusAwaitingPermission, g.State().Status)
		} else {
			assert.Equal(t, Deny, out.d)
			assert.True(t, berrors.HasCode(out.err, berrors.CodePermissionTimeout))
			assert.Equal(t, StatusIdle, g.State().Status)
		}
		lease.Release()
	}
}

func TestRespondAcceptedOnce(t *testing.T) {
	req := newRequest("t", shellCall("c"), "", "")
	assert.True(t, req.Respond(Deny))
	assert.False(t, req.Respond(AllowOnce))
	assert.Equal(t, Deny, <-req.decision)
}

func TestSessionGrantSkipsPrompt(t *testing.T) {
	g, _, rec := newTestGate(Options{})
	ctx := context.Background()

	g.GrantSession("t1", "run_shell_command")
	g.GrantSession("t1", "run_shell_command")

	for i, thread := range []string{"t1", "t2"} {
		lease, err := g.Acquire(ctx)
		require.NoError(t, err)
		call := shellCall("c")
		call.Args = map[string]any{"command": []string{"ls", "rm -rf /tmp/x"}[i]}

		d, err := lease.RequestDecision(ctx, thread, call, "", "")
		require.NoError(t, err)
		assert.Equal(t, AllowSession, d)
		lease.Release()
	}

	assert.Empty(t, rec.get(), "session grants never surface a request")
	select {
	case <-g.Requests():
		t.Fatal("unexpected approval request")
	default:
	}
}

func TestThreadScopedGrants(t *testing.T) {
	g, _, _ := newTestGate(Options{Scope: ScopeThread})
	g.GrantSession("t1", "write_file")

	assert.True(t, g.HasSessionGrant("t1", "write_file"))
	assert.False(t, g.HasSessionGrant("t2", "write_file"))

	ctx := context.Background()
	lease, err := g.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release()

	seen := approve(t, g, Deny)
	d, err := lease.RequestDecision(ctx, "t2", llm.ToolCall{ID: "x", Name: "write_file"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
	assert.Equal(t, "t2", (<-seen).ThreadID)
}

func TestRevokeSessionGrants(t *testing.T) {
	g := NewGate(Options{})
	g.GrantSession("", "replace")
	g.RevokeSessionGrants()
	assert.False(t, g.HasSessionGrant("", "replace"))
}

func TestModes(t *testing.T) {
	ctx := context.Background()

	auto := NewGate(Options{Mode: ModeAuto})
	lease, err := auto.Acquire(ctx)
	require.NoError(t, err)
	d, err := lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
	require.NoError(t, err)
	assert.Equal(t, AllowOnce, d)
	lease.Release()

	strict := NewGate(Options{Mode: ModeStrict})
	lease, err = strict.Acquire(ctx)
	require.NoError(t, err)
	d, err = lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
	require.NoError(t, err)
	assert.Equal(t, Deny, d)
	lease.Release()
	assert.Equal(t, StatusIdle, strict.State().Status)
}

func TestSingleFlight(t *testing.T) {
	g := NewGate(Options{Mode: ModeAuto})
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := g.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer lease.Release()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			_, _ = lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
			lease.BeginExecuting()
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, StatusIdle, g.State().Status)
}

func TestAcquireHonorsContext(t *testing.T) {
	g := NewGate(Options{})
	lease, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelledRequestDenies(t *testing.T) {
	g, _, _ := newTestGate(Options{})
	lease, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-g.Requests()
		cancel()
	}()

	d, err := lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
	assert.Equal(t, Deny, d)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusIdle, g.State().Status)
}

func TestResetIsIdempotentAndFreesSlot(t *testing.T) {
	g, _, _ := newTestGate(Options{})
	ctx := context.Background()

	lease, err := g.Acquire(ctx)
	require.NoError(t, err)

	done := make(chan Decision, 1)
	go func() {
		d, _ := lease.RequestDecision(ctx, "t", shellCall("c"), "", "")
		done <- d
	}()
	req := <-g.Requests()

	g.Reset()
	g.Reset()
	assert.Equal(t, Deny, <-done)
	assert.False(t, req.Respond(AllowOnce))
	assert.Equal(t, StatusIdle, g.State().Status)

	// the old lease is inert and the slot is free for the next caller
	lease.Release()
	next, err := g.Acquire(ctx)
	require.NoError(t, err)
	next.Release()
}

func TestRequestSummary(t *testing.T) {
	req := newRequest("t", llm.ToolCall{Name: "write_file", Args: map[string]any{"path": "a.txt", "content": "hi"}}, "", "")
	assert.Equal(t, "write_file(content=hi, path=a.txt)", req.Summary())

	bare := newRequest("t", llm.ToolCall{Name: "glob"}, "", "")
	assert.Equal(t, "glob", bare.Summary())
}

func TestParseModeAndScope(t *testing.T) {
	m, err := ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)
	_, err = ParseMode("yolo")
	assert.Error(t, err)

	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeProcess, s)
	_, err = ParseScope("galaxy")
	assert.Error(t, err)
}

func TestManualClock(t *testing.T) {
	c := NewManualClock()
	ch := c.After(time.Minute)
	assert.Equal(t, 1, c.Pending())
	c.Advance(30 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}
	c.Advance(30 * time.Second)
	<-ch
	assert.Equal(t, 0, c.Pending())
}
