package llm

import (
	"context"
	"sync"
)

// MockModel implements Model for testing.
type MockModel struct {
	// InvokeFunc is the injectable behavior. Nil returns a fixed text answer.
	InvokeFunc func(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error)

	mu    sync.Mutex
	calls []InvokeCall
}

// InvokeCall records the arguments of an Invoke.
type InvokeCall struct {
	ThreadID string
	Messages []Message
	Tools    []ToolDefinition
}

// NewMockModel creates a mock with the given behavior.
func NewMockModel(fn func(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error)) *MockModel {
	return &MockModel{InvokeFunc: fn}
}

// Name returns a fixed id.
func (m *MockModel) Name() string {
	return "mock-model"
}

// Invoke records the call and delegates to InvokeFunc.
func (m *MockModel) Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, InvokeCall{
		ThreadID: threadID,
		Messages: CloneMessages(messages),
		Tools:    tools,
	})
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, threadID, messages, tools)
	}
	return &Response{Content: Text("mock response"), StopReason: "end_turn"}, nil
}

// Calls returns a snapshot of recorded invocations.
func (m *MockModel) Calls() []InvokeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InvokeCall(nil), m.calls...)
}

// ScriptedResponses returns an InvokeFunc that replays responses in order and
// then keeps returning the last one.
func ScriptedResponses(responses ...*Response) func(context.Context, string, []Message, []ToolDefinition) (*Response, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string, []Message, []ToolDefinition) (*Response, error) {
		mu.Lock()
		defer mu.Unlock()
		r := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return r, nil
	}
}
