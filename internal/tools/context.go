package tools

import "context"

type threadIDKey struct{}

// WithThreadID attaches the conversation thread id to ctx so thread-aware
// tools can act on the conversation that invoked them.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

// ThreadIDFromContext returns the thread id set by WithThreadID.
func ThreadIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(threadIDKey{}).(string)
	return id, ok && id != ""
}
