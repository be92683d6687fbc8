package tools

import (
	"context"
	"fmt"
)

// MemoryCompressor replaces a thread's history with a summary and returns it.
type MemoryCompressor interface {
	Compress(ctx context.Context, threadID string) (string, error)
}

// CompressMemoryTool lets the model compress the conversation it is running in.
type CompressMemoryTool struct {
	Compressor MemoryCompressor
}

// Name returns the tool name.
func (t *CompressMemoryTool) Name() string {
	return "compress_memory"
}

// Description tells the model when to compress.
func (t *CompressMemoryTool) Description() string {
	return "Compress the conversation history into a structured summary to free context space. " +
		"Use when the conversation is long or the user asks to compress memory. Defaults to the current conversation."
}

// InputSchema accepts an optional thread_id.
func (t *CompressMemoryTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thread_id": map[string]any{
				"type":        "string",
				"description": "Optional: the conversation thread to compress (defaults to the current thread).",
			},
		},
	}
}

// Permission is read: compressing never touches the workspace.
func (t *CompressMemoryTool) Permission() PermissionLevel {
	return PermissionRead
}

// Execute compresses the given thread, or the thread in ctx.
func (t *CompressMemoryTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	if t.Compressor == nil {
		return "", fmt.Errorf("memory compression is not available")
	}

	threadID := stringArg(input, "thread_id")
	if threadID == "" {
		id, ok := ThreadIDFromContext(ctx)
		if !ok {
			return "", fmt.Errorf("no thread ID available for memory compression")
		}
		threadID = id
	}

	summary, err := t.Compressor.Compress(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("failed to compress memory: %w", err)
	}

	return fmt.Sprintf("Memory compressed successfully.\n\nConversation Summary:\n%s\n\n"+
		"The conversation history has been replaced with this summary.", summary), nil
}
