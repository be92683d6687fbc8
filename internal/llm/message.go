package llm

import (
	"strings"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Part is one piece of message content. Implemented by TextPart and ImagePart.
type Part interface {
	partKind() string
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// ImagePart references an image by URL or data URI.
type ImagePart struct {
	URL      string
	MIMEType string
}

func (TextPart) partKind() string  { return "text" }
func (ImagePart) partKind() string { return "image" }

// ImagePlaceholder stands in for images when content is flattened to text.
const ImagePlaceholder = "[image]"

// FlattenToText joins parts with single spaces, rendering images as a placeholder.
func FlattenToText(parts []Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			texts = append(texts, v.Text)
		case ImagePart:
			texts = append(texts, ImagePlaceholder)
		}
	}
	return strings.Join(texts, " ")
}

// Text builds a single-part content slice.
func Text(s string) []Part {
	return []Part{TextPart{Text: s}}
}

// Message is one entry of a thread's history.
type Message struct {
	Role    Role
	Content []Part

	// ToolCalls is set on AI messages that requested tools.
	ToolCalls []ToolCall

	// ToolCallID and ToolName are set on tool messages.
	ToolCallID string
	ToolName   string

	// Usage is set on AI messages when the provider reported it.
	Usage *Usage
}

// Text returns the flattened text content of the message.
func (m Message) Text() string {
	return FlattenToText(m.Content)
}

// SystemMessage creates a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: Text(text)}
}

// HumanMessage creates a human message.
func HumanMessage(text string) Message {
	return Message{Role: RoleHuman, Content: Text(text)}
}

// AIMessage creates an AI message from a model response.
func AIMessage(content []Part, calls []ToolCall, usage *Usage) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls, Usage: usage}
}

// ToolMessage creates a tool result message correlated to a call.
func ToolMessage(callID, toolName, output string) Message {
	return Message{Role: RoleTool, Content: Text(output), ToolCallID: callID, ToolName: toolName}
}

// CloneMessages returns a copy safe to hand to another goroutine.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Content = append([]Part(nil), m.Content...)
		if m.ToolCalls != nil {
			calls := make([]ToolCall, len(m.ToolCalls))
			for j, c := range m.ToolCalls {
				calls[j] = c.Clone()
			}
			m.ToolCalls = calls
		}
		if m.Usage != nil {
			u := *m.Usage
			m.Usage = &u
		}
		out[i] = m
	}
	return out
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Clone copies the call with a shallow copy of its arguments.
func (c ToolCall) Clone() ToolCall {
	if c.Args != nil {
		args := make(map[string]any, len(c.Args))
		for k, v := range c.Args {
			args[k] = v
		}
		c.Args = args
	}
	return c
}

// Usage reports provider token counts for one invocation.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
