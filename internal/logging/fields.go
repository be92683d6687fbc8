package logging

import (
	"time"

	"go.uber.org/zap"
)

// Common field constructors for frequently used fields.

// ThreadID creates a thread id field.
func ThreadID(id string) zap.Field {
	return zap.String("thread_id", id)
}

// RequestID creates a per-turn correlation id field.
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// ToolName creates a tool name field.
func ToolName(name string) zap.Field {
	return zap.String("tool", name)
}

// ToolCallID creates a tool call id field.
func ToolCallID(id string) zap.Field {
	return zap.String("tool_call_id", id)
}

// Status creates a permission status field.
func Status(s string) zap.Field {
	return zap.String("status", s)
}

// Decision creates a permission decision field.
func Decision(d string) zap.Field {
	return zap.String("decision", d)
}

// From creates a "from" field for state transitions.
func From(value string) zap.Field {
	return zap.String("from", value)
}

// To creates a "to" field for state transitions.
func To(value string) zap.Field {
	return zap.String("to", value)
}

// Turn creates a tool round counter field.
func Turn(n int) zap.Field {
	return zap.Int("turn", n)
}

// MessageCount creates a message count field.
func MessageCount(n int) zap.Field {
	return zap.Int("msg_count", n)
}

// Tokens logs input, output and total token counts.
func Tokens(input, output, total int) zap.Field {
	return zap.Dict("tokens",
		zap.Int("input", input),
		zap.Int("output", output),
		zap.Int("total", total),
	)
}

// Model creates a model name field.
func Model(name string) zap.Field {
	return zap.String("model", name)
}

// Query creates a prompt field, truncating if too long.
func Query(q string) zap.Field {
	if len(q) > 200 {
		q = q[:197] + "..."
	}
	return zap.String("query", q)
}

// Error creates an error field.
func Error(err error) zap.Field {
	return zap.Error(err)
}

// Success creates a success boolean field.
func Success(ok bool) zap.Field {
	return zap.Bool("success", ok)
}

// DurationSince creates a duration field from a start time.
func DurationSince(start time.Time) zap.Field {
	return zap.Duration("duration", time.Since(start))
}
