package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the outcome of one tool invocation. Failures are encoded, never thrown.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// OK builds a successful result.
func OK(output string) Result {
	return Result{Success: true, Output: output}
}

// Fail builds a failed result from err.
func Fail(err error) Result {
	if err == nil {
		return Result{Error: "unknown error"}
	}
	return Result{Error: err.Error()}
}

// Failf builds a failed result from a format string.
func Failf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Content is the text fed back to the model for this result.
func (r Result) Content() string {
	if r.Success {
		if r.Output == "" {
			return "(no output)"
		}
		return r.Output
	}
	if r.Error == "" {
		return "Error: tool failed without a message"
	}
	return "Error: " + r.Error
}

// Run executes tool and converts errors and panics into a failed Result.
func Run(ctx context.Context, tool Tool, input map[string]any) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Failf("tool %s panicked: %v", tool.Name(), p)
		}
	}()
	if input == nil {
		input = map[string]any{}
	}
	out, err := tool.Execute(ctx, input)
	if err != nil {
		return Fail(err)
	}
	return OK(out)
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func requireString(input map[string]any, key string) (string, error) {
	s := stringArg(input, key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// intArg accepts the numeric shapes produced by JSON decoding and provider SDKs.
func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func boolArg(input map[string]any, key string, def bool) bool {
	if b, ok := input[key].(bool); ok {
		return b
	}
	return def
}

func stringSliceArg(input map[string]any, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
