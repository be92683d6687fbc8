package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "with cause",
			err:      ModelInvocationFailed(fmt.Errorf("connection refused")),
			contains: []string{"[model]", CodeModelInvocation, "model request failed", "connection refused"},
		},
		{
			name:     "without cause",
			err:      ToolNotFound("foo"),
			contains: []string{"[tool]", CodeToolNotFound, "unknown tool: foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want it to contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	root := fmt.Errorf("disk full")
	outer := fmt.Errorf("startup failed: %w", ConfigLoadFailed("berkelium.yaml", root))

	if !errors.Is(outer, root) {
		t.Error("expected errors.Is to find root cause through chain")
	}

	var e *Error
	if !errors.As(outer, &e) {
		t.Fatal("expected errors.As to find *Error in chain")
	}
	if e.Code != CodeConfigLoadFailed {
		t.Errorf("got code %q, want %q", e.Code, CodeConfigLoadFailed)
	}
}

func TestError_Is(t *testing.T) {
	a := PermissionDenied("write_file")
	b := PermissionDenied("run_shell_command")
	c := PermissionTimeout("write_file", time.Minute)

	if !errors.Is(a, b) {
		t.Error("expected Is() to match same category+code regardless of message")
	}
	if errors.Is(a, c) {
		t.Error("expected Is() to not match different codes")
	}
	if errors.Is(a, fmt.Errorf("plain")) {
		t.Error("expected Is() to return false for foreign target")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"model failure", ModelInvocationFailed(nil), true},
		{"wrapped model failure", fmt.Errorf("outer: %w", ModelUnavailable(nil)), true},
		{"permission denied", PermissionDenied("x"), false},
		{"tool failure inherits cause", ToolExecutionFailed("x", ModelInvocationFailed(nil)), true},
		{"plain error", fmt.Errorf("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnknownCommand_ListsKnownNames(t *testing.T) {
	err := UnknownCommand("nonexistent", []string{"clear", "compress", "init"})
	msg := UserMessage(err)
	for _, name := range []string{"nonexistent", "clear", "compress", "init"} {
		if !strings.Contains(msg, name) {
			t.Errorf("UserMessage() = %q, want it to mention %q", msg, name)
		}
	}
	if GetCategory(err) != CategoryCommand {
		t.Errorf("GetCategory() = %q", GetCategory(err))
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q", got)
	}
	if got := UserMessage(fmt.Errorf("boom")); got != "boom" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
	got := UserMessage(ModelInvocationFailed(fmt.Errorf("401 unauthorized")))
	if got != "model request failed: 401 unauthorized" {
		t.Errorf("UserMessage(model) = %q", got)
	}
	if !HasCode(TurnLimitReached(3), CodeTurnLimitReached) {
		t.Error("HasCode should match turn limit code")
	}
}
