package errors

import (
	"fmt"
	"strings"
	"time"
)

// Error codes, exported so callers can match with HasCode.
const (
	CodeInvalidCommandFormat = "invalid_command_format"
	CodeUnknownCommand       = "unknown_command"
	CodePermissionDenied     = "permission_denied"
	CodePermissionTimeout    = "permission_timeout"
	CodeToolNotFound         = "tool_not_found"
	CodeToolExecutionFailed  = "tool_execution_failed"
	CodeModelInvocation      = "model_invocation_failed"
	CodeModelRejected        = "model_rejected"
	CodeModelUnavailable     = "model_unavailable"
	CodeOperationTimeout     = "operation_timeout"
	CodeTurnLimitReached     = "turn_limit_reached"
	CodeConfigLoadFailed     = "config_load_failed"
)

// InvalidCommandFormat is returned when slash input does not start with the sigil.
func InvalidCommandFormat(input string) *Error {
	return &Error{
		Category: CategoryCommand,
		Code:     CodeInvalidCommandFormat,
		Message:  `Invalid command format. Commands must start with "/"`,
	}
}

// UnknownCommand lists the known command names so the user can pick one.
func UnknownCommand(name string, known []string) *Error {
	return &Error{
		Category: CategoryCommand,
		Code:     CodeUnknownCommand,
		Message:  fmt.Sprintf("Command %q not found. Available commands: %s", name, strings.Join(known, ", ")),
	}
}

// PermissionDenied is returned when the operator denies a tool call.
func PermissionDenied(tool string) *Error {
	return &Error{
		Category: CategoryPermission,
		Code:     CodePermissionDenied,
		Message:  fmt.Sprintf("permission denied for %s", tool),
	}
}

// PermissionTimeout is a denial caused by no decision arriving in time.
func PermissionTimeout(tool string, after time.Duration) *Error {
	return &Error{
		Category: CategoryPermission,
		Code:     CodePermissionTimeout,
		Message:  fmt.Sprintf("permission denied for %s: no decision within %s", tool, after),
	}
}

// ToolNotFound creates an error for when a requested tool does not exist.
func ToolNotFound(name string) *Error {
	return &Error{
		Category: CategoryTool,
		Code:     CodeToolNotFound,
		Message:  fmt.Sprintf("unknown tool: %s", name),
	}
}

// ToolExecutionFailed creates an error for when a tool ran but failed.
// Retryability depends on the underlying cause.
func ToolExecutionFailed(name string, cause error) *Error {
	return &Error{
		Category:  CategoryTool,
		Code:      CodeToolExecutionFailed,
		Message:   fmt.Sprintf("tool %s failed", name),
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// ModelInvocationFailed wraps auth, network and quota failures of the model.
func ModelInvocationFailed(cause error) *Error {
	return &Error{
		Category:  CategoryModel,
		Code:      CodeModelInvocation,
		Message:   "model request failed",
		Retryable: true,
		Cause:     cause,
	}
}

// ModelRejected wraps provider errors that retrying cannot fix (bad key, bad request).
func ModelRejected(cause error) *Error {
	return &Error{
		Category: CategoryModel,
		Code:     CodeModelRejected,
		Message:  "model rejected the request",
		Cause:    cause,
	}
}

// ModelUnavailable is returned while the circuit breaker is open.
func ModelUnavailable(cause error) *Error {
	return &Error{
		Category:  CategoryModel,
		Code:      CodeModelUnavailable,
		Message:   "model service is unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// OperationTimeout reports that op exceeded its budget.
func OperationTimeout(op string, budget time.Duration) *Error {
	return &Error{
		Category: CategoryTimeout,
		Code:     CodeOperationTimeout,
		Message:  fmt.Sprintf("%s timed out after %s", op, budget),
	}
}

// TurnLimitReached is returned when the tool loop exceeds its round budget.
func TurnLimitReached(rounds int) *Error {
	return &Error{
		Category: CategoryAgent,
		Code:     CodeTurnLimitReached,
		Message:  fmt.Sprintf("Turn limit reached (%d tool rounds). Say 'continue' to proceed.", rounds),
	}
}

// ConfigLoadFailed creates an error for when configuration loading fails.
func ConfigLoadFailed(path string, cause error) *Error {
	return &Error{
		Category: CategoryConfig,
		Code:     CodeConfigLoadFailed,
		Message:  fmt.Sprintf("failed to load config from %q", path),
		Cause:    cause,
	}
}
