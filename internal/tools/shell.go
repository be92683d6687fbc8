package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 5 * time.Minute
	maxShellOutput      = 50000
)

// ShellTool executes shell commands
type ShellTool struct {
	Workspace *Workspace
	Timeout   time.Duration
}

func (t *ShellTool) Name() string {
	return "run_shell_command"
}

func (t *ShellTool) Description() string {
	return "Execute a shell command (bash -c on Unix, cmd /c on Windows). Use for builds, tests, git operations and other commands. " +
		"Returns Command, Directory, Stdout, Stderr, Error and Exit Code."
}

func (t *ShellTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The exact command to execute.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief description of what the command does, shown to the user when asking for approval.",
			},
			"directory": map[string]any{
				"type":        "string",
				"description": "Directory to run the command in, relative to the project root (default: project root).",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default: 30, max: 300).",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) Permission() PermissionLevel {
	return PermissionExecute
}

func (t *ShellTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	command, err := requireString(input, "command")
	if err != nil {
		return "", err
	}
	if err := CheckCommandSafety(command); err != nil {
		return "", err
	}

	dir, err := t.Workspace.Resolve(stringArg(input, "directory"))
	if err != nil {
		return "", err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	if secs := intArg(input, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	timeout = min(timeout, maxShellTimeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exe, args := "bash", []string{"-c", command}
	if runtime.GOOS == "windows" {
		exe, args = "cmd.exe", []string{"/c", command}
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = dir
	cmd.Env = shellEnv()
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := "0"
	errText := "(none)"
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			errText = fmt.Sprintf("Command timed out after %s", timeout)
			exitCode = "(none)"
		case errors.As(runErr, &exitErr):
			exitCode = fmt.Sprintf("%d", exitErr.ExitCode())
		default:
			errText = runErr.Error()
			exitCode = "(none)"
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Command: %s\n", command)
	fmt.Fprintf(&sb, "Directory: %s\n", t.Workspace.Rel(dir))
	fmt.Fprintf(&sb, "Stdout: %s\n", orNone(stdout.String()))
	fmt.Fprintf(&sb, "Stderr: %s\n", orNone(stderr.String()))
	fmt.Fprintf(&sb, "Error: %s\n", errText)
	fmt.Fprintf(&sb, "Exit Code: %s", exitCode)

	output := sb.String()
	if len(output) > maxShellOutput {
		output = output[:maxShellOutput] + "\n... (output truncated)"
	}
	return output, nil
}

func orNone(s string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return "(empty)"
	}
	return s
}
