package agent

import (
	"github.com/BerkeliumLabs/berkelium/internal/tools"
)

// Output receives progress while a turn runs. The REPL prints it, the
// headless and JSON outputs collect or suppress it.
type Output interface {
	// ToolCall is reported once a call is cleared to run.
	ToolCall(name, description string)
	ToolResult(name string, result tools.Result)
	Warning(msg string)
}

// NopOutput discards all progress.
type NopOutput struct{}

func (NopOutput) ToolCall(_, _ string)                {}
func (NopOutput) ToolResult(_ string, _ tools.Result) {}
func (NopOutput) Warning(_ string)                    {}

func outputOrNop(out Output) Output {
	if out == nil {
		return NopOutput{}
	}
	return out
}
