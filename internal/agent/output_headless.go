package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/BerkeliumLabs/berkelium/internal/tools"
)

// HeadlessOutput implements Output for pipe mode.
// Tool progress is suppressed, warnings go to Err.
type HeadlessOutput struct {
	Err io.Writer
}

func (h *HeadlessOutput) ToolCall(_, _ string)                {}
func (h *HeadlessOutput) ToolResult(_ string, _ tools.Result) {}
func (h *HeadlessOutput) Warning(msg string) {
	if h.Err != nil {
		fmt.Fprintln(h.Err, "Warning:", msg)
	}
}

// JSONOutput captures tool activity and emits a single JSON object at the end.
type JSONOutput struct {
	mu        sync.Mutex
	toolCalls []jsonToolCall
	warnings  []string
}

type jsonToolCall struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}

type jsonResult struct {
	ThreadID  string         `json:"thread_id"`
	Answer    string         `json:"answer"`
	ToolCalls []jsonToolCall `json:"tool_calls,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

func (j *JSONOutput) ToolCall(name, desc string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.toolCalls = append(j.toolCalls, jsonToolCall{Name: name, Description: desc})
}

func (j *JSONOutput) ToolResult(name string, result tools.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// update the last matching call; denied calls never reported ToolCall
	for i := len(j.toolCalls) - 1; i >= 0; i-- {
		if j.toolCalls[i].Name == name && j.toolCalls[i].Result == "" {
			j.toolCalls[i].Result = result.Content()
			j.toolCalls[i].IsError = !result.Success
			return
		}
	}
	j.toolCalls = append(j.toolCalls, jsonToolCall{Name: name, Result: result.Content(), IsError: !result.Success})
}

func (j *JSONOutput) Warning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, msg)
}

// Emit writes the collected turn as indented JSON.
func (j *JSONOutput) Emit(w io.Writer, threadID, answer string) error {
	j.mu.Lock()
	result := jsonResult{
		ThreadID:  threadID,
		Answer:    answer,
		ToolCalls: j.toolCalls,
		Warnings:  j.warnings,
	}
	j.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
