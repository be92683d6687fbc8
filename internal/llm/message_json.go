package llm

import (
	"encoding/json"
	"fmt"
)

type partRecord struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

type toolCallRecord struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type usageRecord struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

type messageRecord struct {
	Role       Role             `json:"role"`
	Content    []partRecord     `json:"content"`
	ToolCalls  []toolCallRecord `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
	Usage      *usageRecord     `json:"usage,omitempty"`
}

// MarshalJSON encodes the message with a discriminated content array.
func (m Message) MarshalJSON() ([]byte, error) {
	rec := messageRecord{
		Role:       m.Role,
		Content:    make([]partRecord, 0, len(m.Content)),
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	}
	for _, p := range m.Content {
		switch v := p.(type) {
		case TextPart:
			rec.Content = append(rec.Content, partRecord{Type: "text", Text: v.Text})
		case ImagePart:
			rec.Content = append(rec.Content, partRecord{Type: "image", URL: v.URL, MIMEType: v.MIMEType})
		default:
			return nil, fmt.Errorf("unsupported content part %T", p)
		}
	}
	for _, c := range m.ToolCalls {
		rec.ToolCalls = append(rec.ToolCalls, toolCallRecord{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	if m.Usage != nil {
		rec.Usage = &usageRecord{Input: m.Usage.InputTokens, Output: m.Usage.OutputTokens, Total: m.Usage.TotalTokens}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes the format produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var rec messageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	out := Message{
		Role:       rec.Role,
		ToolCallID: rec.ToolCallID,
		ToolName:   rec.ToolName,
	}
	for _, p := range rec.Content {
		switch p.Type {
		case "text":
			out.Content = append(out.Content, TextPart{Text: p.Text})
		case "image":
			out.Content = append(out.Content, ImagePart{URL: p.URL, MIMEType: p.MIMEType})
		default:
			return fmt.Errorf("unknown content part type %q", p.Type)
		}
	}
	for _, c := range rec.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	if rec.Usage != nil {
		out.Usage = &Usage{InputTokens: rec.Usage.Input, OutputTokens: rec.Usage.Output, TotalTokens: rec.Usage.Total}
	}
	*m = out
	return nil
}
