package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// AnthropicModel adapts the Anthropic Messages API to Model.
type AnthropicModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	log       *zap.Logger
}

// NewAnthropicModel creates a model backed by the Anthropic SDK.
// SDK retries are disabled; ResilientModel owns retry policy.
func NewAnthropicModel(apiKey, model string, maxTokens int, opts ...option.RequestOption) *AnthropicModel {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicModel{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		log:       logging.Named("anthropic"),
	}
}

// Name returns the model id.
func (m *AnthropicModel) Name() string {
	return m.model
}

// Invoke sends the thread history to the Messages API.
func (m *AnthropicModel) Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error) {
	start := time.Now()
	params := m.buildParams(messages, tools)

	m.log.Debug(logging.EventModelRequest,
		logging.ThreadID(threadID),
		logging.Model(m.model),
		logging.MessageCount(len(messages)),
		zap.Int("tools", len(tools)),
	)

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyProviderError(err)
	}

	resp := parseAnthropicMessage(msg)
	m.log.Debug(logging.EventModelResponse,
		logging.ThreadID(threadID),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		logging.DurationSince(start),
	)
	return resp, nil
}

func (m *AnthropicModel) buildParams(messages []Message, tools []ToolDefinition) anthropic.MessageNewParams {
	system, apiMessages := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages:  apiMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(tools) > 0 {
		apiTools := make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, tool := range tools {
			toolParam := anthropic.ToolUnionParamOfTool(buildInputSchema(tool.InputSchema), tool.Name)
			toolParam.OfTool.Description = anthropic.String(tool.Description)
			apiTools = append(apiTools, toolParam)
		}
		params.Tools = apiTools
	}
	return params
}

// toAnthropicMessages splits out system text and converts the rest.
// Consecutive tool messages are grouped into one user turn of tool_result blocks.
func toAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Text())
		case RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text(), false))
		case RoleHuman:
			flushResults()
			out = append(out, anthropic.NewUserMessage(anthropicContent(msg.Content)...))
		case RoleAI:
			flushResults()
			blocks := anthropicContent(msg.Content)
			for _, call := range msg.ToolCalls {
				args := call.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushResults()
	return strings.Join(system, "\n\n"), out
}

func anthropicContent(parts []Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			if v.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			}
		case ImagePart:
			if mime, data, ok := parseDataURI(v.URL); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mime, data))
			} else {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: v.URL}))
			}
		}
	}
	return blocks
}

func parseAnthropicMessage(msg *anthropic.Message) *Response {
	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage: &Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content = append(resp.Content, TextPart{Text: b.Text})
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal(b.Input, &input); err != nil || input == nil {
				input = make(map[string]any)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: input,
			})
		}
	}
	return resp
}

// buildInputSchema converts a tool's schema map to the SDK's ToolInputSchemaParam
func buildInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	result := anthropic.ToolInputSchemaParam{}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = props
	}
	if req, ok := schema["required"]; ok {
		result.ExtraFields = map[string]any{
			"required": req,
		}
	}
	return result
}

// parseDataURI splits "data:<mime>;base64,<data>".
func parseDataURI(uri string) (mime, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mime, found = strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}
	return mime, data, true
}

// classifyProviderError wraps provider failures so retry policy can inspect them.
func classifyProviderError(err error) error {
	if isRateLimitError(err) || isTransientError(err) {
		return berrors.ModelInvocationFailed(err)
	}
	return berrors.ModelRejected(err)
}

// isRateLimitError checks if an error is a rate limit (429) error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "too many requests")
}

func isTransientError(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"500", "502", "503", "504", "529", "overloaded", "unavailable", "connection reset", "eof", "timeout"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
