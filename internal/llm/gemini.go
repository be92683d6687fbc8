package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// GeminiModel adapts the Gemini API to Model.
type GeminiModel struct {
	client    *genai.Client
	model     string
	maxTokens int
	log       *zap.Logger
}

// NewGeminiModel creates a model backed by the Gemini developer API.
func NewGeminiModel(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		log:       logging.Named("gemini"),
	}, nil
}

// Name returns the model id.
func (m *GeminiModel) Name() string {
	return m.model
}

// Invoke sends the thread history to GenerateContent.
func (m *GeminiModel) Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error) {
	start := time.Now()
	system, contents := toGeminiContents(messages)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(m.maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(tools)}}
	}

	m.log.Debug(logging.EventModelRequest,
		logging.ThreadID(threadID),
		logging.Model(m.model),
		logging.MessageCount(len(messages)),
		zap.Int("tools", len(tools)),
	)

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyProviderError(err)
	}

	out := parseGeminiResponse(resp)
	m.log.Debug(logging.EventModelResponse,
		logging.ThreadID(threadID),
		zap.String("stop_reason", out.StopReason),
		zap.Int("tool_calls", len(out.ToolCalls)),
		logging.DurationSince(start),
	)
	return out, nil
}

func geminiDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return decls
}

// toGeminiContents splits out system text and converts the rest.
// Consecutive tool messages are grouped into one user content of function responses.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var out []*genai.Content
	var responses []*genai.Part

	flush := func() {
		if len(responses) > 0 {
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: responses})
			responses = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Text())
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.ToolName, map[string]any{"output": msg.Text()})
			part.FunctionResponse.ID = msg.ToolCallID
			responses = append(responses, part)
		case RoleHuman:
			flush()
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: geminiParts(msg.Content)})
		case RoleAI:
			flush()
			parts := geminiParts(msg.Content)
			for _, call := range msg.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		}
	}
	flush()
	return strings.Join(system, "\n\n"), out
}

func geminiParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			if v.Text != "" {
				out = append(out, genai.NewPartFromText(v.Text))
			}
		case ImagePart:
			out = append(out, genai.NewPartFromURI(v.URL, v.MIMEType))
		}
	}
	return out
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	out.StopReason = string(cand.FinishReason)
	if cand.Content == nil {
		return out
	}
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: part.FunctionCall.Name, Args: args})
		case part.Thought:
		case part.Text != "":
			out.Content = append(out.Content, TextPart{Text: part.Text})
		}
	}
	return out
}
