// Package openai adapts the OpenAI chat-completions API to the core Provider
// contract. Tool-calling requests and results are translated between the
// gateway's typed content blocks and the OpenAI wire shapes.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/voicedesk-io/voicedesk/pkg/core"
	"github.com/voicedesk-io/voicedesk/pkg/core/types"
)

const defaultModel = "gpt-4o-mini"

// Provider implements core.Provider on top of OpenAI chat completions.
type Provider struct {
	client *goopenai.Client
	model  string
}

// Option configures the provider.
type Option func(*Provider)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if strings.TrimSpace(model) != "" {
			p.model = model
		}
	}
}

// New creates a provider for the given API key and base URL. An empty baseURL
// uses the OpenAI default.
func New(apiKey, baseURL string, opts ...Option) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	p := &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openai" }

// CreateTurn produces the next assistant generation.
func (p *Provider) CreateTurn(ctx context.Context, req *types.TurnRequest) (*types.TurnResponse, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("turn request is required")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(req.System, req.Messages),
		Tools:    toChatTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.NewProviderError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError("openai", fmt.Errorf("empty choices in response"))
	}

	return fromChatChoice(resp.Choices[0], resp.Model)
}

func toChatMessages(system string, messages []types.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			cm := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant}
			for _, block := range msg.Content {
				switch b := block.(type) {
				case types.TextBlock:
					cm.Content += b.Text
				case types.ToolUseBlock:
					args, err := json.Marshal(b.Input)
					if err != nil {
						args = []byte("{}")
					}
					cm.ToolCalls = append(cm.ToolCalls, goopenai.ToolCall{
						ID:   b.ID,
						Type: goopenai.ToolTypeFunction,
						Function: goopenai.FunctionCall{
							Name:      b.Name,
							Arguments: string(args),
						},
					})
				}
			}
			out = append(out, cm)
		default:
			// Tool results ride on a user message; each becomes its own
			// role=tool message on the wire.
			var text string
			for _, block := range msg.Content {
				switch b := block.(type) {
				case types.TextBlock:
					text += b.Text
				case types.ToolResultBlock:
					out = append(out, goopenai.ChatCompletionMessage{
						Role:       goopenai.ChatMessageRoleTool,
						Content:    b.Content,
						ToolCallID: b.ToolUseID,
					})
				}
			}
			if text != "" {
				out = append(out, goopenai.ChatCompletionMessage{
					Role:    goopenai.ChatMessageRoleUser,
					Content: text,
				})
			}
		}
	}
	return out
}

func toChatTools(tools []types.Tool) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

func fromChatChoice(choice goopenai.ChatCompletionChoice, model string) (*types.TurnResponse, error) {
	resp := &types.TurnResponse{
		Model:      model,
		StopReason: types.StopReasonEndTurn,
	}

	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, types.TextBlock{Type: "text", Text: choice.Message.Content})
	}

	for _, call := range choice.Message.ToolCalls {
		if call.Type != goopenai.ToolTypeFunction {
			continue
		}
		input := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				return nil, core.NewProviderError("openai", fmt.Errorf("malformed tool arguments for %q: %w", call.Function.Name, err))
			}
		}
		resp.Content = append(resp.Content, types.ToolUseBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	if len(choice.Message.ToolCalls) > 0 {
		resp.StopReason = types.StopReasonToolUse
	}
	return resp, nil
}
